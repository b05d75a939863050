// Package session owns the per-connection protocol state machine.
//
// Ownership boundary:
// - connection lifecycle and close handshake
// - frame dispatch to listeners
// - handshake codec negotiation and per-frame compression
// - keep-alive ownership
//
// A Session never performs I/O. The owner feeds inbound bytes, receives
// outbound bytes through the send hook, and serializes every call together
// with keep-alive callbacks through the sequencer it supplies.
package session
