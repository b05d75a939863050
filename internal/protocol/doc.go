// Package protocol groups the wire layers of a wsocket connection.
//
// Ownership boundary:
// - frame: header codec and opcodes
// - buffer: sliding receive buffer
// - parser: frame extraction from buffered bytes
// - session: connection state machine, handshake and close handshake
package protocol
