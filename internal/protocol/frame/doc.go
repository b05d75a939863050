// Package frame owns the frame header wire format.
//
// Ownership boundary:
// - header bit layout and minimal-width length encoding
// - opcode and close code definitions
// - frame serialization helpers
package frame
