// Package rft implements the wire format and sequence-number arithmetic for a
// reliable, in-order, unidirectional file-transfer protocol layered on UDP.
//
// A single rft.Packet travels as a fixed 1032-byte datagram: an 8-byte header
// (cumulative ack number, sequence number, an overloaded length/window field,
// and a flags byte) followed by a 1024-byte payload region, of which only the
// first DataLen bytes are meaningful. Sequence numbers live in a 16-bit space
// that wraps at SeqMax; see [Value] and [InForwardWindow] for the modular
// arithmetic used to reason about that wraparound.
//
// The connection state machine, congestion controller, and send/receive
// engines that use this package live in the sibling packages handshake,
// congestion, sender and receiver.
package rft
