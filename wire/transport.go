// Package wire decouples the connection state machine, send engine and
// receive engine from the concrete datagram socket. Protocol logic is
// written once against the [Transport] interface; production code drives it
// with [UDPTransport], tests drive it with a deterministic lossy transport
// (see the sibling internal/mocknet package).
package wire

import (
	"errors"
	"net"
	"time"

	"rft"
)

// Transport is the minimal blocking send/recv socket interface the protocol
// core needs. A zero-valued timeout set through SetTimeout means "block
// indefinitely", matching the sender's listening mode before any handshake
// has begun.
type Transport interface {
	// Send encodes and transmits p to whatever peer this Transport currently
	// targets. It never blocks on congestion; UDP sends are fire-and-forget.
	Send(p *rft.Packet) error
	// Recv blocks for up to the duration set by the most recent SetTimeout
	// call (or indefinitely, if none or zero) and decodes the next packet
	// addressed to this Transport into p. A timeout is reported through an
	// error satisfying [IsTimeout].
	Recv(p *rft.Packet) error
	// SetTimeout changes the deadline used by the next Recv call. d <= 0
	// means block indefinitely.
	SetTimeout(d time.Duration) error
	// Close releases the underlying socket.
	Close() error
}

// PeerPinner is implemented by transports that start unbound to any single
// remote address (the sender's listening socket) and must commit to one
// peer once a SYN selects it, then release that commitment between
// connections. Transports that are always bound to exactly one peer (a
// dialed client socket, or a mock point-to-point pair) need not implement
// it; callers type-assert for it and skip the pin/reset when absent.
type PeerPinner interface {
	// PinLastPeer commits this Transport to the source address of the most
	// recently received datagram; subsequent Recv calls discard datagrams
	// from any other source.
	PinLastPeer()
	// ResetPeer releases the pin, so the next datagram from any source is
	// accepted and implicitly becomes the candidate to pin to.
	ResetPeer()
}

// IsTimeout reports whether err represents a Recv deadline expiring, as
// opposed to any other transport failure.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
