// Package handshake implements the connection-establishment and graceful
// teardown state machine shared by the sender and receiver: the three-way
// SYN/SYN-ACK/ACK exchange and the FIN/FIN-ACK/final-ACK close, both
// retrying on a 500ms timeout and tolerant of the peer's loss and
// duplication.
package handshake

import (
	"context"
	"log/slog"
	"time"

	"rft"
	"rft/wire"
)

const (
	// RetryTimeout is the receive deadline used while waiting for a
	// handshake or teardown response; on expiry, the last message is
	// retransmitted.
	RetryTimeout = 500 * time.Millisecond
	// SilenceTimeout is how long the side that sent the final teardown
	// message waits for the peer to go quiet before assuming it has
	// departed.
	SilenceTimeout = 750 * time.Millisecond
)

// Result is the connection state established by a successful handshake: the
// two initial sequence numbers and the running seq/ack counters a caller
// should seed its send or receive engine with.
type Result struct {
	LocalISN rft.Value
	PeerISN  rft.Value
	// Seq is the next sequence number this side should use when it next
	// sends data (or, for the receiver, its fixed outgoing seq for ACKs).
	Seq rft.Value
	// Ack is the next sequence number this side expects from the peer.
	Ack rft.Value
}

func logEnabled(log *slog.Logger, ctx context.Context, lvl slog.Level) bool {
	return log != nil && log.Enabled(ctx, lvl)
}

// reject logs a dropped packet at debug level, naming the [rft.ProtocolError]
// reason it was rejected for.
func reject(log *slog.Logger, ctx context.Context, err *rft.ProtocolError, p rft.Packet) {
	if !logEnabled(log, ctx, slog.LevelDebug) {
		return
	}
	log.LogAttrs(ctx, slog.LevelDebug, err.Error(),
		slog.Uint64("seq", uint64(p.SeqNumber)),
		slog.Uint64("ack", uint64(p.AckNumber)),
		slog.Uint64("flags", uint64(p.Flags)),
	)
}

// recvUntil issues Recv calls against t, shrinking the transport's timeout
// to whatever remains of the window ending at deadline, until either a
// datagram arrives or the deadline passes. Re-arming the deadline on every
// call (rather than relying on a single SetTimeout at the top) is what lets
// a discarded, invalid response keep the same overall retry budget instead
// of silently extending it.
func recvUntil(t wire.Transport, deadline time.Time, p *rft.Packet) error {
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return errDeadlinePassed
		}
		if err := t.SetTimeout(remain); err != nil {
			return err
		}
		err := t.Recv(p)
		if err == nil {
			return nil
		}
		if wire.IsTimeout(err) {
			return errDeadlinePassed
		}
		if err == rft.ErrConnRefused {
			return err
		}
		return err
	}
}

type sentinel string

func (s sentinel) Error() string { return string(s) }

const errDeadlinePassed = sentinel("handshake: deadline passed")

// ClientHandshake performs the receiver's client-role handshake against t,
// the peer being whatever t currently targets (wire.Transport is already
// peer-bound for a client socket). isn is the locally drawn initial
// sequence number.
func ClientHandshake(ctx context.Context, t wire.Transport, isn rft.Value, log *slog.Logger) (Result, error) {
	syn := rft.Packet{
		SeqNumber: isn,
		Flags:     rft.FlagSYN,
		Meta:      rft.Size(rft.SeqMax),
	}
	for {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if err := t.Send(&syn); err != nil {
			return Result{}, err
		}
		if logEnabled(log, ctx, slog.LevelDebug) {
			log.LogAttrs(ctx, slog.LevelDebug, "handshake: sent SYN", slog.Uint64("isn", uint64(isn)))
		}
		deadline := time.Now().Add(RetryTimeout)
		var resp rft.Packet
		for {
			err := recvUntil(t, deadline, &resp)
			if err == errDeadlinePassed {
				break // resend SYN
			}
			if err == rft.ErrConnRefused {
				break // peer not listening yet, resend SYN
			}
			if err != nil {
				return Result{}, err
			}
			if resp.Flags.HasAll(rft.FlagSYN|rft.FlagACK) && resp.AckNumber == rft.Add(isn, 1) {
				ack := rft.Packet{
					Flags:     rft.FlagACK,
					SeqNumber: resp.AckNumber,
					AckNumber: rft.Add(resp.SeqNumber, 1),
					Meta:      rft.Size(rft.SeqMax),
				}
				// This final handshake ACK is sent exactly once: if it's
				// lost, the server's own timer keeps retransmitting the
				// SYN-ACK and the first data segment carries an implicit
				// confirmation.
				if err := t.Send(&ack); err != nil {
					return Result{}, err
				}
				return Result{
					LocalISN: isn,
					PeerISN:  resp.SeqNumber,
					Seq:      ack.SeqNumber,
					Ack:      ack.AckNumber,
				}, nil
			}
			// Any other packet is discarded; the wait continues within the
			// same retry window.
			reject(log, ctx, rft.ErrUnexpectedFlags, resp)
		}
	}
}

// ServerHandshake performs the sender's server-role handshake: it waits
// (with no deadline) for a first SYN from anywhere, pins the transport to
// that peer if it supports [wire.PeerPinner], then retries its SYN-ACK
// every RetryTimeout until a matching final ACK arrives.
func ServerHandshake(ctx context.Context, t wire.Transport, isn rft.Value, log *slog.Logger) (Result, error) {
	var syn rft.Packet
	if err := t.SetTimeout(0); err != nil {
		return Result{}, err
	}
	for {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if err := t.Recv(&syn); err != nil {
			if wire.IsTimeout(err) {
				continue
			}
			return Result{}, err
		}
		if syn.Flags.HasAll(rft.FlagSYN) && !syn.Flags.HasAny(rft.FlagACK) {
			break
		}
		// Malformed or unexpected packet while listening: drop silently.
		reject(log, ctx, rft.ErrUnexpectedFlags, syn)
	}
	if pinner, ok := t.(wire.PeerPinner); ok {
		pinner.PinLastPeer()
	}
	if logEnabled(log, ctx, slog.LevelDebug) {
		log.LogAttrs(ctx, slog.LevelDebug, "handshake: received SYN", slog.Uint64("peer_isn", uint64(syn.SeqNumber)))
	}

	synack := rft.Packet{
		SeqNumber: isn,
		AckNumber: rft.Add(syn.SeqNumber, 1),
		Flags:     rft.FlagSYN | rft.FlagACK,
		Meta:      rft.Size(rft.SeqMax),
	}
	for {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if err := t.Send(&synack); err != nil {
			return Result{}, err
		}
		deadline := time.Now().Add(RetryTimeout)
		var resp rft.Packet
		for {
			err := recvUntil(t, deadline, &resp)
			if err == errDeadlinePassed {
				break // resend SYN-ACK
			}
			if err != nil {
				return Result{}, err
			}
			if resp.Flags.HasAll(rft.FlagACK) && !resp.Flags.HasAny(rft.FlagSYN) &&
				resp.AckNumber == rft.Add(isn, 1) {
				return Result{
					LocalISN: isn,
					PeerISN:  syn.SeqNumber,
					Seq:      resp.AckNumber,
					Ack:      resp.SeqNumber,
				}, nil
			}
			// Unexpected packet (including a stale SYN retransmission):
			// dropped, per spec's resolution of the SYN-during-handshake
			// open question.
			reject(log, ctx, rft.ErrUnexpectedFlags, resp)
		}
	}
}
