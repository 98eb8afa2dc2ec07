package handshake

import (
	"context"
	"log/slog"
	"time"

	"rft"
	"rft/wire"
)

// SenderClose runs the sender's half of graceful teardown: send FIN, wait
// for FIN-ACK (retrying FIN on timeout), send the final ACK exactly once
// per FIN-ACK seen, then wait up to SilenceTimeout for the peer to go
// quiet. lastSeq is the sequence number immediately following the last byte
// of data the sender transmitted.
func SenderClose(ctx context.Context, t wire.Transport, lastSeq rft.Value, log *slog.Logger) error {
	fin := rft.Packet{SeqNumber: lastSeq, Flags: rft.FlagFIN}
	var finack rft.Packet
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := t.Send(&fin); err != nil {
			return err
		}
		deadline := time.Now().Add(RetryTimeout)
		got := false
		for {
			err := recvUntil(t, deadline, &finack)
			if err == errDeadlinePassed || err == rft.ErrConnRefused {
				break // resend FIN
			}
			if err != nil {
				return err
			}
			if finack.Flags.HasAll(rft.FlagFIN|rft.FlagACK) && finack.AckNumber == rft.Add(lastSeq, 1) {
				got = true
				break
			}
			// discard and keep waiting within this window
			reject(log, ctx, rft.ErrUnexpectedFlags, finack)
		}
		if got {
			break
		}
	}
	if logEnabled(log, ctx, slog.LevelDebug) {
		log.LogAttrs(ctx, slog.LevelDebug, "teardown: received FIN-ACK")
	}

	finalAck := rft.Packet{
		SeqNumber: finack.AckNumber,
		AckNumber: rft.Add(finack.SeqNumber, 1),
		Flags:     rft.FlagACK,
	}
	if err := t.Send(&finalAck); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		deadline := time.Now().Add(SilenceTimeout)
		silent := true
		var p rft.Packet
		for time.Now().Before(deadline) {
			err := recvUntil(t, deadline, &p)
			if err == errDeadlinePassed {
				break
			}
			if err == rft.ErrConnRefused {
				// Peer has already gone; that's a clean exit.
				return nil
			}
			if err != nil {
				return err
			}
			if p.Flags.HasAll(rft.FlagFIN|rft.FlagACK) && p.AckNumber == rft.Add(lastSeq, 1) {
				// A duplicate FIN-ACK: our final ACK was lost. Retransmit
				// it and restart the silence window.
				if err := t.Send(&finalAck); err != nil {
					return err
				}
				silent = false
				break
			}
			// unrelated stray packet: ignore, keep waiting
			reject(log, ctx, rft.ErrUnexpectedFlags, p)
		}
		if silent {
			return nil
		}
	}
}

// ReceiverClose runs the receiver's half of graceful teardown after its
// receive loop observed a FIN: send FIN-ACK, retransmitting it on every
// RetryTimeout timeout, until SilenceTimeout passes without hearing from
// the peer. ack is the sequence number immediately following the FIN
// (add(fin.seq, 1)); localSeq is the receiver's fixed outgoing seq number.
func ReceiverClose(ctx context.Context, t wire.Transport, ack, localSeq rft.Value, log *slog.Logger) error {
	finack := rft.Packet{
		SeqNumber: localSeq,
		AckNumber: ack,
		Flags:     rft.FlagFIN | rft.FlagACK,
	}
	lastHeard := time.Now()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := t.Send(&finack); err != nil {
			return err
		}
		if logEnabled(log, ctx, slog.LevelDebug) {
			log.LogAttrs(ctx, slog.LevelDebug, "teardown: sent FIN-ACK", slog.Uint64("ack", uint64(ack)))
		}
		deadline := time.Now().Add(RetryTimeout)
		if end := lastHeard.Add(SilenceTimeout); end.Before(deadline) {
			deadline = end
		}
		var p rft.Packet
		for time.Now().Before(deadline) {
			err := recvUntil(t, deadline, &p)
			if err == errDeadlinePassed {
				break
			}
			if err == rft.ErrConnRefused {
				return nil
			}
			if err != nil {
				return err
			}
			if p.Flags.HasAll(rft.FlagFIN) {
				// Peer retransmitted FIN (our FIN-ACK was lost, or this is
				// the final ACK's absence): resend FIN-ACK and restart.
				lastHeard = time.Now()
				break
			}
			if p.Flags.HasAll(rft.FlagACK) && p.AckNumber == rft.Add(localSeq, 1) {
				// The sender's final ACK: we're done.
				return nil
			}
			reject(log, ctx, rft.ErrUnexpectedFlags, p)
		}
		if time.Since(lastHeard) >= SilenceTimeout {
			return nil
		}
	}
}
