// Package sender implements the reliable send engine: the refill/transmit/
// wait/clamp loop that reads a file into MSS-sized segments, drives them
// across a sliding-window retransmit queue, and paces them with a
// congestion controller.
package sender

import (
	"context"
	"io"
	"log/slog"
	"time"

	"rft"
	"rft/congestion"
	"rft/internal"
	"rft/wire"
)

const retransmitTimeout = 500 * time.Millisecond

// Engine drives one connection's worth of file transfer to completion.
type Engine struct {
	t    wire.Transport
	ctrl *congestion.Controller
	file io.Reader
	q    queue
	log  *slog.Logger

	nextSeq rft.Value // sequence number of the next byte to be enqueued
	eof     bool
}

// New returns an Engine that will stream file starting at seq (the sender's
// next-sequence-number after the handshake) over t, paced by ctrl.
func New(t wire.Transport, ctrl *congestion.Controller, file io.Reader, seq rft.Value, log *slog.Logger) *Engine {
	return &Engine{t: t, ctrl: ctrl, file: file, nextSeq: seq, log: log}
}

// LastSeq returns the sequence number immediately following the last byte
// enqueued. It is only meaningful after Run has returned nil; that is the
// seq value the caller should use for the teardown FIN.
func (e *Engine) LastSeq() rft.Value { return e.nextSeq }

// Run drives the refill/transmit/wait/clamp loop until the file is
// exhausted and every outstanding segment has been acknowledged, or a fatal
// error occurs.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.refill()
		if e.eof && e.q.Len() == 0 {
			return nil
		}
		if err := e.transmitPass(); err != nil {
			return err
		}

		front := e.q.Front()
		if front == nil {
			// Not EOF yet but nothing to send this pass (a zero-byte,
			// non-EOF read): spin back to refill rather than deref a nil
			// front.
			continue
		}
		wait := retransmitTimeout - time.Since(front.sendTime)
		if wait < 0 {
			wait = 0
		}
		if err := e.t.SetTimeout(wait); err != nil {
			return err
		}
		var p rft.Packet
		err := e.t.Recv(&p)
		switch {
		case wire.IsTimeout(err):
			e.debug("send: retransmit timeout", front)
			e.q.MarkHeadUnsent()
			e.ctrl.OnTimeout()
		case err != nil:
			return err
		default:
			e.handleAck(p)
		}
	}
}

// refill appends new unsent segments while the congestion window has room
// and the file has more to give.
func (e *Engine) refill() {
	for !e.eof {
		room := int(e.ctrl.Cwnd()) - int(e.q.Bytes())
		if room <= 0 {
			return
		}
		n := rft.MSS
		if room < n {
			n = room
		}
		var pkt rft.Packet
		read, err := e.file.Read(pkt.Data[:n])
		if read > 0 {
			pkt.SeqNumber = e.nextSeq
			pkt.Meta = rft.Size(read)
			e.nextSeq = rft.Add(e.nextSeq, rft.Size(read))
			e.q.Push(pkt)
		}
		if err == io.EOF {
			e.eof = true
			return
		}
		if err != nil {
			// A read failure mid-transfer is treated like EOF for the
			// purposes of the wire protocol: whatever was read is still
			// sent, and the connection closes once it drains. The error
			// itself is logged, not propagated, since the spec gives the
			// send loop no channel to report file I/O failure other than
			// ending the transfer.
			e.eof = true
			if internal.LogEnabled(e.log, slog.LevelError) {
				e.log.LogAttrs(context.Background(), slog.LevelError, "send: file read error", slog.String("err", err.Error()))
			}
			return
		}
		if read == 0 {
			return
		}
	}
}

// transmitPass marks segments stale past the retransmit timeout unsent,
// then sends everything currently unsent, in order. A send failure is
// always fatal; UDP sends never time out, so any error here is a real
// socket failure the caller must abort the connection over.
func (e *Engine) transmitPass() error {
	now := time.Now()
	for i := 0; i < e.q.Len(); i++ {
		s := e.q.At(i)
		if s.sent && now.Sub(s.sendTime) > retransmitTimeout {
			s.sent = false
			s.retransmit = true
		}
	}
	for i := 0; i < e.q.Len(); i++ {
		s := e.q.At(i)
		if s.sent {
			continue
		}
		e.trace("send: transmit", s)
		if err := e.t.Send(&s.pkt); err != nil {
			return err
		}
		s.sendTime = time.Now()
		s.sent = true
	}
	return nil
}

// handleAck processes one received packet as either a new cumulative ACK,
// a duplicate/non-matching ACK, or noise to ignore.
func (e *Engine) handleAck(p rft.Packet) {
	if !p.Flags.HasAny(rft.FlagACK) {
		e.reject(rft.ErrUnexpectedFlags, p)
		return // not an ACK; ignore (e.g. a stray retransmitted SYN)
	}
	w := p.WindowSize()
	if w > rft.SeqHalf {
		e.reject(rft.ErrBadWindowSize, p)
		w = rft.SeqHalf
	}
	e.ctrl.SetAdvertisedWindow(w)
	if idx := e.q.IndexOfEndSeq(p.AckNumber); idx >= 0 {
		e.q.RetireThrough(idx)
		e.ctrl.OnNewAck()
		e.debug("send: new cumulative ack", nil)
		return
	}
	if e.ctrl.OnDuplicateAck() {
		e.q.MarkHeadUnsent()
	}
}

// reject logs a rejected packet at debug level, naming the [rft.ProtocolError]
// reason it was rejected for.
func (e *Engine) reject(err *rft.ProtocolError, p rft.Packet) {
	if !internal.LogEnabled(e.log, slog.LevelDebug) {
		return
	}
	internal.LogAttrs(e.log, slog.LevelDebug, err.Error(),
		slog.Uint64("ack", uint64(p.AckNumber)),
		slog.Uint64("flags", uint64(p.Flags)),
	)
}

func (e *Engine) debug(msg string, s *segment) {
	if !internal.LogEnabled(e.log, slog.LevelDebug) {
		return
	}
	attrs := []slog.Attr{slog.Uint64("cwnd", uint64(e.ctrl.Cwnd())), slog.Int("outstanding", e.q.Len())}
	if s != nil {
		attrs = append(attrs, slog.Uint64("seq", uint64(s.pkt.SeqNumber)))
	}
	internal.LogAttrs(e.log, slog.LevelDebug, msg, attrs...)
}

func (e *Engine) trace(msg string, s *segment) {
	if !internal.LogEnabled(e.log, internal.LevelTrace) {
		return
	}
	internal.LogAttrs(e.log, internal.LevelTrace, msg,
		slog.Uint64("seq", uint64(s.pkt.SeqNumber)),
		slog.Int("len", s.pkt.DataLen()),
		slog.Bool("retransmit", s.retransmit),
	)
}
