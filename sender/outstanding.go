package sender

import (
	"time"

	"rft"
)

// segment is one outstanding-segment record: an encoded packet awaiting
// acknowledgment, the moment it was last transmitted, and whether it has
// been sent at all this pass.
type segment struct {
	pkt        rft.Packet
	sendTime   time.Time
	sent       bool
	retransmit bool // diagnostic only, set whenever this segment is resent.
}

func (s *segment) endSeq() rft.Value {
	return rft.Add(s.pkt.SeqNumber, rft.Size(s.pkt.DataLen()))
}

// queue is the sliding-window retransmit queue: a FIFO of outstanding
// segments kept in strictly increasing sequence order, covering a
// contiguous range starting at the cumulative-ACK boundary. It is realized
// as a slice compacted in place on retirement rather than the teacher's
// byte-level ring buffer: segment payloads here are already fixed
// MSS-sized chunks read directly from the file into each record's packet,
// so there is no intermediate byte-ring to manage, only the bookkeeping of
// which chunks are outstanding.
type queue struct {
	segs []segment
}

// Len returns the number of outstanding segments.
func (q *queue) Len() int { return len(q.segs) }

// Front returns the oldest outstanding segment, or nil if the queue is
// empty.
func (q *queue) Front() *segment {
	if len(q.segs) == 0 {
		return nil
	}
	return &q.segs[0]
}

// At returns the i'th outstanding segment.
func (q *queue) At(i int) *segment { return &q.segs[i] }

// Bytes returns cwnd_used: the sum of data_len across all outstanding
// segments.
func (q *queue) Bytes() rft.Size {
	var n rft.Size
	for i := range q.segs {
		n += rft.Size(q.segs[i].pkt.DataLen())
	}
	return n
}

// Push appends a new, not-yet-sent segment to the tail of the queue.
func (q *queue) Push(pkt rft.Packet) {
	q.segs = append(q.segs, segment{pkt: pkt})
}

// RetireThrough removes segments [0, idx] (inclusive) from the queue,
// compacting the backing slice in place.
func (q *queue) RetireThrough(idx int) {
	n := copy(q.segs, q.segs[idx+1:])
	q.segs = q.segs[:n]
}

// IndexOfEndSeq returns the index of the outstanding segment whose end
// sequence (seq+data_len) equals ack, or -1 if none matches. A cumulative
// ACK is only "new" when it lands exactly on a segment boundary.
func (q *queue) IndexOfEndSeq(ack rft.Value) int {
	for i := range q.segs {
		if q.segs[i].endSeq() == ack {
			return i
		}
	}
	return -1
}

// MarkHeadUnsent flags the front of the queue for immediate retransmission
// on the next transmit pass.
func (q *queue) MarkHeadUnsent() {
	f := q.Front()
	if f != nil {
		f.sent = false
		f.retransmit = true
	}
}
