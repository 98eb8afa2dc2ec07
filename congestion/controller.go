// Package congestion implements the TCP-Reno-style congestion controller
// that paces the send engine: Slow Start, Congestion Avoidance and Fast
// Recovery, driven purely by ACK events (new/duplicate) and retransmission
// timeouts.
package congestion

import (
	"log/slog"
	"math"

	"rft"
	"rft/internal"
)

// Mode is one of the three congestion-control phases a Controller can be in.
type Mode uint8

const (
	SlowStart Mode = iota
	CongestionAvoidance
	FastRecovery
)

func (m Mode) String() string {
	switch m {
	case SlowStart:
		return "slow-start"
	case CongestionAvoidance:
		return "congestion-avoidance"
	case FastRecovery:
		return "fast-recovery"
	default:
		return "mode(" + itoa(int(m)) + ")"
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [8]byte
	n := len(buf)
	for i > 0 {
		n--
		buf[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		buf[n] = '-'
	}
	return string(buf[n:])
}

// MSS is the maximum segment size used by the congestion controller, equal
// to [rft.MSS].
const MSS = rft.Size(rft.MSS)

// Controller holds the congestion-control state of one connection: cwnd,
// ssthresh, the current mode and the running duplicate-ACK count. The zero
// value is not usable; construct one with [New].
type Controller struct {
	cwnd      rft.Size
	ssthresh  rft.Size
	mode      Mode
	dupacks   int
	advertWnd rft.Size
	log       *slog.Logger
}

// New returns a Controller initialized per spec: cwnd = MSS, ssthresh =
// SeqMax, mode = Slow Start. The advertised window starts at SeqHalf so the
// very first clamp (before any ACK carries a real window) doesn't starve
// the connection.
func New(log *slog.Logger) *Controller {
	return &Controller{
		cwnd:      MSS,
		ssthresh:  rft.SeqMax,
		mode:      SlowStart,
		advertWnd: rft.SeqHalf,
		log:       log,
	}
}

// Cwnd returns the current congestion window in bytes.
func (c *Controller) Cwnd() rft.Size { return c.cwnd }

// Ssthresh returns the current slow-start threshold in bytes.
func (c *Controller) Ssthresh() rft.Size { return c.ssthresh }

// Mode returns the current congestion-control mode.
func (c *Controller) Mode() Mode { return c.mode }

// DuplicateAcks returns the running duplicate-ACK count since the last new
// ACK or mode transition reset it.
func (c *Controller) DuplicateAcks() int { return c.dupacks }

// SetAdvertisedWindow records the receiver's most recently advertised
// window; every cwnd update is clamped against it.
func (c *Controller) SetAdvertisedWindow(w rft.Size) {
	c.advertWnd = w
	c.clamp()
}

func (c *Controller) clamp() {
	if c.cwnd > rft.SeqHalf {
		c.cwnd = rft.SeqHalf
	}
	if c.cwnd > c.advertWnd {
		c.cwnd = c.advertWnd
	}
	if c.ssthresh < MSS {
		c.ssthresh = MSS
	}
}

// grow applies the additive-increase formula for the current mode; it is
// shared between a genuine new ACK and the "otherwise cwnd inflates as in
// SS or CA" clause applied to a 1st or 2nd duplicate ACK.
func (c *Controller) grow() {
	switch c.mode {
	case SlowStart:
		c.cwnd += MSS
		if c.cwnd >= c.ssthresh {
			c.mode = CongestionAvoidance
		}
	case CongestionAvoidance:
		inc := rft.Size(math.Round(float64(MSS) * float64(MSS) / float64(c.cwnd)))
		if inc < 1 {
			inc = 1
		}
		c.cwnd += inc
	}
}

// OnNewAck reports a cumulative ACK that retired at least one outstanding
// segment. It resets the duplicate-ACK count and advances cwnd per the
// current mode, collapsing Fast Recovery back to Congestion Avoidance.
func (c *Controller) OnNewAck() {
	c.dupacks = 0
	if c.mode == FastRecovery {
		c.cwnd = c.ssthresh
		c.mode = CongestionAvoidance
	} else {
		c.grow()
	}
	c.clamp()
	c.trace("congestion: new ack")
}

// OnDuplicateAck reports an ACK that did not match the end sequence of any
// outstanding segment. It returns true when the caller should retransmit
// the head of the outstanding queue right away (entering or continuing Fast
// Recovery); it returns false when the duplicate only fed cwnd growth.
func (c *Controller) OnDuplicateAck() (retransmitHead bool) {
	c.dupacks++
	switch {
	case c.mode == FastRecovery:
		c.cwnd += MSS
		c.clamp()
		retransmitHead = true
	case c.dupacks == 3:
		c.ssthresh = c.cwnd / 2
		if c.ssthresh < MSS {
			c.ssthresh = MSS
		}
		c.cwnd = c.ssthresh + 3*MSS
		c.mode = FastRecovery
		c.clamp()
		retransmitHead = true
	default:
		c.grow()
		c.clamp()
	}
	c.trace("congestion: duplicate ack")
	return retransmitHead
}

// OnTimeout reports a retransmission timeout on the head of the outstanding
// queue. Per spec this always resets to Slow Start regardless of the prior
// mode, and the caller must retransmit the head.
func (c *Controller) OnTimeout() {
	c.ssthresh = c.cwnd / 2
	if c.ssthresh < MSS {
		c.ssthresh = MSS
	}
	c.cwnd = MSS
	c.mode = SlowStart
	c.dupacks = 0
	c.clamp()
	c.trace("congestion: retransmit timeout")
}

func (c *Controller) trace(msg string) {
	if !internal.LogEnabled(c.log, internal.LevelTrace) {
		return
	}
	internal.LogAttrs(c.log, internal.LevelTrace, msg,
		slog.String("mode", c.mode.String()),
		slog.Uint64("cwnd", uint64(c.cwnd)),
		slog.Uint64("ssthresh", uint64(c.ssthresh)),
		slog.Int("dupacks", c.dupacks),
	)
}
