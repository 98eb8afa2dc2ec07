package rft

import (
	"crypto/rand"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
)

// SeqMax is the modulus of the sequence-number space. Sequence numbers live
// in [0, SeqMax).
const SeqMax = 30720

// SeqHalf is half the sequence space. A receive window can never exceed it:
// doing so would make [InForwardWindow] ambiguous under wraparound.
const SeqHalf = SeqMax / 2

// MSS is the maximum payload size of a single segment.
const MSS = 1024

// Value is a sequence or acknowledgment number in the protocol's 16-bit
// modular space. Arithmetic on Value must go through [Add] and window
// membership through [InForwardWindow]; a naive greater-than on raw values
// silently breaks once a transfer runs long enough to wrap.
type Value uint16

// Size is a byte count or window size, never more than SeqMax.
type Size uint16

// Add returns (b+d) mod SeqMax.
func Add(b Value, d Size) Value {
	return Value((uint32(b) + uint32(d)) % SeqMax)
}

// distanceForward returns the number of steps needed to go from b to v,
// walking forward through the modular space.
func (v Value) distanceForward(b Value) Size {
	return Size((uint32(v) + SeqMax - uint32(b)) % SeqMax)
}

// InForwardWindow reports whether s falls within the forward half of the
// sequence space measured from base, i.e. (s-base) mod SeqMax < SeqHalf.
// This is the only correct way to ask "is s at or ahead of base" in a
// wrapping sequence space.
func InForwardWindow(s, base Value) bool {
	return s.distanceForward(base) < SeqHalf
}

// ISNSource produces randomized initial sequence numbers for new
// connections. A single process-wide secret is mixed with a monotonically
// increasing counter through a keyed BLAKE2b hash so that two connections
// opened within the same timer tick still land on well-separated ISNs; this
// generalizes the mixing idea behind a SYN-cookie hash (secret+counter+salt)
// without the cookie machinery itself, which this protocol has no use for
// (see DESIGN.md).
type ISNSource struct {
	secret  [32]byte
	counter uint64
	once    sync.Once
	initErr error
}

// DefaultISNSource is a process-wide [ISNSource] seeded lazily from
// crypto/rand on first use.
var DefaultISNSource ISNSource

// Next returns a new random ISN in [0, SeqMax].
func (s *ISNSource) Next() (Value, error) {
	s.once.Do(func() {
		_, s.initErr = rand.Read(s.secret[:])
	})
	if s.initErr != nil {
		return 0, s.initErr
	}
	n := atomic.AddUint64(&s.counter, 1)
	var counterBytes [8]byte
	counterBytes[0] = byte(n)
	counterBytes[1] = byte(n >> 8)
	counterBytes[2] = byte(n >> 16)
	counterBytes[3] = byte(n >> 24)
	counterBytes[4] = byte(n >> 32)
	counterBytes[5] = byte(n >> 40)
	counterBytes[6] = byte(n >> 48)
	counterBytes[7] = byte(n >> 56)

	h, err := blake2b.New256(s.secret[:])
	if err != nil {
		return 0, err
	}
	h.Write(counterBytes[:])
	sum := h.Sum(nil)
	// Fold the 256-bit digest down into [0, SeqMax] by reducing modulo
	// SeqMax+1, so ISN 0 and ISN SeqMax (both valid per spec) are reachable.
	v := uint32(sum[0]) | uint32(sum[1])<<8 | uint32(sum[2])<<16 | uint32(sum[3])<<24
	return Value(v % (SeqMax + 1)), nil
}

// RandomISN draws a new initial sequence number from [DefaultISNSource].
func RandomISN() (Value, error) {
	return DefaultISNSource.Next()
}
