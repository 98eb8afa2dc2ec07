package rft

import (
	"math/rand"
	"testing"
)

// TestEncodeDecodeRoundTrip checks the codec law spec §8 calls out directly:
// encoding a packet then decoding it yields an equal packet, modulo the
// reserved padding byte which Decode never populates from wire bytes since
// Encode always zeroes it.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var buf [PacketSize]byte
	for i := 0; i < 100; i++ {
		want := Packet{
			AckNumber: Value(rng.Intn(SeqMax)),
			SeqNumber: Value(rng.Intn(SeqMax)),
			Meta:      Size(rng.Intn(MSS + 1)),
			Flags:     Flags(rng.Intn(8)),
		}
		n := rng.Intn(MSS + 1)
		rng.Read(want.Data[:n])

		if _, err := want.Encode(buf[:]); err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := Decode(buf[:])
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch\n got=%+v\nwant=%+v", got, want)
		}
	}
}

func TestEncodeShortBuffer(t *testing.T) {
	var p Packet
	var buf [HeaderLen]byte // shorter than PacketSize
	if _, err := p.Encode(buf[:]); err != ErrShortFrame {
		t.Fatalf("Encode with short buffer: err = %v, want ErrShortFrame", err)
	}
}

func TestDecodeShortFrame(t *testing.T) {
	for n := 0; n < HeaderLen; n++ {
		buf := make([]byte, n)
		if _, err := Decode(buf); err != ErrShortFrame {
			t.Fatalf("Decode(%d bytes): err = %v, want ErrShortFrame", n, err)
		}
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	// A frame that carries the full header but fewer than MSS payload bytes
	// is still valid: Decode must not read past what's given.
	src := make([]byte, HeaderLen+10)
	src[6] = byte(FlagACK)
	for i := range src[HeaderLen:] {
		src[HeaderLen+i] = byte(i + 1)
	}
	p, err := Decode(src)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !p.Flags.HasAll(FlagACK) {
		t.Fatalf("Flags = %v, want ACK set", p.Flags)
	}
	for i := 0; i < 10; i++ {
		if p.Data[i] != byte(i+1) {
			t.Fatalf("Data[%d] = %d, want %d", i, p.Data[i], i+1)
		}
	}
	for i := 10; i < MSS; i++ {
		if p.Data[i] != 0 {
			t.Fatalf("Data[%d] = %d, want 0 (untouched)", i, p.Data[i])
		}
	}
}

func TestFlagBitPositions(t *testing.T) {
	// The spec fixes ack=bit0, syn=bit1, fin=bit2 so peers of differing
	// endianness still agree on flag layout.
	cases := []struct {
		flag Flags
		bit  uint
	}{
		{FlagACK, 0},
		{FlagSYN, 1},
		{FlagFIN, 2},
	}
	for _, c := range cases {
		if c.flag != 1<<c.bit {
			t.Fatalf("%v = %#x, want bit %d", c.flag, c.flag, c.bit)
		}
	}
}

func TestFlagsString(t *testing.T) {
	cases := []struct {
		flags Flags
		want  string
	}{
		{0, "none"},
		{FlagSYN, "SYN"},
		{FlagACK, "ACK"},
		{FlagFIN, "FIN"},
		{FlagSYN | FlagACK, "SYN+ACK"},
		{FlagFIN | FlagACK, "ACK+FIN"},
	}
	for _, c := range cases {
		if got := c.flags.String(); got != c.want {
			t.Errorf("Flags(%#x).String() = %q, want %q", uint8(c.flags), got, c.want)
		}
	}
}
