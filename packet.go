package rft

import "encoding/binary"

// HeaderLen is the fixed size of a Packet's header in bytes.
const HeaderLen = 8

// PacketSize is the fixed size of a Packet on the wire: header plus the full
// payload region, whether or not that region is fully used.
const PacketSize = HeaderLen + MSS

// Flags is a bitmask of control flags carried in a Packet's header.
type Flags uint8

const (
	FlagACK Flags = 1 << iota
	FlagSYN
	FlagFIN
)

// HasAny reports whether f has any of the bits in mask set.
func (f Flags) HasAny(mask Flags) bool { return f&mask != 0 }

// HasAll reports whether f has every bit in mask set.
func (f Flags) HasAll(mask Flags) bool { return f&mask == mask }

// String renders f as a short "+"-joined list, e.g. "SYN+ACK".
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var b []byte
	add := func(name string) {
		if len(b) > 0 {
			b = append(b, '+')
		}
		b = append(b, name...)
	}
	if f.HasAny(FlagSYN) {
		add("SYN")
	}
	if f.HasAny(FlagACK) {
		add("ACK")
	}
	if f.HasAny(FlagFIN) {
		add("FIN")
	}
	return string(b)
}

// Packet is a single segment of the protocol: an 8-byte header followed by
// up to MSS bytes of payload. The zero value is a usable, empty packet.
//
// Header layout (network byte order):
//
//	offset 0: AckNumber uint16
//	offset 2: SeqNumber uint16
//	offset 4: Meta      uint16 (DataLen for a data segment, WindowSize for a SYN, SYN-ACK or receiver ACK)
//	offset 6: Flags     uint8
//	offset 7: reserved, always encoded as zero
//
// Data occupies Data[:DataLen]; callers must not read past DataLen.
type Packet struct {
	AckNumber Value
	SeqNumber Value
	Meta      Size
	Flags     Flags
	Data      [MSS]byte
}

// DataLen returns p.Meta interpreted as a payload length. It is meaningful
// only on a data segment sent by the sender (see WindowSize).
func (p *Packet) DataLen() int { return int(p.Meta) }

// WindowSize returns p.Meta interpreted as an advertised receive window. It
// is meaningful on a SYN or SYN-ACK segment and on the receiver's ACKs.
func (p *Packet) WindowSize() Size { return p.Meta }

// Encode serializes p into dst, which must be at least PacketSize bytes
// long, and returns the number of bytes written (always PacketSize).
func (p *Packet) Encode(dst []byte) (int, error) {
	if len(dst) < PacketSize {
		return 0, ErrShortFrame
	}
	binary.BigEndian.PutUint16(dst[0:2], uint16(p.AckNumber))
	binary.BigEndian.PutUint16(dst[2:4], uint16(p.SeqNumber))
	binary.BigEndian.PutUint16(dst[4:6], uint16(p.Meta))
	dst[6] = byte(p.Flags)
	dst[7] = 0
	n := copy(dst[HeaderLen:HeaderLen+MSS], p.Data[:])
	for i := n; i < MSS; i++ {
		dst[HeaderLen+i] = 0
	}
	return PacketSize, nil
}

// Decode parses a Packet from src. src must be at least HeaderLen bytes;
// a shorter buffer is always rejected, even if its payload would otherwise
// be valid, since a truncated header can't be trusted. Any payload bytes
// present beyond HeaderLen (up to MSS of them) are copied in; Decode never
// looks at src past HeaderLen+MSS.
func Decode(src []byte) (Packet, error) {
	var p Packet
	if len(src) < HeaderLen {
		return p, ErrShortFrame
	}
	p.AckNumber = Value(binary.BigEndian.Uint16(src[0:2]))
	p.SeqNumber = Value(binary.BigEndian.Uint16(src[2:4]))
	p.Meta = Size(binary.BigEndian.Uint16(src[4:6]))
	p.Flags = Flags(src[6])
	payload := src[HeaderLen:]
	if len(payload) > MSS {
		payload = payload[:MSS]
	}
	copy(p.Data[:], payload)
	return p, nil
}
