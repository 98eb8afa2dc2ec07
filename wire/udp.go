package wire

import (
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"rft"
	"rft/internal/sockopt"
)

var errNoPeer = errors.New("wire: send before any peer is known")

// UDPTransport is the real [Transport], backed by a single net.UDPConn.
//
// A server-role socket is built with [ListenUDP]: it starts unbound to any
// peer and accepts datagrams from anywhere until [UDPTransport.PinLastPeer]
// commits it to one source address, mirroring the sender's "first SYN
// selects the peer" rule. A client-role socket built with [DialUDP] is
// bound to its one peer from construction.
type UDPTransport struct {
	conn      *net.UDPConn
	connected bool // built with DialUDP: conn.Write already targets the peer.
	remote    *net.UDPAddr
	pinned    bool
	lastAddr  *net.UDPAddr
	buf       [rft.PacketSize]byte
}

// ListenUDP opens a server-role socket on the given port across all
// interfaces. rcvBuf and sndBuf, if non-zero, tune the kernel socket buffers
// via internal/sockopt.
func ListenUDP(port int, rcvBuf, sndBuf int) (*UDPTransport, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	if err := sockopt.TuneBuffers(conn, rcvBuf, sndBuf); err != nil {
		conn.Close()
		return nil, err
	}
	return &UDPTransport{conn: conn}, nil
}

// DialUDP opens a client-role socket already bound to host:port.
func DialUDP(host string, port int, rcvBuf, sndBuf int) (*UDPTransport, error) {
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	if err := sockopt.TuneBuffers(conn, rcvBuf, sndBuf); err != nil {
		conn.Close()
		return nil, err
	}
	return &UDPTransport{conn: conn, connected: true, remote: raddr, pinned: true}, nil
}

// LocalAddr returns the local address the underlying socket is bound to.
func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// PeerAddr returns the address this transport currently targets, or nil if
// none is known yet (an unpinned, not-yet-connected server socket).
func (t *UDPTransport) PeerAddr() net.Addr {
	if t.remote == nil {
		return nil
	}
	return t.remote
}

// Send implements [Transport].
func (t *UDPTransport) Send(p *rft.Packet) error {
	var buf [rft.PacketSize]byte
	if _, err := p.Encode(buf[:]); err != nil {
		return err
	}
	if t.connected {
		_, err := t.conn.Write(buf[:])
		return err
	}
	if t.remote == nil {
		return errNoPeer
	}
	_, err := t.conn.WriteToUDP(buf[:], t.remote)
	return err
}

// Recv implements [Transport]. It silently discards datagrams from a source
// other than the pinned peer (once pinned) and malformed frames shorter
// than the fixed header, looping internally until a well-formed datagram
// arrives or the deadline expires.
func (t *UDPTransport) Recv(p *rft.Packet) error {
	for {
		n, addr, err := t.conn.ReadFromUDP(t.buf[:])
		if err != nil {
			if isConnRefused(err) {
				return rft.ErrConnRefused
			}
			return err
		}
		t.lastAddr = addr
		if t.pinned && !sameUDPAddr(addr, t.remote) {
			continue
		}
		pkt, err := rft.Decode(t.buf[:n])
		if err != nil {
			continue
		}
		*p = pkt
		return nil
	}
}

// SetTimeout implements [Transport].
func (t *UDPTransport) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return t.conn.SetReadDeadline(time.Time{})
	}
	return t.conn.SetReadDeadline(time.Now().Add(d))
}

// Close implements [Transport].
func (t *UDPTransport) Close() error { return t.conn.Close() }

// PinLastPeer implements [PeerPinner].
func (t *UDPTransport) PinLastPeer() {
	t.remote = t.lastAddr
	t.pinned = true
}

// ResetPeer implements [PeerPinner].
func (t *UDPTransport) ResetPeer() {
	if t.connected {
		return // a dialed client socket never unbinds from its one peer.
	}
	t.pinned = false
	t.remote = nil
	t.lastAddr = nil
}

func sameUDPAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Port == b.Port && a.IP.Equal(b.IP)
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
