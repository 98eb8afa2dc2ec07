//go:build !unix

package sockopt

import "net"

// TuneBuffers is a no-op on non-unix targets; the portable net package
// exposes no buffer-sizing knob there.
func TuneBuffers(conn *net.UDPConn, rcvBuf, sndBuf int) error {
	return nil
}
