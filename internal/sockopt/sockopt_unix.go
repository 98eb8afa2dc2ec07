//go:build unix

package sockopt

import (
	"net"

	"golang.org/x/sys/unix"
)

// TuneBuffers sets SO_RCVBUF and SO_SNDBUF on conn's underlying file
// descriptor. A zero size leaves that buffer untouched. Sizing either
// buffer to a few congestion windows' worth of bytes keeps the kernel from
// silently dropping datagrams during a burst at the top of Slow Start.
func TuneBuffers(conn *net.UDPConn, rcvBuf, sndBuf int) error {
	if rcvBuf <= 0 && sndBuf <= 0 {
		return nil
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if rcvBuf > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBuf); e != nil {
				sockErr = e
				return
			}
		}
		if sndBuf > 0 {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, sndBuf)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
