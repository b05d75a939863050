//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// setNoDelay disables Nagle on TCP sockets so small control frames leave immediately.
func setNoDelay(nc net.Conn) error {
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		return nil
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
