//go:build !linux

package transport

import "net"

func setNoDelay(nc net.Conn) error {
	if tc, ok := nc.(*net.TCPConn); ok {
		return tc.SetNoDelay(true)
	}
	return nil
}
