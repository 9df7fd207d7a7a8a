//go:build !unix

package transport

import (
	"net"
	"syscall"
)

func controlSocket(network, address string, c syscall.RawConn) error {
	return nil
}

func tuneConn(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetKeepAlive(true)
	}
}
