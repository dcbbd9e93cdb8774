// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package ntls

import (
	"fmt"
	"io"
	"net"
	"os"

	"code.hybscloud.com/iox"
	"golang.org/x/sys/unix"
)

// TCPConn is a non-blocking TCP socket driven by a Poller.
// It implements Transport.
type TCPConn struct {
	fd         int
	p          *Poller
	d          *pollDesc
	connecting bool
}

func newTCPConn(p *Poller, fd int, connecting bool) (*TCPConn, error) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	d, err := p.register(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &TCPConn{fd: fd, p: p, d: d, connecting: connecting}, nil
}

// DialTCP starts connecting to addr. Completion is observed by the first
// poll operation.
func DialTCP(p *Poller, addr string) (*TCPConn, error) {
	ta, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	sa, family := sockaddr(ta)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("connect", err)
	}
	return newTCPConn(p, fd, err == unix.EINPROGRESS)
}

// connected completes a pending connect. It reports iox.ErrWouldBlock
// while the handshake of the socket is still in flight.
func (c *TCPConn) connected(cx *Context) error {
	if !c.connecting {
		return nil
	}
	c.d.waitWrite(cx.Waker())
	soerr, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	if soerr != 0 {
		return os.NewSyscallError("connect", unix.Errno(soerr))
	}
	if _, err := unix.Getpeername(c.fd); err != nil {
		if err == unix.ENOTCONN {
			return iox.ErrWouldBlock
		}
		return os.NewSyscallError("getpeername", err)
	}
	c.connecting = false
	return nil
}

// PollRead implements Transport.
func (c *TCPConn) PollRead(cx *Context, p []byte) (int, error) {
	if err := c.connected(cx); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	c.d.waitRead(cx.Waker())
	n, err := unix.Read(c.fd, p)
	switch {
	case err == unix.EAGAIN:
		return 0, iox.ErrWouldBlock
	case err != nil:
		return 0, os.NewSyscallError("read", err)
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

// PollWrite implements Transport.
func (c *TCPConn) PollWrite(cx *Context, p []byte) (int, error) {
	if err := c.connected(cx); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	c.d.waitWrite(cx.Waker())
	n, err := unix.Write(c.fd, p)
	if err == unix.EAGAIN {
		return 0, iox.ErrWouldBlock
	}
	if err != nil {
		return 0, os.NewSyscallError("write", err)
	}
	return n, nil
}

// PollFlush implements Transport. The socket has no user-space buffer.
func (c *TCPConn) PollFlush(*Context) error {
	return nil
}

// PollClose shuts down the write side of the connection.
func (c *TCPConn) PollClose(cx *Context) error {
	if err := c.connected(cx); err != nil {
		return err
	}
	err := unix.Shutdown(c.fd, unix.SHUT_WR)
	if err != nil && err != unix.ENOTCONN {
		return os.NewSyscallError("shutdown", err)
	}
	return nil
}

// Close unregisters and closes the socket.
func (c *TCPConn) Close() error {
	c.p.unregister(c.fd)
	return unix.Close(c.fd)
}

// TCPListener is a non-blocking listening socket driven by a Poller.
type TCPListener struct {
	fd int
	p  *Poller
	d  *pollDesc
}

// ListenTCP listens on addr, e.g. "127.0.0.1:0".
func ListenTCP(p *Poller, addr string) (*TCPListener, error) {
	ta, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	sa, family := sockaddr(ta)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}
	d, err := p.register(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &TCPListener{fd: fd, p: p, d: d}, nil
}

// Addr returns the bound address.
func (l *TCPListener) Addr() net.Addr {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return nil
	}
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	}
	return nil
}

// PollAccept accepts a pending connection.
func (l *TCPListener) PollAccept(cx *Context) (*TCPConn, error) {
	l.d.waitRead(cx.Waker())
	fd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err == unix.EAGAIN {
		return nil, iox.ErrWouldBlock
	}
	if err != nil {
		return nil, os.NewSyscallError("accept", err)
	}
	return newTCPConn(l.p, fd, false)
}

// Close unregisters and closes the listening socket.
func (l *TCPListener) Close() error {
	l.p.unregister(l.fd)
	return unix.Close(l.fd)
}

func sockaddr(a *net.TCPAddr) (unix.Sockaddr, int) {
	if ip4 := a.IP.To4(); ip4 != nil || a.IP == nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	return sa, unix.AF_INET6
}

func (c *TCPConn) String() string {
	return fmt.Sprintf("tcp(fd=%d)", c.fd)
}
