// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package ntls

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// pollWaitMillis is the epoll timeout used by Poller.Run.
const pollWaitMillis = 100

// Poller turns epoll readiness into wakes of the tasks blocked on
// registered descriptors. Descriptors are registered edge-triggered, so a
// transport registers its waker before it attempts the system call.
type Poller struct {
	epfd int
	mu   sync.Mutex
	fds  map[int32]*pollDesc
}

// pollDesc holds the wakers of the tasks blocked on one descriptor.
type pollDesc struct {
	reader atomic.Pointer[Waker]
	writer atomic.Pointer[Waker]
}

func (d *pollDesc) waitRead(w Waker)  { d.reader.Store(&w) }
func (d *pollDesc) waitWrite(w Waker) { d.writer.Store(&w) }

func wake(slot *atomic.Pointer[Waker]) {
	if w := slot.Swap(nil); w != nil {
		(*w).Wake()
	}
}

// NewPoller creates an epoll instance.
func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("ntls: epoll create: %w", err)
	}
	return &Poller{epfd: epfd, fds: make(map[int32]*pollDesc)}, nil
}

func (p *Poller) register(fd int) (*pollDesc, error) {
	d := &pollDesc{}
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     int32(fd),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return nil, fmt.Errorf("ntls: epoll ctl add: %w", err)
	}
	p.fds[int32(fd)] = d
	return d, nil
}

func (p *Poller) unregister(fd int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(p.fds, int32(fd))
}

// Wait waits up to timeoutMs for readiness events and wakes the blocked
// tasks. A negative timeout waits indefinitely. It returns the number of
// events delivered.
func (p *Poller) Wait(timeoutMs int) (int, error) {
	const maxEvents = 128
	var events [maxEvents]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], timeoutMs)
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ntls: epoll wait: %w", err)
	}
	for i := range n {
		ev := events[i]
		p.mu.Lock()
		d := p.fds[ev.Fd]
		p.mu.Unlock()
		if d == nil {
			continue
		}
		hup := ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		if hup || ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			wake(&d.reader)
		}
		if hup || ev.Events&unix.EPOLLOUT != 0 {
			wake(&d.writer)
		}
	}
	return n, nil
}

// Run delivers readiness events until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if _, err := p.Wait(pollWaitMillis); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the epoll descriptor.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
