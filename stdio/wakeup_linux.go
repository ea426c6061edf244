//go:build linux

package stdio

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// linuxWakeup is the eventfd-backed wakeup primitive (spec.md §4.2,
// Linux variant): a non-blocking, cloexec eventfd watched by the reader's
// epoll alongside stdin. Grounded on the raw-fd syscall style of
// generic/rawcopy_unix.go, replacing the TCP relay loop with a single
// epoll_wait call.
type linuxWakeup struct {
	fd       int
	epfd     int
	stdinReg bool
	closed   bool
}

func newWakeup() (wakeupPrimitive, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "stdio: eventfd")
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "stdio: epoll_create1")
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		unix.Close(fd)
		unix.Close(epfd)
		return nil, errors.Wrap(err, "stdio: epoll_ctl add eventfd")
	}
	return &linuxWakeup{fd: fd, epfd: epfd}, nil
}

func (w *linuxWakeup) signal() {
	var one [8]byte
	one[7] = 1
	_, _ = unix.Write(w.fd, one[:])
}

func (w *linuxWakeup) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *linuxWakeup) close() {
	if w.closed {
		return
	}
	w.closed = true
	unix.Close(w.fd)
	unix.Close(w.epfd)
}

func (w *linuxWakeup) registerStdin(stdinFD int) error {
	if w.stdinReg {
		return nil
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(stdinFD)}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_ADD, stdinFD, &ev); err != nil {
		return errors.Wrap(err, "stdio: epoll_ctl add stdin")
	}
	w.stdinReg = true
	return nil
}

// waitForInput watches f (typically stdin) and the wakeup eventfd with
// epoll, blocking up to timeout. It reports which of the two became
// readable (or hung up).
func waitForInput(f *os.File, wake wakeupPrimitive, timeout time.Duration) (stdinReady, stdinHup, wakeReady bool, err error) {
	lw, ok := wake.(*linuxWakeup)
	if !ok {
		return false, false, false, errors.New("stdio: wakeup primitive mismatch for platform")
	}
	stdinFD := int(f.Fd())
	if err := lw.registerStdin(stdinFD); err != nil {
		return false, false, false, err
	}

	out := make([]unix.EpollEvent, 2)
	n, werr := unix.EpollWait(lw.epfd, out, int(timeout/time.Millisecond))
	if werr != nil {
		if werr == unix.EINTR {
			return false, false, false, nil
		}
		return false, false, false, errors.Wrap(werr, "stdio: epoll_wait")
	}
	for i := 0; i < n; i++ {
		switch int(out[i].Fd) {
		case stdinFD:
			stdinReady = true
			if out[i].Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				stdinHup = true
			}
		case lw.fd:
			wakeReady = true
		}
	}
	return stdinReady, stdinHup, wakeReady, nil
}
