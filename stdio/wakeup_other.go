//go:build !linux && !windows

package stdio

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// selfPipeWakeup is the self-pipe wakeup primitive (spec.md §4.2, "other
// POSIX" variant): a non-blocking pipe whose read end the reader's poll
// watches alongside stdin. Grounded on generic/rawcopy_unix.go's raw-fd
// EAGAIN-retry style, here used for a readiness signal rather than a data
// relay.
type selfPipeWakeup struct {
	r, w   int
	closed bool
}

func newWakeup() (wakeupPrimitive, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, errors.Wrap(err, "stdio: pipe2")
	}
	return &selfPipeWakeup{r: fds[0], w: fds[1]}, nil
}

func (w *selfPipeWakeup) signal() {
	var b [1]byte
	_, _ = unix.Write(w.w, b[:])
}

func (w *selfPipeWakeup) drain() {
	var buf [64]byte
	for {
		_, err := unix.Read(w.r, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *selfPipeWakeup) close() {
	if w.closed {
		return
	}
	w.closed = true
	unix.Close(w.r)
	unix.Close(w.w)
}

// waitForInput watches f (typically stdin) and the self-pipe's read end
// with poll, blocking up to timeout.
func waitForInput(f *os.File, wake wakeupPrimitive, timeout time.Duration) (stdinReady, stdinHup, wakeReady bool, err error) {
	sp, ok := wake.(*selfPipeWakeup)
	if !ok {
		return false, false, false, errors.New("stdio: wakeup primitive mismatch for platform")
	}

	fds := []unix.PollFd{
		{Fd: int32(f.Fd()), Events: unix.POLLIN},
		{Fd: int32(sp.r), Events: unix.POLLIN},
	}
	n, perr := unix.Poll(fds, int(timeout/time.Millisecond))
	if perr != nil {
		if perr == unix.EINTR {
			return false, false, false, nil
		}
		return false, false, false, errors.Wrap(perr, "stdio: poll")
	}
	if n == 0 {
		return false, false, false, nil
	}
	if fds[0].Revents&unix.POLLIN != 0 {
		stdinReady = true
	}
	if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		stdinReady = true
		stdinHup = true
	}
	if fds[1].Revents&unix.POLLIN != 0 {
		wakeReady = true
	}
	return stdinReady, stdinHup, wakeReady, nil
}
