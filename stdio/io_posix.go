//go:build !windows

package stdio

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func setNonblocking(f *os.File) error {
	if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
		return errors.Wrap(err, "stdio: set nonblocking")
	}
	return nil
}

// readNonblocking wraps a single read(2). ok=false with err=nil signals
// EAGAIN/EWOULDBLOCK/EINTR — the caller should retry after the next wait.
func readNonblocking(f *os.File, buf []byte) (n int, ok bool, err error) {
	n, rerr := unix.Read(int(f.Fd()), buf)
	if rerr != nil {
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK || rerr == unix.EINTR {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(rerr, "stdio: read")
	}
	return n, true, nil
}

// writeNonblocking attempts a single write(2) of data. ok=false with
// err=nil signals EAGAIN/EWOULDBLOCK/EINTR — the caller should poll
// POLLOUT and retry.
func writeNonblocking(f *os.File, data []byte) (n int, ok bool, err error) {
	n, werr := unix.Write(int(f.Fd()), data)
	if werr != nil {
		if werr == unix.EAGAIN || werr == unix.EWOULDBLOCK {
			return 0, false, nil
		}
		if werr == unix.EINTR {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(werr, "stdio: write")
	}
	return n, true, nil
}

// pollWritable blocks up to timeout waiting for f to become writable.
func pollWritable(f *os.File, timeout time.Duration) (ready bool, err error) {
	fds := []unix.PollFd{{Fd: int32(f.Fd()), Events: unix.POLLOUT}}
	n, perr := unix.Poll(fds, int(timeout/time.Millisecond))
	if perr != nil {
		if perr == unix.EINTR {
			return false, nil
		}
		return false, errors.Wrap(perr, "stdio: poll POLLOUT")
	}
	if n == 0 {
		return false, nil
	}
	return fds[0].Revents&unix.POLLOUT != 0, nil
}
