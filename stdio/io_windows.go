//go:build windows

package stdio

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// setNonblocking is a no-op on Windows: console/pipe handles for stdin and
// stdout don't expose the POSIX O_NONBLOCK toggle, and inherited stdio
// handles aren't guaranteed to have been opened with FILE_FLAG_OVERLAPPED
// (console handles never support it at all), so readNonblocking/
// writeNonblocking below fall back to plain synchronous ReadFile/WriteFile
// rather than issuing overlapped requests against a handle that may reject
// them. See DESIGN.md's Open Question entry on Windows I/O for the reasoning
// and what a real overlapped implementation would require.
func setNonblocking(f *os.File) error { return nil }

// readNonblocking performs a synchronous ReadFile. waitForInput's
// WaitForMultipleObjects wait (wakeup_windows.go) still bounds how long the
// reader blocks overall; this call itself blocks until data, EOF, or error.
func readNonblocking(f *os.File, buf []byte) (n int, ok bool, err error) {
	var done uint32
	ferr := windows.ReadFile(windows.Handle(f.Fd()), buf, &done, nil)
	if ferr != nil {
		if ferr == windows.ERROR_IO_PENDING {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(ferr, "stdio: ReadFile")
	}
	return int(done), true, nil
}

// writeNonblocking performs a synchronous WriteFile.
func writeNonblocking(f *os.File, data []byte) (n int, ok bool, err error) {
	var done uint32
	ferr := windows.WriteFile(windows.Handle(f.Fd()), data, &done, nil)
	if ferr != nil {
		if ferr == windows.ERROR_IO_PENDING {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(ferr, "stdio: WriteFile")
	}
	return int(done), true, nil
}

// pollWritable: Windows stdout handles have no poll(2) equivalent for a
// plain file/pipe; a synchronous WriteFile already blocks for the bounded
// time the OS needs, so there is nothing to wait for separately.
func pollWritable(f *os.File, timeout time.Duration) (ready bool, err error) {
	return true, nil
}
