//go:build windows

package stdio

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// windowsWakeup is the manual-reset-event wakeup primitive (spec.md §4.2,
// Windows variant). signal calls SetEvent; the reader's
// WaitForMultipleObjects watches the event's handle alongside stdin.
type windowsWakeup struct {
	handle windows.Handle
	closed bool
}

func newWakeup() (wakeupPrimitive, error) {
	h, err := windows.CreateEvent(nil, 1 /* manual reset */, 0, nil)
	if err != nil {
		return nil, errors.Wrap(err, "stdio: CreateEvent")
	}
	return &windowsWakeup{handle: h}, nil
}

func (w *windowsWakeup) signal() {
	_ = windows.SetEvent(w.handle)
}

// drain resets the manual-reset event; level-triggered semantics mean the
// reader must do this after observing the signal, per spec.md §4.2.
func (w *windowsWakeup) drain() {
	_ = windows.ResetEvent(w.handle)
}

func (w *windowsWakeup) close() {
	if w.closed {
		return
	}
	w.closed = true
	windows.CloseHandle(w.handle)
}

// waitForInput waits on f's own handle (typically stdin) and the wakeup
// event using WaitForMultipleObjects, blocking up to timeout. stdinHup is
// never set on this platform.
func waitForInput(f *os.File, wake wakeupPrimitive, timeout time.Duration) (stdinReady, stdinHup, wakeReady bool, err error) {
	ww, ok := wake.(*windowsWakeup)
	if !ok {
		return false, false, false, errors.New("stdio: wakeup primitive mismatch for platform")
	}

	handles := []windows.Handle{windows.Handle(f.Fd()), ww.handle}
	ms := uint32(timeout / time.Millisecond)
	idx, werr := windows.WaitForMultipleObjects(handles, false, ms)
	switch idx {
	case windows.WAIT_OBJECT_0:
		stdinReady = true
	case windows.WAIT_OBJECT_0 + 1:
		wakeReady = true
	case windows.WAIT_TIMEOUT:
		// nothing ready within the ceiling; not an error
	default:
		return false, false, false, errors.Wrap(werr, "stdio: WaitForMultipleObjects")
	}
	return stdinReady, stdinHup, wakeReady, nil
}
