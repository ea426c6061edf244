package stdio

import (
	"fmt"
	"os"
	"time"
)

// writer is C5: the writer worker thread from spec.md §4.5. It drains the
// bounded write queue in FIFO order and retries non-blocking writes against
// a poll-bounded readiness wait, enforcing an optional per-frame write
// deadline. Grounded on generic/rawcopy_unix.go's EAGAIN-retry-with-poll
// loop, generalized from a raw byte relay to whole-frame writes.
type writer struct {
	f         *os.File
	queue     *writeQueue
	connected *connFlag
	exited    *exitFlag
	t         *Transport

	writeTimeout time.Duration
}

func newWriter(f *os.File, queue *writeQueue, connected *connFlag, exited *exitFlag, t *Transport, writeTimeout time.Duration) *writer {
	return &writer{
		f:            f,
		queue:        queue,
		connected:    connected,
		exited:       exited,
		t:            t,
		writeTimeout: writeTimeout,
	}
}

func (w *writer) run() {
	defer w.exited.set(true)

	if err := setNonblocking(w.f); err != nil {
		w.t.reportError(fmt.Sprintf("stdio: writer setNonblocking: %v", err))
		w.connected.set(false)
		w.t.signalDisconnect()
		return
	}

	for {
		frame, ok := w.queue.dequeueBlocking()
		if !ok {
			return
		}
		if !w.writeFrame(frame) {
			return
		}
	}
}

// writeFrame writes frame in full, retrying on EAGAIN/EWOULDBLOCK/EINTR up
// to the configured write deadline (0 means no deadline). Returns false on
// an unrecoverable error or deadline expiry, in which case the transport is
// marked disconnected.
func (w *writer) writeFrame(frame []byte) bool {
	deadline := time.Time{}
	if w.writeTimeout > 0 {
		deadline = time.Now().Add(w.writeTimeout)
	}

	written := 0
	for written < len(frame) {
		n, ok, err := writeNonblocking(w.f, frame[written:])
		if err != nil {
			w.t.reportError(fmt.Sprintf("stdio: writer write: %v", err))
			w.connected.set(false)
			w.t.signalDisconnect()
			return false
		}
		if ok {
			written += n
			w.queue.accountWritten(n)
			continue
		}

		wait := 50 * time.Millisecond
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				w.t.reportError("stdio: write timeout")
				w.connected.set(false)
				w.t.signalDisconnect()
				return false
			}
			if remaining < wait {
				wait = remaining
			}
		}
		ready, perr := pollWritable(w.f, wait)
		if perr != nil {
			w.t.reportError(fmt.Sprintf("stdio: writer poll: %v", perr))
			w.connected.set(false)
			w.t.signalDisconnect()
			return false
		}
		_ = ready
	}
	w.t.stats.FramesWritten.Add(1)
	w.t.stats.BytesWritten.Add(uint64(len(frame)))
	return true
}
