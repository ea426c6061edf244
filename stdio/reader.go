package stdio

import (
	"fmt"
	"os"
	"time"

	"code.hybscloud.com/iox"
	"github.com/xtaci/stdiorpc/jsonrpc"
)

// reader is C4: the reader worker thread from spec.md §4.4. It owns the
// accumulate buffer, drives the frame codec, and dispatches classified
// payloads to the transport's handlers. Grounded on
// f5cb62f6_dominicnunez-codex-sdk-go__stdio.go's readLoop/handleRequest/
// handleNotification split and 9ad28943_MEKXH-golem__internal-mcp-connector
// stdio.go's framed read loop.
type reader struct {
	f         *os.File
	wake      wakeupPrimitive
	connected *connFlag
	exited    *exitFlag
	t         *Transport

	idleTimeout time.Duration
	waitTimeout time.Duration

	buf         []byte
	lastReadAt  time.Time
}

func newReader(f *os.File, wake wakeupPrimitive, connected *connFlag, exited *exitFlag, t *Transport, idleTimeout time.Duration) *reader {
	return &reader{
		f:           f,
		wake:        wake,
		connected:   connected,
		exited:      exited,
		t:           t,
		idleTimeout: idleTimeout,
		waitTimeout: 200 * time.Millisecond,
		lastReadAt:  time.Now(),
	}
}

// run is the reader thread's body. It returns when disconnected, on peer
// EOF, or on an unrecoverable read error.
func (r *reader) run() {
	defer r.exited.set(true)

	if err := setNonblocking(r.f); err != nil {
		r.t.reportError(fmt.Sprintf("stdio: reader setNonblocking: %v", err))
		r.connected.set(false)
		r.t.signalDisconnect()
		return
	}

	readBuf := make([]byte, 64*1024)
	for r.connected.get() {
		stdinReady, stdinHup, wakeReady, err := waitForInput(r.f, r.wake, r.waitTimeout)
		if err != nil {
			r.t.reportError(fmt.Sprintf("stdio: reader wait: %v", err))
			r.connected.set(false)
			r.t.signalDisconnect()
			return
		}
		if wakeReady {
			r.wake.drain()
		}
		if !r.connected.get() {
			return
		}

		if stdinReady {
			n, ok, rerr := readNonblocking(r.f, readBuf)
			if rerr != nil {
				r.t.reportError(fmt.Sprintf("stdio: reader read: %v", rerr))
				r.connected.set(false)
				r.t.signalDisconnect()
				return
			}
			if ok {
				if n == 0 {
					// Peer closed stdin: a clean EOF, not an error.
					r.connected.set(false)
					r.t.signalDisconnect()
					return
				}
				r.buf = append(r.buf, readBuf[:n]...)
				r.lastReadAt = time.Now()
				r.t.stats.BytesRead.Add(uint64(n))
				r.drainFrames()
			}
		}
		if stdinHup && len(r.buf) == 0 {
			r.connected.set(false)
			r.t.signalDisconnect()
			return
		}

		if r.idleTimeout > 0 && time.Since(r.lastReadAt) > r.idleTimeout {
			r.t.stats.IdleReadTimeouts.Add(1)
			r.t.reportError("stdio: idle read timeout")
			r.connected.set(false)
			r.t.signalDisconnect()
			return
		}
	}
}

// drainFrames repeatedly extracts complete frames from r.buf, dispatching
// each, until only an incomplete or empty remainder is left.
func (r *reader) drainFrames() {
	for {
		payload, consumed, err := extractFrame(r.buf)
		switch {
		case err == iox.ErrMore:
			return
		case err == ErrMalformedFrame:
			r.t.stats.MalformedFrames.Add(1)
			r.t.reportError("stdio: malformed frame header, skipping")
			r.buf = r.buf[consumed:]
			continue
		case err != nil:
			r.t.reportError(fmt.Sprintf("stdio: extractFrame: %v", err))
			r.buf = r.buf[consumed:]
			continue
		}
		r.buf = r.buf[consumed:]
		r.t.stats.FramesRead.Add(1)
		r.dispatch(payload)
	}
}

// dispatch classifies payload and routes it to the matching handler, per
// spec.md §4.4's "message classification" step. Requests run on a detached
// goroutine with panic recovery; responses resolve a pending slot;
// notifications run synchronously on the reader thread with the self-join
// flag held, so a notification handler may call Transport.Close without
// deadlocking against this very goroutine (spec.md §9's first Open
// Question).
func (r *reader) dispatch(payload []byte) {
	kind, msg := jsonrpc.Classify(payload)
	switch kind {
	case jsonrpc.KindRequest:
		req := msg.(*jsonrpc.Request)
		go r.t.handleRequest(req)
	case jsonrpc.KindResponse:
		resp := msg.(*jsonrpc.Response)
		if !r.t.correlator.resolve(resp.ID, *resp) {
			r.t.reportError(fmt.Sprintf("stdio: response for unknown id %q", resp.ID.Key()))
		}
	case jsonrpc.KindNotification:
		notif := msg.(*jsonrpc.Notification)
		r.t.inHandlerOnReaderThread.set(true)
		r.t.invokeNotify(notif)
		r.t.inHandlerOnReaderThread.set(false)
	default:
		r.t.stats.MalformedFrames.Add(1)
		r.t.reportError(fmt.Sprintf("stdio: unclassifiable payload: %s", trimForLog(payload)))
	}
}

func trimForLog(payload []byte) string {
	const max = 120
	if len(payload) <= max {
		return string(payload)
	}
	return string(payload[:max]) + "..."
}
