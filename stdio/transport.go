// Package stdio implements a bidirectional JSON-RPC-over-stdio transport:
// length-prefixed framing, a reader/writer/timeout worker trio, a bounded
// write queue, and a request/response correlation table with per-request
// deadlines. The jsonrpc package supplies the wire envelope; stdio treats
// it as a swappable collaborator and never inspects method names itself.
//
// Grounded on f5cb62f6_dominicnunez-codex-sdk-go's StdioTransport (the
// overall worker-trio shape and lifecycle) and xtaci-kcptun's main()
// logging/shutdown cadence.
package stdio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/xtaci/stdiorpc/jsonrpc"
)

// RequestHandler answers an inbound request. A non-nil *jsonrpc.Error is
// sent as the response's error field; otherwise result is sent as-is.
type RequestHandler func(req *jsonrpc.Request) (result []byte, rerr *jsonrpc.Error)

// NotifyHandler handles an inbound notification. It runs synchronously on
// the reader thread (spec.md §4.4): it must return promptly, and it may
// call Transport.Close without deadlocking (see Close's self-join note).
type NotifyHandler func(n *jsonrpc.Notification)

// PanicHandler is invoked, if set, when a request or notification handler
// panics. The transport always recovers the panic regardless.
type PanicHandler func(recovered interface{})

// Transport is the facade described in spec.md §4.7: the single public
// entry point wiring together the frame codec, wakeup primitive, bounded
// write queue, reader/writer workers, and the correlation/timeout thread.
type Transport struct {
	stdin  *os.File
	stdout *os.File

	cfg Config

	connected    connFlag
	readerExited exitFlag
	writerExited exitFlag
	timerExited  exitFlag

	// inHandlerOnReaderThread is set around a synchronous notification
	// handler invocation. Close checks it to detect a self-join: a handler
	// calling Close from the reader thread must not block waiting for the
	// reader to exit, since it IS the reader.
	inHandlerOnReaderThread connFlag

	wake  wakeupPrimitive
	queue *writeQueue

	correlator *correlator
	stats      Stats

	onRequest RequestHandler
	onNotify  NotifyHandler
	onPanic   PanicHandler
	errHandle ErrorHandler

	idCounter atomic.Uint64
	sessionID string

	startOnce sync.Once
	closeOnce sync.Once
	started   bool
}

// New constructs a Transport over stdin/stdout with cfg. Call Start to
// launch its worker threads.
func New(stdin, stdout *os.File, cfg Config) (*Transport, error) {
	t := &Transport{
		stdin:     stdin,
		stdout:    stdout,
		cfg:       cfg,
		sessionID: newSessionID(),
	}

	wake, err := newWakeup()
	if err != nil {
		return nil, errors.Wrap(err, "stdio: new transport")
	}
	t.wake = wake
	t.correlator = newCorrelator(&t.connected, &t.stats)
	t.queue = newWriteQueue(cfg.WriteQueueMaxBytes, &t.connected, t.wake, t.handleOverflow)
	return t, nil
}

// OnRequest registers the request handler. Must be called before Start.
func (t *Transport) OnRequest(h RequestHandler) { t.onRequest = h }

// OnNotify registers the notification handler. Must be called before Start.
func (t *Transport) OnNotify(h NotifyHandler) { t.onNotify = h }

// OnPanic registers the panic handler. Must be called before Start.
func (t *Transport) OnPanic(h PanicHandler) { t.onPanic = h }

// SetErrorHandler registers the error-reporting sink. Must be called
// before Start to observe startup-time errors.
func (t *Transport) SetErrorHandler(h ErrorHandler) { t.errHandle = h }

// SessionID returns the transport's opaque session identifier (spec.md §3).
func (t *Transport) SessionID() string { return t.sessionID }

// Stats returns the transport's live diagnostic counters.
func (t *Transport) Stats() *Stats { return &t.stats }

// Connected reports whether the transport is still usable: false after
// Close, after peer EOF, after an unrecoverable I/O error, or after a
// write-queue overflow.
func (t *Transport) Connected() bool { return t.connected.get() }

// Wait blocks until the transport disconnects (Close, peer EOF, I/O
// error, or queue overflow). Front-ends use it to keep the process alive
// for exactly as long as the transport is usable.
func (t *Transport) Wait() {
	for t.connected.get() {
		time.Sleep(20 * time.Millisecond)
	}
}

// Start launches the reader, writer, and timeout worker threads. Safe to
// call once; subsequent calls are no-ops.
func (t *Transport) Start() {
	t.startOnce.Do(func() {
		t.connected.set(true)
		t.started = true

		r := newReader(t.stdin, t.wake, &t.connected, &t.readerExited, t, durationOrZero(t.cfg.IdleReadTimeoutMs))
		w := newWriter(t.stdout, t.queue, &t.connected, &t.writerExited, t, durationOrZero(t.cfg.WriteTimeoutMs))

		go r.run()
		go w.run()
		go t.correlator.runTimeoutLoop(&t.timerExited)
	})
}

// SendRequest serializes method/params as a request with a generated id,
// registers it for correlation with the configured request timeout, enqueues
// it, and blocks until a response arrives, the deadline expires, or the
// transport closes.
func (t *Transport) SendRequest(method string, params []byte) (jsonrpc.Response, error) {
	return t.sendRequest(jsonrpc.ID{}, method, params)
}

// SendRequestWithID behaves like SendRequest but preserves id as the
// request's id instead of generating one, per spec.md §4.7: a caller-supplied
// id (a non-empty string or an int64) is preserved; a zero id behaves
// exactly like SendRequest.
func (t *Transport) SendRequestWithID(id jsonrpc.ID, method string, params []byte) (jsonrpc.Response, error) {
	return t.sendRequest(id, method, params)
}

func (t *Transport) sendRequest(id jsonrpc.ID, method string, params []byte) (jsonrpc.Response, error) {
	if !t.connected.get() {
		return jsonrpc.NewInternalError(id, "Transport not connected"), nil
	}
	if id.IsZero() {
		id = jsonrpc.NewStringID(fmt.Sprintf("req-%d", t.idCounter.Add(1)))
	}

	req := jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: id, Method: method, Params: params}
	data, err := jsonrpc.Serialize(req)
	if err != nil {
		return jsonrpc.Response{}, err
	}

	var deadline time.Time
	if t.cfg.RequestTimeoutMs > 0 {
		deadline = time.Now().Add(durationOrZero(t.cfg.RequestTimeoutMs))
	}
	slot := t.correlator.register(id, deadline)

	// A failed enqueue is itself a fatal disconnect: handleOverflow has
	// already resolved every pending entry, this one included, with a
	// "Transport closed" InternalError by the time enqueue returns, so the
	// wait below completes promptly either way.
	t.queue.enqueue(encodeFrame(data))

	return slot.wait(), nil
}

// SendNotification serializes method/params as a notification and
// enqueues it. There is no response to wait for; enqueue failures are
// routed to the error handler rather than returned, since fire-and-forget
// callers have nothing useful to do with the error synchronously.
func (t *Transport) SendNotification(method string, params []byte) error {
	if !t.connected.get() {
		return ErrNotConnected
	}
	notif := jsonrpc.Notification{JSONRPC: jsonrpc.Version, Method: method, Params: params}
	data, err := jsonrpc.Serialize(notif)
	if err != nil {
		return err
	}
	// An overflow has already been reported via handleOverflow.
	t.queue.enqueue(encodeFrame(data))
	return nil
}

// Close shuts the transport down: it flips connected false, wakes every
// blocked worker, fails every pending request with a "transport closed"
// error, and waits up to 500ms per worker for it to exit before returning.
//
// Self-join: if Close is called from inside a notification handler (which
// runs synchronously on the reader thread per spec.md §4.4), the reader
// thread cannot wait on itself. inHandlerOnReaderThread, set only while a
// handler call is in flight on that thread, lets Close detect this and
// skip joining the reader — it is not a true goroutine-id check, just a
// flag toggled around the one call site that matters.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		selfJoin := t.inHandlerOnReaderThread.get()

		t.connected.set(false)
		if t.wake != nil {
			t.wake.signal()
		}
		t.queue.wake()
		t.correlator.wake()
		t.correlator.closeAll()

		if !selfJoin {
			waitExited(&t.readerExited, 500*time.Millisecond)
		}
		waitExited(&t.writerExited, 500*time.Millisecond)
		waitExited(&t.timerExited, 500*time.Millisecond)

		if t.wake != nil {
			t.wake.close()
		}
	})
	return nil
}

func waitExited(f *exitFlag, budget time.Duration) {
	deadline := time.Now().Add(budget)
	for !f.get() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

// signalDisconnect is called by the reader/writer workers on an
// unrecoverable condition: it flips connected false, wakes every other
// waiter (the peer worker, the queue, the timeout thread), and fails every
// pending SendRequest with a "Transport closed" InternalError so no request
// future is left waiting on a deadline that may never arrive (spec.md §7/§8
// scenario 3) — the same resolution Close itself performs.
func (t *Transport) signalDisconnect() {
	t.connected.set(false)
	if t.wake != nil {
		t.wake.signal()
	}
	t.queue.wake()
	t.correlator.wake()
	t.correlator.closeAll()
}

// handleOverflow is the write queue's overflow callback. A queue overflow is
// itself a fatal disconnect (spec.md §4.3), so it resolves pending requests
// the same way signalDisconnect does.
func (t *Transport) handleOverflow(reason string) {
	t.stats.QueueOverflows.Add(1)
	t.reportError("stdio: " + reason)
	t.correlator.closeAll()
}

func (t *Transport) reportError(reason string) {
	if t.errHandle != nil {
		t.errHandle(reason)
	}
}

// handleRequest runs the registered RequestHandler on its own goroutine
// (spec.md §4.4: requests must not block the reader thread), recovering
// any panic into an InternalError response.
func (t *Transport) handleRequest(req *jsonrpc.Request) {
	resp := t.invokeRequest(req)
	data, err := jsonrpc.Serialize(resp)
	if err != nil {
		t.reportError(fmt.Sprintf("stdio: serialize response: %v", err))
		return
	}
	if !t.queue.enqueue(encodeFrame(data)) {
		t.reportError("stdio: write queue overflow replying to request " + req.ID.Key())
	}
}

func (t *Transport) invokeRequest(req *jsonrpc.Request) (resp jsonrpc.Response) {
	defer func() {
		if r := recover(); r != nil {
			if t.onPanic != nil {
				t.onPanic(r)
			}
			resp = jsonrpc.NewInternalError(req.ID, fmt.Sprintf("handler panic: %v", r))
		}
	}()

	if t.onRequest == nil {
		return jsonrpc.Response{
			JSONRPC: jsonrpc.Version,
			ID:      req.ID,
			Error: &jsonrpc.Error{
				Code:    jsonrpc.CodeMethodNotFound,
				Message: "method not found: " + req.Method,
			},
		}
	}

	result, rerr := t.onRequest(req)
	if rerr != nil {
		return jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Error: rerr}
	}
	return jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: result}
}

// invokeNotify runs the registered NotifyHandler, recovering any panic.
func (t *Transport) invokeNotify(n *jsonrpc.Notification) {
	defer func() {
		if r := recover(); r != nil {
			if t.onPanic != nil {
				t.onPanic(r)
			}
		}
	}()
	if t.onNotify != nil {
		t.onNotify(n)
	}
}
