package stdio

import "github.com/pkg/errors"

// ErrorHandler receives the errors the transport reports: framing errors
// (malformed headers, unclassifiable payloads, responses for unknown ids),
// write-queue overflow, read/write/wait failures, and idle-read and write
// timeouts. Not reported here: peer EOF or hang-up on stdin, per-request
// timeouts (they resolve the pending request instead), handler panics (see
// PanicHandler), and sends on a disconnected transport. The cmd/ front-ends
// log what it receives; the transport itself never logs directly.
type ErrorHandler func(reason string)

var (
	// ErrTransportClosed is the sentinel for a closed transport. No function
	// in this package returns or reports it: requests failed by Close or by
	// a disconnect resolve with an InternalError whose message is
	// "Transport closed".
	ErrTransportClosed = errors.New("stdio: transport closed")
	// ErrNotConnected is returned by SendNotification before Start or after
	// disconnection. SendRequest surfaces the same condition as a Response
	// carrying a "Transport not connected" InternalError instead, since it
	// already returns a Response value for every other failure mode.
	ErrNotConnected = errors.New("stdio: transport not connected")
	// ErrQueueOverflow is the fatal backpressure condition from spec.md §4.3.
	ErrQueueOverflow = errors.New("stdio: write queue overflow")
)
