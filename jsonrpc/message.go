// Package jsonrpc implements the minimal JSON-RPC 2.0 envelope types that
// the stdio transport treats as an opaque, swappable collaborator (see
// stdio's package doc). The transport never inspects method names or
// parameter bodies; it only needs to classify a payload as a request,
// response, or notification and to read/write its id.
package jsonrpc

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

const Version = "2.0"

// Standard JSON-RPC 2.0 error codes. The stdio package defines no codes of
// its own: it uses CodeInternalError for handler panics, timeouts, and
// closed or disconnected transports, and CodeMethodNotFound when no request
// handler is registered.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ID is a JSON-RPC request identifier: either a non-empty string or a
// signed 64-bit integer. The zero value is "no id" (used by Notification).
type ID struct {
	str    string
	num    int64
	isStr  bool
	isNum  bool
}

// NewStringID builds a string-valued ID.
func NewStringID(s string) ID { return ID{str: s, isStr: true} }

// NewIntID builds an integer-valued ID.
func NewIntID(n int64) ID { return ID{num: n, isNum: true} }

// IsZero reports whether the ID was never set.
func (id ID) IsZero() bool { return !id.isStr && !id.isNum }

// Key returns the canonical decimal-string form used to key the
// correlation table, per spec.md's "Request id" data model.
func (id ID) Key() string {
	if id.isStr {
		return id.str
	}
	if id.isNum {
		return strconv.FormatInt(id.num, 10)
	}
	return ""
}

func (id ID) String() string { return id.Key() }

// MarshalJSON emits a JSON string or number, matching whichever form the
// ID was constructed with.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	if id.isNum {
		return json.Marshal(id.num)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts either a JSON string or a JSON number, as required
// by the JSON-RPC 2.0 spec for request/response ids.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*id = ID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "jsonrpc: decode string id")
		}
		*id = ID{str: s, isStr: true}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "jsonrpc: decode numeric id")
	}
	*id = ID{num: n, isNum: true}
	return nil
}

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification is a JSON-RPC 2.0 notification envelope (no id).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result or
// Error is populated.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewInternalError builds a Response carrying an InternalError for id,
// the shape the transport uses for handler failures, request timeouts,
// and "transport closed"/"transport not connected" conditions.
func NewInternalError(id ID, message string) Response {
	return Response{
		JSONRPC: Version,
		ID:      id,
		Error: &Error{
			Code:    CodeInternalError,
			Message: message,
		},
	}
}

// Serialize encodes msg (a Request, Response, or Notification) as JSON.
func Serialize(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "jsonrpc: serialize")
	}
	return data, nil
}

// envelope is used only to classify a raw payload before a typed decode.
type envelope struct {
	ID     json.RawMessage `json:"id"`
	Method json.RawMessage `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// Kind identifies what a raw payload deserializes as.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequest
	KindResponse
	KindNotification
)

// LooksLikeRequest is the reader's fast substring pre-check from spec.md
// §4.4/§9: it is a heuristic only. A payload that contains both tokens but
// fails the subsequent typed decode must still fall through to response/
// notification classification — see Classify.
func LooksLikeRequest(payload []byte) bool {
	return containsToken(payload, []byte(`"method"`)) && containsToken(payload, []byte(`"id"`))
}

func containsToken(haystack, needle []byte) bool {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return true
		}
	}
	return false
}

// Classify deserializes payload and reports what it is, along with the
// decoded value (*Request, *Response, or *Notification). The substring
// pre-check (LooksLikeRequest) is only ever used to pick the first typed
// decode attempt; every candidate is still validated by Unmarshal, so a
// false-positive pre-check cannot misclassify a payload.
func Classify(payload []byte) (Kind, any) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return KindUnknown, nil
	}

	hasID := len(env.ID) > 0 && string(env.ID) != "null"
	hasMethod := len(env.Method) > 0 && string(env.Method) != "null"
	hasResultOrError := len(env.Result) > 0 || len(env.Error) > 0

	tryRequest := func() (Kind, any) {
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil || req.Method == "" {
			return KindUnknown, nil
		}
		return KindRequest, &req
	}
	tryResponse := func() (Kind, any) {
		var resp Response
		if err := json.Unmarshal(payload, &resp); err != nil {
			return KindUnknown, nil
		}
		if resp.Result == nil && resp.Error == nil {
			return KindUnknown, nil
		}
		return KindResponse, &resp
	}
	tryNotification := func() (Kind, any) {
		var notif Notification
		if err := json.Unmarshal(payload, &notif); err != nil || notif.Method == "" {
			return KindUnknown, nil
		}
		return KindNotification, &notif
	}

	if LooksLikeRequest(payload) {
		if k, v := tryRequest(); k != KindUnknown {
			return k, v
		}
	}
	if hasID && hasResultOrError {
		if k, v := tryResponse(); k != KindUnknown {
			return k, v
		}
	}
	if hasMethod {
		if k, v := tryNotification(); k != KindUnknown {
			return k, v
		}
	}
	// Fallthrough: try every shape regardless of the presence check, in
	// case a payload's field combination was ambiguous.
	if k, v := tryRequest(); k != KindUnknown {
		return k, v
	}
	if k, v := tryResponse(); k != KindUnknown {
		return k, v
	}
	if k, v := tryNotification(); k != KindUnknown {
		return k, v
	}
	return KindUnknown, nil
}
