package stdio

import (
	"bytes"
	"strconv"
	"strings"

	"code.hybscloud.com/iox"
	"github.com/pkg/errors"
)

// MaxContentLength is the largest body a frame may declare, per spec.md §6.
const MaxContentLength = 1 << 20 // 1 MiB

// ErrMalformedFrame reports a header region with no valid Content-Length.
// Recovered locally: the reader drops the offending header region and
// keeps scanning.
var ErrMalformedFrame = errors.New("stdio: malformed frame header")

const crlfcrlf = "\r\n\r\n"

// encodeFrame produces "Content-Length: N\r\n\r\n" followed by payload. No
// other headers are ever emitted, per spec.md §6.
func encodeFrame(payload []byte) []byte {
	header := "Content-Length: " + strconv.Itoa(len(payload)) + crlfcrlf
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out
}

// extractFrame scans buf for one complete frame. It returns:
//   - (payload, consumed, nil) when a full frame was found; buf[:consumed]
//     should be dropped by the caller.
//   - (nil, 0, iox.ErrMore) when buf holds an incomplete frame (more bytes
//     needed) — buf must not be mutated.
//   - (nil, consumed, ErrMalformedFrame) when the header region up to the
//     first blank line carried no usable Content-Length; the caller must
//     still drop buf[:consumed] and keep scanning the remainder.
//
// Header lines are split on bare "\n" (accepting "\r\n\n" line endings on
// input, per spec.md §6) so CR-less input is accepted. Output framing is
// always emitted with CRLF by encodeFrame.
func extractFrame(buf []byte) (payload []byte, consumed int, err error) {
	headerEnd, termLen := findHeaderEnd(buf)
	if headerEnd < 0 {
		return nil, 0, iox.ErrMore
	}

	contentLength, ok := parseContentLength(buf[:headerEnd])
	if !ok {
		// Drop the malformed header region and let the reader continue.
		return nil, headerEnd + termLen, ErrMalformedFrame
	}

	total := headerEnd + termLen + contentLength
	if len(buf) < total {
		return nil, 0, iox.ErrMore
	}

	body := buf[headerEnd+termLen : total]
	out := make([]byte, len(body))
	copy(out, body)
	return out, total, nil
}

// findHeaderEnd returns the index of the first blank-line terminator in buf
// ("\r\n\r\n" or bare "\n\n") and its length, or (-1, 0) if none has arrived
// yet.
func findHeaderEnd(buf []byte) (int, int) {
	crlf := bytes.Index(buf, []byte(crlfcrlf))
	lf := bytes.Index(buf, []byte("\n\n"))
	switch {
	case crlf < 0 && lf < 0:
		return -1, 0
	case crlf < 0:
		return lf, 2
	case lf < 0:
		return crlf, 4
	case lf < crlf:
		return lf, 2
	default:
		return crlf, 4
	}
}

// parseContentLength scans the header region line by line (accepting bare
// "\n" line endings), lowercasing header names and left-trimming values.
// Duplicate headers: last writer wins. Headers other than content-length
// are ignored.
func parseContentLength(header []byte) (int, bool) {
	text := strings.ReplaceAll(string(header), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	length := -1
	found := false
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(line[:colon]))
		if name != "content-length" {
			continue
		}
		value := strings.TrimLeft(line[colon+1:], " \t")
		value = strings.TrimSpace(value)
		n, err := strconv.ParseUint(value, 10, 63)
		if err != nil {
			continue
		}
		if n > MaxContentLength {
			continue
		}
		length = int(n)
		found = true
	}
	if !found {
		return 0, false
	}
	return length, true
}
