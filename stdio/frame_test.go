package stdio

import (
	"bytes"
	"strconv"
	"testing"

	"code.hybscloud.com/iox"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	frame := encodeFrame(payload)

	out, consumed, err := extractFrame(frame)
	if err != nil {
		t.Fatalf("extractFrame: %v", err)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed = %d, want %d", consumed, len(frame))
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("payload = %q, want %q", out, payload)
	}
}

func TestExtractFramePartial(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0","method":"ping"}`)
	frame := encodeFrame(payload)

	for cut := 0; cut < len(frame)-1; cut++ {
		_, _, err := extractFrame(frame[:cut])
		if err != iox.ErrMore {
			t.Fatalf("cut=%d: err = %v, want iox.ErrMore", cut, err)
		}
	}
}

func TestExtractFrameZeroLength(t *testing.T) {
	frame := encodeFrame(nil)
	out, consumed, err := extractFrame(frame)
	if err != nil {
		t.Fatalf("extractFrame: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("out = %q, want empty", out)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed = %d, want %d", consumed, len(frame))
	}
}

func TestExtractFrameMaxContentLength(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), MaxContentLength)
	frame := encodeFrame(payload)
	out, consumed, err := extractFrame(frame)
	if err != nil {
		t.Fatalf("extractFrame: %v", err)
	}
	if len(out) != MaxContentLength {
		t.Fatalf("len(out) = %d, want %d", len(out), MaxContentLength)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed mismatch")
	}
}

func TestExtractFrameOverMaxContentLengthIsMalformed(t *testing.T) {
	header := []byte("Content-Length: 9999999999\r\n\r\n")
	_, consumed, err := extractFrame(header)
	if err != ErrMalformedFrame {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
	if consumed != len(header) {
		t.Fatalf("consumed = %d, want %d", consumed, len(header))
	}
}

func TestExtractFrameBareLFHeader(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"ping"}`)
	raw := []byte("Content-Length: " + strconv.Itoa(len(body)) + "\n\n")
	raw = append(raw, body...)

	out, consumed, err := extractFrame(raw)
	if err != nil {
		t.Fatalf("extractFrame: %v", err)
	}
	if !bytes.Equal(out, body) {
		t.Fatalf("out = %q, want %q", out, body)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed = %d, want %d", consumed, len(raw))
	}
}

func TestExtractFrameCaseInsensitiveHeaderName(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"ping"}`)
	raw := []byte("CONTENT-LENGTH: " + strconv.Itoa(len(body)) + "\r\n\r\n")
	raw = append(raw, body...)

	out, _, err := extractFrame(raw)
	if err != nil {
		t.Fatalf("extractFrame: %v", err)
	}
	if !bytes.Equal(out, body) {
		t.Fatalf("out = %q, want %q", out, body)
	}
}

func TestExtractFrameMalformedHeaderSkipsAndContinues(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"ping"}`)
	good := encodeFrame(body)
	bad := []byte("X-Junk: nope\r\n\r\n")
	raw := append(append([]byte{}, bad...), good...)

	_, consumed, err := extractFrame(raw)
	if err != ErrMalformedFrame {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
	if consumed != len(bad) {
		t.Fatalf("consumed = %d, want %d", consumed, len(bad))
	}

	out, consumed2, err := extractFrame(raw[consumed:])
	if err != nil {
		t.Fatalf("second extractFrame: %v", err)
	}
	if !bytes.Equal(out, body) {
		t.Fatalf("out = %q, want %q", out, body)
	}
	if consumed2 != len(good) {
		t.Fatalf("consumed2 = %d, want %d", consumed2, len(good))
	}
}

func TestExtractFrameDuplicateHeaderLastWriterWins(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"ping"}`)
	raw := []byte("Content-Length: 1\r\nContent-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n")
	raw = append(raw, body...)

	out, _, err := extractFrame(raw)
	if err != nil {
		t.Fatalf("extractFrame: %v", err)
	}
	if !bytes.Equal(out, body) {
		t.Fatalf("out = %q, want %q (last Content-Length should win)", out, body)
	}
}

