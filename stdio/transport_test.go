package stdio

import (
	"os"
	"testing"
	"time"

	"github.com/xtaci/stdiorpc/jsonrpc"
)

func newPipePair(t *testing.T) (clientIn, clientOut, serverIn, serverOut *os.File) {
	t.Helper()
	c2s_r, c2s_w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	s2c_r, s2c_w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	// client writes to c2s_w, server reads from c2s_r.
	// server writes to s2c_w, client reads from s2c_r.
	return s2c_r, c2s_w, c2s_r, s2c_w
}

func testConfig() Config {
	cfg := NewConfig()
	cfg.RequestTimeoutMs = 2000
	cfg.WriteQueueMaxBytes = 1 << 16
	return cfg
}

func TestTransportEchoRoundTrip(t *testing.T) {
	clientIn, clientOut, serverIn, serverOut := newPipePair(t)
	defer clientIn.Close()
	defer clientOut.Close()
	defer serverIn.Close()
	defer serverOut.Close()

	client, err := New(clientIn, clientOut, testConfig())
	if err != nil {
		t.Fatalf("New(client): %v", err)
	}
	server, err := New(serverIn, serverOut, testConfig())
	if err != nil {
		t.Fatalf("New(server): %v", err)
	}

	server.OnRequest(func(req *jsonrpc.Request) ([]byte, *jsonrpc.Error) {
		return req.Params, nil
	})

	client.Start()
	server.Start()
	defer client.Close()
	defer server.Close()

	resp, err := client.SendRequest("echo", []byte(`"hello"`))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %v", resp.Error)
	}
	if string(resp.Result) != `"hello"` {
		t.Fatalf("result = %q, want %q", resp.Result, `"hello"`)
	}
}

func TestTransportRequestTimeout(t *testing.T) {
	clientIn, clientOut, serverIn, serverOut := newPipePair(t)
	defer clientIn.Close()
	defer clientOut.Close()
	defer serverIn.Close()
	defer serverOut.Close()

	cfg := testConfig()
	cfg.RequestTimeoutMs = 50

	client, err := New(clientIn, clientOut, cfg)
	if err != nil {
		t.Fatalf("New(client): %v", err)
	}
	server, err := New(serverIn, serverOut, cfg)
	if err != nil {
		t.Fatalf("New(server): %v", err)
	}
	// Server never responds, so the client must see a timeout.
	server.OnRequest(func(req *jsonrpc.Request) ([]byte, *jsonrpc.Error) {
		select {}
	})

	client.Start()
	server.Start()
	defer client.Close()
	defer server.Close()

	resp, err := client.SendRequest("stall", nil)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected a timeout error response")
	}
}

func TestTransportSendAfterCloseReturnsNotConnected(t *testing.T) {
	clientIn, clientOut, serverIn, serverOut := newPipePair(t)
	defer clientIn.Close()
	defer clientOut.Close()
	defer serverIn.Close()
	defer serverOut.Close()

	client, err := New(clientIn, clientOut, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	client.Start()
	client.Close()

	resp, err := client.SendRequest("x", nil)
	if err != nil {
		t.Fatalf("SendRequest err = %v, want nil", err)
	}
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeInternalError {
		t.Fatalf("resp.Error = %v, want an InternalError", resp.Error)
	}
	if err := client.SendNotification("x", nil); err != ErrNotConnected {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

// TestSignalDisconnectResolvesPendingRequests covers spec.md §7/§8 scenario
// 3: a fatal disconnect (I/O error, EOF, idle-read timeout, write timeout)
// must resolve every pending SendRequest immediately with a "Transport
// closed" InternalError, not leave it waiting on its own per-request
// deadline. RequestTimeoutMs is disabled here so a pass can only mean
// signalDisconnect itself resolved the pending entry.
func TestSignalDisconnectResolvesPendingRequests(t *testing.T) {
	clientIn, clientOut, serverIn, serverOut := newPipePair(t)
	defer clientIn.Close()
	defer clientOut.Close()
	defer serverIn.Close()
	defer serverOut.Close()

	cfg := testConfig()
	cfg.RequestTimeoutMs = 0

	client, err := New(clientIn, clientOut, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	client.Start()
	defer client.Close()

	done := make(chan jsonrpc.Response, 1)
	go func() {
		resp, err := client.SendRequest("stall", nil)
		if err != nil {
			t.Errorf("SendRequest err = %v, want nil", err)
		}
		done <- resp
	}()

	time.Sleep(20 * time.Millisecond) // let SendRequest register and enqueue
	client.signalDisconnect()

	select {
	case resp := <-done:
		if resp.Error == nil || resp.Error.Message != "Transport closed" {
			t.Fatalf("resp.Error = %v, want Transport closed", resp.Error)
		}
	case <-time.After(time.Second):
		t.Fatal("pending request was not resolved after signalDisconnect")
	}
}

// TestQueueOverflowResolvesPendingRequests covers the same scenario 3
// guarantee for a write-queue overflow: with RequestTimeoutMs disabled and
// the queue capacity forced below a single frame, SendRequest's own enqueue
// call overflows synchronously, and that overflow must resolve the just-
// registered pending entry rather than leave it parked.
func TestQueueOverflowResolvesPendingRequests(t *testing.T) {
	clientIn, clientOut, serverIn, serverOut := newPipePair(t)
	defer clientIn.Close()
	defer clientOut.Close()
	defer serverIn.Close()
	defer serverOut.Close()

	cfg := testConfig()
	cfg.RequestTimeoutMs = 0
	cfg.WriteQueueMaxBytes = 1

	client, err := New(clientIn, clientOut, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	client.Start()
	defer client.Close()

	resp, err := client.SendRequest("stall", nil)
	if err != nil {
		t.Fatalf("SendRequest err = %v, want nil", err)
	}
	if resp.Error == nil || resp.Error.Message != "Transport closed" {
		t.Fatalf("resp.Error = %v, want Transport closed", resp.Error)
	}
}

// TestCloseFromHandlerDoesNotDeadlock covers spec.md §9's first Open
// Question: a notification handler runs synchronously on the reader
// thread, and must be able to call Close without Close blocking forever
// waiting for that same thread to exit.
func TestCloseFromHandlerDoesNotDeadlock(t *testing.T) {
	clientIn, clientOut, serverIn, serverOut := newPipePair(t)
	defer clientIn.Close()
	defer clientOut.Close()
	defer serverIn.Close()
	defer serverOut.Close()

	client, err := New(clientIn, clientOut, testConfig())
	if err != nil {
		t.Fatalf("New(client): %v", err)
	}
	server, err := New(serverIn, serverOut, testConfig())
	if err != nil {
		t.Fatalf("New(server): %v", err)
	}

	closed := make(chan struct{})
	server.OnNotify(func(n *jsonrpc.Notification) {
		server.Close()
		close(closed)
	})

	client.Start()
	server.Start()
	defer client.Close()

	if err := client.SendNotification("ping", nil); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("notification handler's Close call deadlocked")
	}
}
