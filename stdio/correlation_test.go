package stdio

import (
	"testing"
	"time"

	"github.com/xtaci/stdiorpc/jsonrpc"
)

func TestCorrelatorResolveDeliversResponse(t *testing.T) {
	connected := &connFlag{}
	connected.set(true)
	c := newCorrelator(connected, &Stats{})

	id := jsonrpc.NewStringID("req-1")
	slot := c.register(id, time.Time{})

	want := jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: id, Result: []byte(`"pong"`)}
	if !c.resolve(id, want) {
		t.Fatal("resolve reported no pending entry")
	}

	got := slot.wait()
	if string(got.Result) != string(want.Result) {
		t.Fatalf("got %q, want %q", got.Result, want.Result)
	}
}

func TestCorrelatorResolveUnknownIDReturnsFalse(t *testing.T) {
	connected := &connFlag{}
	connected.set(true)
	c := newCorrelator(connected, &Stats{})

	if c.resolve(jsonrpc.NewStringID("nope"), jsonrpc.Response{}) {
		t.Fatal("resolve should report false for an unregistered id")
	}
}

func TestCorrelatorCloseAllFailsPending(t *testing.T) {
	connected := &connFlag{}
	connected.set(true)
	c := newCorrelator(connected, &Stats{})

	id := jsonrpc.NewStringID("req-1")
	slot := c.register(id, time.Time{})

	c.closeAll()

	got := slot.wait()
	if got.Error == nil {
		t.Fatal("expected an error response after closeAll")
	}
}

func TestCorrelatorTimeoutLoopExpiresDeadline(t *testing.T) {
	connected := &connFlag{}
	connected.set(true)
	stats := &Stats{}
	c := newCorrelator(connected, stats)

	var exited exitFlag
	go c.runTimeoutLoop(&exited)

	id := jsonrpc.NewStringID("req-1")
	slot := c.register(id, time.Now().Add(20*time.Millisecond))

	select {
	case resp := <-slot.ch:
		if resp.Error == nil {
			t.Fatal("expected a timeout error response")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout loop never expired the pending request")
	}

	if got := stats.RequestTimeouts.Load(); got != 1 {
		t.Fatalf("RequestTimeouts = %d, want 1", got)
	}

	connected.set(false)
	c.wake()
	waitExited(&exited, time.Second)
	if !exited.get() {
		t.Fatal("timeout loop did not exit after disconnect")
	}
}

func TestCorrelatorTimeoutLoopExitsOnDisconnectWithNoPending(t *testing.T) {
	connected := &connFlag{}
	connected.set(true)
	c := newCorrelator(connected, &Stats{})

	var exited exitFlag
	done := make(chan struct{})
	go func() {
		c.runTimeoutLoop(&exited)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	connected.set(false)
	c.wake()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout loop did not exit when idle and disconnected")
	}
}
