package stdio

import (
	"testing"
	"time"
)

func TestWriteQueueFIFOOrder(t *testing.T) {
	connected := &connFlag{}
	connected.set(true)
	q := newWriteQueue(1024, connected, nil, nil)

	frames := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	for _, f := range frames {
		if !q.enqueue(f) {
			t.Fatalf("enqueue(%q) failed", f)
		}
	}
	for _, want := range frames {
		got, ok := q.dequeueBlocking()
		if !ok {
			t.Fatalf("dequeueBlocking: not ok")
		}
		if string(got) != string(want) {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestWriteQueueOverflowDisconnects(t *testing.T) {
	connected := &connFlag{}
	connected.set(true)
	var overflowed bool
	q := newWriteQueue(4, connected, nil, func(reason string) { overflowed = true })

	if !q.enqueue([]byte("ab")) {
		t.Fatalf("first enqueue should fit")
	}
	if q.enqueue([]byte("abcde")) {
		t.Fatalf("second enqueue should overflow")
	}
	if !overflowed {
		t.Fatalf("onOverflow was not called")
	}
	if connected.get() {
		t.Fatalf("connected should be false after overflow")
	}
}

func TestWriteQueueDequeueBlockingUnblocksOnDisconnect(t *testing.T) {
	connected := &connFlag{}
	connected.set(true)
	q := newWriteQueue(1024, connected, nil, nil)

	done := make(chan struct{})
	go func() {
		_, ok := q.dequeueBlocking()
		if ok {
			t.Errorf("dequeueBlocking returned ok=true on empty+disconnected queue")
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	connected.set(false)
	q.wake()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dequeueBlocking did not unblock after disconnect")
	}
}

func TestWriteQueueAccountWritten(t *testing.T) {
	connected := &connFlag{}
	connected.set(true)
	q := newWriteQueue(1024, connected, nil, nil)

	q.enqueue([]byte("hello"))
	if q.queuedBytes() != 5 {
		t.Fatalf("queuedBytes = %d, want 5", q.queuedBytes())
	}
	q.accountWritten(3)
	if q.queuedBytes() != 2 {
		t.Fatalf("queuedBytes = %d, want 2", q.queuedBytes())
	}
	q.accountWritten(10)
	if q.queuedBytes() != 0 {
		t.Fatalf("queuedBytes should saturate at 0, got %d", q.queuedBytes())
	}
}
