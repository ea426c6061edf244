package stdio

import "sync/atomic"

// connFlag is the single atomic "connected" boolean from spec.md §3's
// Connection state: false -> true on Start, true -> false on Close, on
// unrecoverable I/O error, or on write-queue overflow. Terminal.
type connFlag struct {
	v atomic.Bool
}

func (f *connFlag) set(val bool) { f.v.Store(val) }
func (f *connFlag) get() bool    { return f.v.Load() }

// exitFlag is a worker-liveness flag (reader_exited / writer_exited from
// spec.md §3). There is no condition variable: Close waits for a worker by
// polling its flag with a bounded budget (see waitExited).
type exitFlag struct {
	v atomic.Bool
}

func (f *exitFlag) set(val bool) { f.v.Store(val) }
func (f *exitFlag) get() bool    { return f.v.Load() }
