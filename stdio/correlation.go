package stdio

import (
	"sync"
	"time"

	"github.com/xtaci/stdiorpc/jsonrpc"
)

// slot is the single-producer/single-consumer one-shot completion handoff
// for a pending request (spec.md's "Pending request" data model). It is
// fulfilled exactly once, by a matching response, a deadline expiry, or
// transport close.
type slot struct {
	ch chan jsonrpc.Response
}

func newSlot() *slot { return &slot{ch: make(chan jsonrpc.Response, 1)} }

// fulfill completes the slot. Safe to call at most once; callers only ever
// reach it after winning a delete-from-map race, so no further guard is
// needed here (matches the delete-then-send pattern in
// f5cb62f6_dominicnunez-codex-sdk-go__stdio.go's handleResponse).
func (s *slot) fulfill(resp jsonrpc.Response) {
	s.ch <- resp
}

func (s *slot) wait() jsonrpc.Response {
	return <-s.ch
}

type pendingEntry struct {
	id       jsonrpc.ID
	slot     *slot
	deadline time.Time
}

// correlator is C6: the pending-request map plus the min-deadline timer
// thread. A single mutex guards both pending and deadlines (in practice
// one map of pendingEntry, since deadlines are carried alongside the
// slot — spec.md §4.6 describes them as two maps sharing one mutex and one
// invariant: pending[id] exists iff deadlines[id] exists, which a single
// combined map enforces structurally).
type correlator struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending map[string]*pendingEntry

	connected *connFlag
	stats     *Stats
}

func newCorrelator(connected *connFlag, stats *Stats) *correlator {
	c := &correlator{pending: make(map[string]*pendingEntry), connected: connected, stats: stats}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// register inserts a new pending entry and wakes the timer thread to
// recompute its next wake-up, per spec.md §4.6's SendRequest contract.
func (c *correlator) register(id jsonrpc.ID, deadline time.Time) *slot {
	s := newSlot()
	c.mu.Lock()
	c.pending[id.Key()] = &pendingEntry{id: id, slot: s, deadline: deadline}
	c.cond.Broadcast()
	c.mu.Unlock()
	return s
}

// resolve looks up id, removes it from the map, and fulfills its slot with
// resp. Reports whether a pending entry was found.
func (c *correlator) resolve(id jsonrpc.ID, resp jsonrpc.Response) bool {
	c.mu.Lock()
	entry, ok := c.pending[id.Key()]
	if ok {
		delete(c.pending, id.Key())
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	entry.slot.fulfill(resp)
	return true
}

// closeAll fulfills every remaining pending entry with a "transport closed"
// InternalError and clears the map, per spec.md §4.6's Close contract.
func (c *correlator) closeAll() {
	c.mu.Lock()
	entries := make([]*pendingEntry, 0, len(c.pending))
	for k, e := range c.pending {
		entries = append(entries, e)
		delete(c.pending, k)
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	for _, e := range entries {
		e.slot.fulfill(jsonrpc.NewInternalError(e.id, "Transport closed"))
	}
}

// wake unblocks the timer thread (used on shutdown so it can observe
// !connected promptly).
func (c *correlator) wake() {
	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
}

// runTimeoutLoop is the dedicated timer thread described in spec.md §4.6.
// It wakes on whichever comes first: the next deadline, a new registration,
// or shutdown; expired entries are fulfilled with a Request timeout
// InternalError and removed.
func (c *correlator) runTimeoutLoop(exited *exitFlag) {
	defer func() {
		exited.set(true)
	}()

	for {
		c.mu.Lock()
		for len(c.pending) == 0 && c.connected.get() {
			c.cond.Wait()
		}
		if !c.connected.get() {
			c.mu.Unlock()
			return
		}

		next := earliestDeadline(c.pending)
		wait := time.Until(next)
		if wait > 0 {
			timer := time.AfterFunc(wait, func() {
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			})
			c.cond.Wait()
			timer.Stop()
		}

		now := time.Now()
		var expired []*pendingEntry
		for k, e := range c.pending {
			if !e.deadline.IsZero() && !e.deadline.After(now) {
				expired = append(expired, e)
				delete(c.pending, k)
			}
		}
		stillConnected := c.connected.get()
		c.mu.Unlock()

		if len(expired) > 0 && c.stats != nil {
			c.stats.RequestTimeouts.Add(uint64(len(expired)))
		}
		for _, e := range expired {
			e.slot.fulfill(jsonrpc.NewInternalError(e.id, "Request timeout"))
		}
		if !stillConnected {
			return
		}
	}
}

func earliestDeadline(pending map[string]*pendingEntry) time.Time {
	var min time.Time
	for _, e := range pending {
		if e.deadline.IsZero() {
			continue
		}
		if min.IsZero() || e.deadline.Before(min) {
			min = e.deadline
		}
	}
	if min.IsZero() {
		// No entry carries a deadline (all timeouts disabled): park for a
		// long, bounded interval so shutdown is still observed promptly.
		return time.Now().Add(time.Hour)
	}
	return min
}
