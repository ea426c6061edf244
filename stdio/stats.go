package stdio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Stats holds the transport's diagnostic counters. Not part of spec.md's
// normative engine; grounded on std/snmp.go's DefaultSnmp counters,
// generalized from KCP protocol statistics to this transport's own
// framing/backpressure/timeout events (see SPEC_FULL.md's Supplemented
// Features).
type Stats struct {
	FramesRead        atomic.Uint64
	FramesWritten      atomic.Uint64
	BytesRead         atomic.Uint64
	BytesWritten      atomic.Uint64
	MalformedFrames   atomic.Uint64
	QueueOverflows    atomic.Uint64
	RequestTimeouts   atomic.Uint64
	IdleReadTimeouts  atomic.Uint64
}

// Snapshot is a point-in-time, non-atomic copy of Stats suitable for
// logging or CSV rows.
type Snapshot struct {
	FramesRead       uint64
	FramesWritten    uint64
	BytesRead        uint64
	BytesWritten     uint64
	MalformedFrames  uint64
	QueueOverflows   uint64
	RequestTimeouts  uint64
	IdleReadTimeouts uint64
}

// Snapshot reads all counters into a plain struct.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		FramesRead:       s.FramesRead.Load(),
		FramesWritten:    s.FramesWritten.Load(),
		BytesRead:        s.BytesRead.Load(),
		BytesWritten:     s.BytesWritten.Load(),
		MalformedFrames:  s.MalformedFrames.Load(),
		QueueOverflows:   s.QueueOverflows.Load(),
		RequestTimeouts:  s.RequestTimeouts.Load(),
		IdleReadTimeouts: s.IdleReadTimeouts.Load(),
	}
}

func (s Snapshot) header() []string {
	return []string{"FramesRead", "FramesWritten", "BytesRead", "BytesWritten", "MalformedFrames", "QueueOverflows", "RequestTimeouts", "IdleReadTimeouts"}
}

func (s Snapshot) row() []string {
	return []string{
		fmt.Sprint(s.FramesRead), fmt.Sprint(s.FramesWritten),
		fmt.Sprint(s.BytesRead), fmt.Sprint(s.BytesWritten),
		fmt.Sprint(s.MalformedFrames), fmt.Sprint(s.QueueOverflows),
		fmt.Sprint(s.RequestTimeouts), fmt.Sprint(s.IdleReadTimeouts),
	}
}

// StatsLogger periodically appends a CSV row of t's stats snapshot to a
// time-formatted file path, the same ticker-driven idiom as
// std/snmp.go's SnmpLogger. It blocks until stop is closed; callers
// typically run it in its own goroutine.
func StatsLogger(t *Transport, path string, interval time.Duration, stop <-chan struct{}) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			writeStatsRow(path, t.Stats().Snapshot())
		}
	}
}

func writeStatsRow(path string, snap Snapshot) {
	dir, file := filepath.Split(path)
	name := dir + time.Now().Format(file)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		_ = w.Write(append([]string{"Unix"}, snap.header()...))
	}
	_ = w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, snap.row()...))
	w.Flush()
}
