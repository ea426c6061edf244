//go:build !windows

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xtaci/stdiorpc/stdio"
)

// watchStatsSignal dumps t's stats snapshot to the log whenever the
// process receives SIGUSR1, the same diagnostic-dump convention as
// client/signal.go's KCP SNMP dump.
func watchStatsSignal(t *stdio.Transport) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	signal.Ignore(syscall.SIGPIPE)

	go func() {
		for range ch {
			log.Printf("stdio-host stats: %+v", t.Stats().Snapshot())
		}
	}()
}
