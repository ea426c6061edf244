//go:build windows

package main

import "github.com/xtaci/stdiorpc/stdio"

// watchStatsSignal is a no-op on Windows: SIGUSR1 has no equivalent, and
// wiring one up via os/signal + syscall would require a Windows-specific
// console control handler that is out of scope for this demo front-end.
func watchStatsSignal(t *stdio.Transport) {}
