// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Command stdio-host spawns a child process and wires its stdin/stdout to
// a stdio.Transport, the way an MCP host launches and speaks to a server
// subprocess. The child's stderr is tailed into a bounded buffer for
// diagnostics. Grounded on client/main.go's CLI construction and
// client/signal.go's SIGUSR1 diagnostic dump.
package main

import (
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"github.com/xtaci/stdiorpc/jsonrpc"
	"github.com/xtaci/stdiorpc/stdio"
)

// VERSION is injected via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "stdio-host"
	myApp.Usage = "spawn a child process and speak JSON-RPC over its stdio"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "timeout-ms",
			Value: 30000,
			Usage: "per-request deadline in milliseconds, 0 to disable",
		},
		cli.IntFlag{
			Name:  "idle-read-timeout-ms",
			Value: 0,
			Usage: "close the transport after this many idle milliseconds with no bytes read, 0 to disable",
		},
		cli.IntFlag{
			Name:  "write-timeout-ms",
			Value: 0,
			Usage: "per-frame write deadline in milliseconds, 0 to disable",
		},
		cli.IntFlag{
			Name:  "write-queue-max-bytes",
			Value: 2 * 1024 * 1024,
			Usage: "bounded write queue capacity in bytes",
		},
		cli.StringFlag{
			Name:  "stats-log",
			Value: "",
			Usage: "collect transport stats to file, aware of Go time format, like: ./stats-20060102.log",
		},
		cli.IntFlag{
			Name:  "stats-period",
			Value: 60,
			Usage: "stats collection period, in seconds",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "load the child command and config from a JSON or YAML file",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		cfg := stdio.NewConfig()
		cfg.RequestTimeoutMs = uint64(c.Int("timeout-ms"))
		cfg.IdleReadTimeoutMs = uint64(c.Int("idle-read-timeout-ms"))
		cfg.WriteTimeoutMs = uint64(c.Int("write-timeout-ms"))
		cfg.WriteQueueMaxBytes = c.Int("write-queue-max-bytes")

		statsLog := c.String("stats-log")
		statsPeriod := c.Int("stats-period")
		command := []string(c.Args())

		if path := c.String("c"); path != "" {
			fc, err := parseFileConfig(path)
			if err != nil {
				color.Red("config file %s: %v", path, err)
				os.Exit(1)
			}
			if len(fc.Command) > 0 {
				command = fc.Command
			}
			if fc.TimeoutMs != 0 {
				cfg.RequestTimeoutMs = fc.TimeoutMs
			}
			if fc.IdleReadTimeoutMs != 0 {
				cfg.IdleReadTimeoutMs = fc.IdleReadTimeoutMs
			}
			if fc.WriteTimeoutMs != 0 {
				cfg.WriteTimeoutMs = fc.WriteTimeoutMs
			}
			if fc.WriteQueueMaxBytes != 0 {
				cfg.WriteQueueMaxBytes = fc.WriteQueueMaxBytes
			}
			if fc.StatsLog != "" {
				statsLog = fc.StatsLog
			}
			if fc.StatsPeriodSeconds != 0 {
				statsPeriod = fc.StatsPeriodSeconds
			}
		}

		if len(command) == 0 {
			color.Red("no child command given; pass it on the command line or via -c")
			os.Exit(1)
		}

		log.Println("version:", VERSION)
		log.Println("child command:", command)
		log.Println("request timeout ms:", cfg.RequestTimeoutMs)

		t, stderrTail, cmd, err := spawn(command, cfg)
		if err != nil {
			color.Red("spawn: %v", err)
			os.Exit(1)
		}

		t.SetErrorHandler(func(reason string) {
			log.Println("transport error:", reason)
		})
		t.OnPanic(func(recovered interface{}) {
			log.Printf("handler panic: %v", recovered)
		})
		t.OnNotify(func(n *jsonrpc.Notification) {
			log.Println("notification from child:", n.Method)
		})

		log.Println("session:", t.SessionID())
		t.Start()
		watchStatsSignal(t)

		if statsLog != "" {
			stop := make(chan struct{})
			defer close(stop)
			go stdio.StatsLogger(t, statsLog, time.Duration(statsPeriod)*time.Second, stop)
		}

		t.Wait()

		if tail := stderrTail.String(); tail != "" {
			log.Printf("child stderr tail:\n%s", tail)
		}
		if werr := cmd.Wait(); werr != nil {
			log.Printf("child exited: %v", werr)
		}
		return nil
	}
	myApp.Run(os.Args)
}

// spawn starts command, wiring its stdin/stdout to a pair of raw os.Pipe
// descriptors so the returned Transport can drive them directly (an
// exec.Cmd's own StdinPipe/StdoutPipe are documented only as io.WriteCloser/
// io.ReadCloser, not guaranteed *os.File). The child's stderr is copied
// into a bounded tailBuffer for post-mortem diagnostics.
func spawn(command []string, cfg stdio.Config) (*stdio.Transport, *tailBuffer, *exec.Cmd, error) {
	childStdinR, childStdinW, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "stdio-host: pipe (stdin)")
	}
	childStdoutR, childStdoutW, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "stdio-host: pipe (stdout)")
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = childStdinR
	cmd.Stdout = childStdoutW
	stderrTail := newTailBuffer(8192)
	cmd.Stderr = stderrTail

	if err := cmd.Start(); err != nil {
		childStdinR.Close()
		childStdinW.Close()
		childStdoutR.Close()
		childStdoutW.Close()
		return nil, nil, nil, errors.Wrap(err, "stdio-host: start child")
	}
	// The child has inherited its own ends; close ours.
	childStdinR.Close()
	childStdoutW.Close()

	t, err := stdio.New(childStdoutR, childStdinW, cfg)
	if err != nil {
		cmd.Process.Kill()
		return nil, nil, nil, errors.Wrap(err, "stdio-host: new transport")
	}
	return t, stderrTail, cmd, nil
}
