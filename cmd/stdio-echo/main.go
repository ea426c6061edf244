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

// Command stdio-echo is a minimal JSON-RPC-over-stdio peer: it answers
// every inbound request by echoing its params back as the result, and
// logs every inbound notification. It exists to exercise stdio.Transport
// end to end from the command line, the same role kcptun's server binary
// plays for the KCP/smux stack it wraps.
package main

import (
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"
	"github.com/xtaci/stdiorpc/jsonrpc"
	"github.com/xtaci/stdiorpc/stdio"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "stdio-echo"
	myApp.Usage = "JSON-RPC-over-stdio echo peer"
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
			Usage: "load configuration from a JSON or YAML file, overriding the flags above",
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

		if path := c.String("c"); path != "" {
			fc, err := parseFileConfig(path)
			if err != nil {
				color.Red("config file %s: %v", path, err)
				os.Exit(1)
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

		log.Println("version:", VERSION)
		log.Println("request timeout ms:", cfg.RequestTimeoutMs)
		log.Println("idle read timeout ms:", cfg.IdleReadTimeoutMs)
		log.Println("write timeout ms:", cfg.WriteTimeoutMs)
		log.Println("write queue max bytes:", cfg.WriteQueueMaxBytes)
		log.Println("stats log:", statsLog)

		t, err := stdio.New(os.Stdin, os.Stdout, cfg)
		if err != nil {
			color.Red("stdio.New: %v", err)
			os.Exit(1)
		}

		t.SetErrorHandler(func(reason string) {
			log.Println("transport error:", reason)
		})
		t.OnPanic(func(recovered interface{}) {
			log.Printf("handler panic: %v", recovered)
		})
		t.OnRequest(func(req *jsonrpc.Request) ([]byte, *jsonrpc.Error) {
			return req.Params, nil
		})
		t.OnNotify(func(n *jsonrpc.Notification) {
			log.Println("notification:", n.Method)
		})

		log.Println("session:", t.SessionID())
		t.Start()

		if statsLog != "" {
			stop := make(chan struct{})
			defer close(stop)
			go stdio.StatsLogger(t, statsLog, time.Duration(statsPeriod)*time.Second, stop)
		}

		t.Wait()
		log.Printf("session %s closed", t.SessionID())
		return nil
	}
	myApp.Run(os.Args)
}
