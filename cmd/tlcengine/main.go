// Command tlcengine runs the PD telegram engine as a standalone process:
// load a configuration, start the scheduler, serve the control API, and
// shut down cleanly on SIGINT/SIGTERM.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/tlc-io/tlcengine/cmn/cos"
	"github.com/tlc-io/tlcengine/cmn/nlog"
	"github.com/tlc-io/tlcengine/engine"
	"github.com/tlc-io/tlcengine/httpapi"
	"github.com/tlc-io/tlcengine/pdtransport/udp"
)

var (
	configPath string
	hostName   string
	logDir     string
	listenAddr string
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to the XML telegram configuration")
	flag.StringVar(&hostName, "host", "", "host name this engine resolves telegram direction for")
	flag.StringVar(&logDir, "log-dir", "", "directory for engine log files (stderr if empty)")
	flag.StringVar(&listenAddr, "listen", ":8625", "control API listen address")
}

func main() {
	flag.Parse()
	if configPath == "" || hostName == "" {
		cos.ExitLogf("missing required -config and/or -host flag")
	}
	if logDir != "" {
		if err := nlog.SetLogDir(logDir); err != nil {
			cos.ExitLogf("failed to set up log dir %q: %v", logDir, err)
		}
	}

	eng := engine.New(udp.New())
	if err := eng.LoadConfig(configPath, hostName); err != nil {
		cos.ExitLogf("failed to load %q: %v", configPath, err)
	}
	eng.Start()
	nlog.Infof("tlcengine started: host=%s generation=%s", hostName, eng.GenerationID())

	srv := httpapi.New(eng)
	go func() {
		if err := srv.ListenAndServe(listenAddr); err != nil {
			cos.ExitLogf("control API stopped: %v", err)
		}
	}()

	waitForShutdown()

	eng.Stop()
	nlog.Infof("tlcengine stopped")
	nlog.Flush(true)
}

func waitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-c
}
