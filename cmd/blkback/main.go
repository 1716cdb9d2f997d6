// A command that runs a blkif backend for one or more exported devices,
// wiring each into a reference in-memory KV store and waiting for ring
// slots supplied by an external ring/grant transport.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/sevlyar/go-daemon"
	"golang.org/x/net/context"

	_ "github.com/xenproject/goblkif/backend/file"
	"github.com/xenproject/goblkif/blkif"
	"github.com/xenproject/goblkif/session"
	"github.com/xenproject/goblkif/store"
)

var errGrantsUnavailable = fmt.Errorf("blkback: no grant/DMA transport configured")

var (
	configPath = flag.String("config", "blkback.yaml", "path to session configuration")
	daemonize  = flag.Bool("daemon", false, "detach and run in the background")
	pidFile    = flag.String("pidfile", "blkback.pid", "pid file used when -daemon is set")
	logFile    = flag.String("logfile", "blkback.log", "log file used when -daemon is set")
)

func newLogger() *log.Logger {
	flags := log.LstdFlags
	if isatty.IsTerminal(os.Stderr.Fd()) {
		flags = log.Ltime
	}
	return log.New(os.Stderr, "", flags)
}

func main() {
	flag.Parse()

	if *daemonize {
		cntxt := &daemon.Context{
			PidFileName: *pidFile,
			PidFilePerm: 0644,
			LogFileName: *logFile,
			LogFilePerm: 0640,
			WorkDir:     "./",
			Umask:       027,
		}
		d, err := cntxt.Reborn()
		if err != nil {
			log.Fatalf("[ERROR] could not daemonize: %v", err)
		}
		if d != nil {
			return
		}
		defer cntxt.Release()
	}

	logger := newLogger()

	cfg, err := session.LoadSessionConfig(*configPath)
	if err != nil {
		logger.Fatalf("[ERROR] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := store.New()
	devices, err := session.Setup(ctx, logger, cfg, tree, noopGrants{})
	if err != nil {
		logger.Fatalf("[ERROR] %v", err)
	}
	defer session.Close(ctx, devices)

	logger.Printf("[INFO] blkback ready with %d device(s)", len(devices))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Printf("[INFO] blkback shutting down")
}

// noopGrants is a placeholder GrantMapper until a real ring/grant
// transport is wired in by the caller's hypervisor integration; a
// dispatcher configured with it fails every read or write request that
// carries segments, direct or indirect, and reports that back to the
// frontend as an ordinary RspError.
type noopGrants struct{}

func (noopGrants) MapSegment(ctx context.Context, gref uint32) ([]byte, error) {
	return nil, errGrantsUnavailable
}

func (noopGrants) MapIndirectPage(ctx context.Context, gref uint32) ([]blkif.Segment, error) {
	return nil, errGrantsUnavailable
}
