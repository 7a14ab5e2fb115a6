package utils

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ledgerd/ledgerd/log"
	"gopkg.in/urfave/cli.v1"
)

var logger = log.NewModuleLogger(log.CmdUtils)

// Fatalf formats a message to standard error and exits the program.
// The message is also printed to standard output if standard error
// is redirected to a different file.
func Fatalf(format string, args ...interface{}) {
	w := io.MultiWriter(os.Stdout, os.Stderr)
	if runtime.GOOS == "windows" {
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		}
	}
	fmt.Fprintf(w, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

// stoppable is the narrow shutdown surface WaitForInterrupt needs from a
// running node - node.Manager satisfies it directly; mining-node wraps its
// manager and miner in a small adapter so the same helper serves both
// start-node and mining-node.
type stoppable interface {
	Close() error
}

// WaitForInterrupt blocks until SIGINT/SIGTERM, then closes stack and
// returns once Close has finished. A further signal while shutdown is in
// flight logs a warning; the tenth one panics, matching the teacher's
// StartNode interrupt loop.
func WaitForInterrupt(stack stoppable) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	<-sigc
	logger.Info("got interrupt, shutting down")
	done := make(chan struct{})
	go func() {
		if err := stack.Close(); err != nil {
			logger.Error("error during shutdown", "err", err)
		}
		close(done)
	}()
	for i := 10; i > 0; i-- {
		select {
		case <-done:
			return
		case <-sigc:
		}
		if i > 1 {
			logger.Warn("already shutting down, interrupt more to panic", "times", i-1)
		}
	}
	panic("interrupted repeatedly, panicking")
}

// SetupLogging applies the --log-level/--log-no-color flags to the global
// logger, the way the teacher's cmd/kcn wires debug.Setup from its own CLI
// context before doing anything else.
func SetupLogging(c *cli.Context) {
	log.SetColor(!c.GlobalBool(LogNoColorFlag.Name))
	switch c.GlobalString(LogLevelFlag.Name) {
	case "crit":
		log.SetLevel(log.LvlCrit)
	case "error":
		log.SetLevel(log.LvlError)
	case "warn":
		log.SetLevel(log.LvlWarn)
	case "debug":
		log.SetLevel(log.LvlDebug)
	default:
		log.SetLevel(log.LvlInfo)
	}
}
