package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/offsetnet/creditrouter/appif"
	"github.com/offsetnet/creditrouter/internal/indexclient"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/router"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/offsetnet/creditrouter/internal/storage"
	"github.com/offsetnet/creditrouter/internal/tokenchannel"
)

// logWriter implements io.Writer and writes simultaneously to both standard
// output and the log rotator, adapted from breez-lightninglib/daemon/
// log.go's build.LogWriter; that type lives inside an internal "build"
// package that cannot be imported standalone, so its two-line shape is
// reproduced directly here rather than imported.
type logWriter struct {
	RotatorPipe *io.PipeWriter
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if w.RotatorPipe != nil {
		w.RotatorPipe.Write(p)
	}
	return len(p), nil
}

var (
	writer = &logWriter{}

	// backendLog is the logging backend every subsystem logger below is
	// created from. It must not be used before initLogRotator runs.
	backendLog = btclog.NewBackend(writer)

	logRotator *rotator.Rotator

	ltndLog = backendLog.Logger("CRNL")
	rtrLog  = backendLog.Logger("RTR ")
	tcLog   = backendLog.Logger("TOKC")
	mcLog   = backendLog.Logger("MC  ")
	sigLog  = backendLog.Logger("SIG ")
	idxcLog = backendLog.Logger("IDXC")
	appLog  = backendLog.Logger("APPI")
	stgLog  = backendLog.Logger("STOR")
)

// subsystemLoggers maps each subsystem tag to its logger, the way
// breez-lightninglib/daemon/log.go does, so setLogLevels can iterate.
var subsystemLoggers = map[string]btclog.Logger{
	"CRNL": ltndLog,
	"RTR ": rtrLog,
	"TOKC": tcLog,
	"MC  ": mcLog,
	"SIG ": sigLog,
	"IDXC": idxcLog,
	"APPI": appLog,
	"STOR": stgLog,
}

func init() {
	router.UseLogger(rtrLog)
	tokenchannel.UseLogger(tcLog)
	mc.UseLogger(mcLog)
	sig.UseLogger(sigLog)
	indexclient.UseLogger(idxcLog)
	appif.UseLogger(appLog)
	storage.UseLogger(stgLog)
}

// initLogRotator opens logFile and begins log rotation at that path,
// mirroring breez-lightninglib/daemon/log.go's initLogRotator.
func initLogRotator(logFile string, maxFileSize, maxFiles int) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	r, err := rotator.New(logFile, int64(maxFileSize*1024), false, maxFiles)
	if err != nil {
		return fmt.Errorf("creating file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	writer.RotatorPipe = pw
	logRotator = r
	return nil
}

// setLogLevels applies logLevel to every subsystem logger.
func setLogLevels(logLevel string) {
	level, _ := btclog.LevelFromString(logLevel)
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}
