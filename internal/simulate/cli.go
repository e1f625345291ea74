package simulate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/trustmatch/pkg/logger"
)

// SetupLogging sends log output to stdout and, when logFile is set, to
// that file as well. The returned closer releases the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	level := "info"
	if verbose {
		level = "debug"
	}
	if logFile == "" {
		return nopCloser{}, logger.Init(logger.WithLevel(level))
	}

	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file)), logger.WithLevel(level)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("log_file", logFile))
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Usage is printed before the flag defaults.
const Usage = `Trustmatch Traffic Simulator
============================

Seeds subjects, replays normal, spam and burst activity against a running
trustmatch service, then checks that exactly the abusive subjects were
flagged.

Usage:
  simulate [options]

Examples:
  simulate -subjects 500 -spammers 20 -bursters 10
  simulate -url http://staging:9080 -seed 7 -output out/activity.json

Options:
`
