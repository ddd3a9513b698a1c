// Package logging builds the show log: operator output on stdout, copied
// to a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"relayshow/lib/config"
)

// New returns a logger writing to stdout and, if cfg.File is set, to a
// rotating file. The closer flushes and closes the file.
func New(cfg config.LogConfig) (*log.Logger, io.Closer) {
	return newLogger(os.Stdout, cfg)
}

func newLogger(stdout io.Writer, cfg config.LogConfig) (*log.Logger, io.Closer) {
	if cfg.File == "" {
		return log.New(stdout, "", log.LstdFlags), io.NopCloser(nil)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMb,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return log.New(io.MultiWriter(stdout, file), "", log.LstdFlags), file
}
