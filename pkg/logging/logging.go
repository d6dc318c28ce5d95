package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ConsoleLogger returns a logger writing human-readable output to stderr.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

// FileLogger returns a logger appending JSON lines to the given path,
// mirroring output to stderr. The parent directory is created if missing.
func FileLogger(level logrus.Level, path string) (*logrus.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log, nil
}
