package events

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/grbr/internal/metrics"
)

// LogConfig configures the event log file.
type LogConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// Log writes one line per event to a size-rotated file:
//
//	[2017-03-01 12:00:05.123456] : Dataset End : GLM Flash Data : 2017-03-01 12:00:00 : /out/OR_GLM.nc
type Log struct {
	logger *logrus.Logger
	out    io.WriteCloser
}

// NewLog opens the event log at cfg.Path.
func NewLog(cfg LogConfig) (*Log, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("event log requires a path")
	}
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("event log path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return newLog(out), nil
}

func newLog(out io.WriteCloser) *Log {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&formatter{
		pattern: "[%time] : %msg\n",
		time:    EventTimeLayout,
	})
	return &Log{logger: logger, out: out}
}

func (l *Log) Record(_ context.Context, e Event) error {
	l.logger.WithTime(e.Time).Info(e.Message())
	metrics.EventsPublishedTotal.WithLabelValues("log", "ok").Inc()
	return nil
}

func (l *Log) Close() error {
	return l.out.Close()
}
