package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hupe1980/vecboard"
)

// newLogger creates a charm logger writing to w at level with the given
// format ("pretty", "text" or "json").
func newLogger(w io.Writer, level log.Level, format string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
	switch format {
	case "json":
		l.SetFormatter(log.JSONFormatter)
	case "text":
		l.SetFormatter(log.LogfmtFormatter)
	}
	return l
}

// parseLevel maps a config level name to a charm level. Unknown names
// select info.
func parseLevel(name string) log.Level {
	level, err := log.ParseLevel(strings.ToLower(name))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// coordinatorLogger routes coordinator logs through l.
func coordinatorLogger(l *log.Logger) *vecboard.Logger {
	return vecboard.NewLogger(l)
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// progress logs completion of an operation with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
