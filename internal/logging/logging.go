// Package logging builds the go-belt logger every other package reaches
// through its context.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/sirupsen/logrus"
)

// ParseLevel converts a level name such as "debug" or "warning".
func ParseLevel(s string) (logger.Level, error) {
	var lvl logger.Level
	if err := lvl.Set(s); err != nil {
		return logger.LevelUndefined, fmt.Errorf("unable to parse log level %q: %w", s, err)
	}
	return lvl, nil
}

// New returns ctx carrying a logrus-backed logger at the given level,
// writing text lines to w (stderr if nil). The logger also becomes the
// process-wide default.
func New(ctx context.Context, level string, w io.Writer) (context.Context, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return ctx, err
	}
	if w == nil {
		w = os.Stderr
	}

	ll := xlogrus.DefaultLogrusLogger()
	ll.SetOutput(w)
	ll.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ll.SetLevel(xlogrus.LevelToLogrus(lvl))

	l := xlogrus.New(ll).WithLevel(lvl)
	logger.Default = func() logger.Logger {
		return l
	}
	return logger.CtxWithLogger(ctx, l), nil
}

// Flush writes out anything the logger buffered. Call it before exiting.
func Flush(ctx context.Context) {
	belt.Flush(ctx)
}
