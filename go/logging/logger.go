// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is the structured logger used throughout the ensemble. It wraps
// slog.Logger with helpers for the attributes logged by the executor.
type Logger struct {
	*slog.Logger
}

func New(handler slog.Handler) *Logger {
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a logger producing key=value lines.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a logger producing one JSON object per line.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewNopLogger creates a logger discarding all output.
func NewNopLogger() *Logger {
	return New(nopHandler{})
}

// NewLogger creates a logger from textual level and format settings, as
// found in configuration files.
func NewLogger(w io.Writer, level, format string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "text":
		return NewTextLogger(w, lvl), nil
	case "json":
		return NewJSONLogger(w, lvl), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var res slog.Level
	if err := res.UnmarshalText([]byte(level)); err != nil {
		return res, fmt.Errorf("unknown log level %q", level)
	}
	return res, nil
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithComponent returns a logger tagging every entry with the component.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Address(address string) slog.Attr {
	return slog.String("address", address)
}

func Sender(address string) slog.Attr {
	return slog.String("sender", address)
}

func Height(h uint64) slog.Attr {
	return slog.Uint64("height", h)
}

func Depth(d int) slog.Attr {
	return slog.Int("depth", d)
}

func MsgID(id uint64) slog.Attr {
	return slog.Uint64("msg_id", id)
}

func MsgKind(kind string) slog.Attr {
	return slog.String("msg_kind", kind)
}

func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Error creates an error attribute. A nil error yields an empty attribute,
// which handlers ignore.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
