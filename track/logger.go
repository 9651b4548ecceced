// SPDX-License-Identifier: EPL-2.0

package track

import (
	"context"
	"fmt"
	"log/slog"
)

// Logger is the minimal logging seam a Track uses for its own internal
// diagnostics; the one message it currently logs is the ObtainBuffer
// 1-second timeout warning. It exists so tests can inject a capturing implementation
// instead of asserting on stdout output.
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// slogLogger adapts the standard library's structured logger, the
// idiomatic default for a module that otherwise has no logging dependency
// of its own (see DESIGN.md's standard-library justifications).
type slogLogger struct {
	l *slog.Logger
}

func newDefaultLogger() Logger {
	return slogLogger{l: slog.Default()}
}

func (s slogLogger) Warnf(format string, args ...any) {
	s.l.WarnContext(context.Background(), fmt.Sprintf(format, args...))
}

func (s slogLogger) Debugf(format string, args ...any) {
	s.l.DebugContext(context.Background(), fmt.Sprintf(format, args...))
}
