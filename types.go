package climb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging contract used across the package. Messages are
// followed by key/value pairs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Principal is the identity the auth gate attaches to an authorized request
type Principal interface {
	UserID() string
	UserUUID() (uuid.UUID, error)
	Token() string
	IssuedAt() time.Time
}

// IdentityChecker confirms that the user behind verified claims still exists
// and that the credential has not been superseded.
type IdentityChecker interface {
	CheckIdentity(ctx context.Context, claims *Claims) (*User, error)
}

// ResetNotifier delivers password reset secrets to their owner.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, user *User, secret string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) { printLine("ERR", msg, args) }
func (d defLogger) Warn(msg string, args ...any)  { printLine("WRN", msg, args) }
func (d defLogger) Info(msg string, args ...any)  { printLine("INF", msg, args) }
func (d defLogger) Debug(msg string, args ...any) { printLine("DBG", msg, args) }

func printLine(level, msg string, args []any) {
	line := fmt.Sprintf("[%s] CLIMB %s", level, msg)
	for i := 0; i+1 < len(args); i += 2 {
		line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	fmt.Println(line)
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps the given slog logger, falling back to slog.Default.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// With returns a logger that always carries the given attributes.
func (s *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{l: s.l.With(args...)}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
