// Package notify carries user-facing notices (the "toast" messages shown
// after connecting, saving or failing) from the core to whoever displays them.
package notify

import (
	"context"
	"sync"

	"billtrack/internal/log"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is one user-facing message.
type Notice struct {
	Level   Level  `json:"type"`
	Message string `json:"message"`
}

// Notifier receives user-facing notices. Implementations must not block.
type Notifier interface {
	Success(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
}

// Log writes notices to a component logger.
type Log struct {
	logger *log.Logger
}

func NewLog(logger *log.Logger) *Log {
	return &Log{logger: logger.WithComponent(log.ComponentNotify)}
}

func (l *Log) Success(ctx context.Context, msg string) {
	l.logger.InfoContext(ctx, msg, log.FieldNotice, LevelSuccess)
}

func (l *Log) Error(ctx context.Context, msg string) {
	l.logger.WarnContext(ctx, msg, log.FieldNotice, LevelError)
}

// Recorder keeps every notice it receives.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Success(_ context.Context, msg string) { r.add(LevelSuccess, msg) }
func (r *Recorder) Error(_ context.Context, msg string)   { r.add(LevelError, msg) }

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Message: msg})
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice, if any.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Success(context.Context, string) {}
func (Discard) Error(context.Context, string)   {}

type ctxKey struct{}

// WithNotifier attaches n to ctx. Notices sent through Contextual also reach n.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, ctxKey{}, n)
}

// Contextual forwards to its base notifier and to any notifier attached to
// the context of the call. This lets an HTTP handler collect the notices
// produced while serving one request.
type Contextual struct {
	Base Notifier
}

func (c Contextual) Success(ctx context.Context, msg string) {
	if c.Base != nil {
		c.Base.Success(ctx, msg)
	}
	if n, ok := ctx.Value(ctxKey{}).(Notifier); ok {
		n.Success(ctx, msg)
	}
}

func (c Contextual) Error(ctx context.Context, msg string) {
	if c.Base != nil {
		c.Base.Error(ctx, msg)
	}
	if n, ok := ctx.Value(ctxKey{}).(Notifier); ok {
		n.Error(ctx, msg)
	}
}
