package notify

import (
	"context"
	"log/slog"
	"sync"
)

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notice is a human-readable message for the shopper.
type Notice struct {
	Level   Level
	Title   string
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier forwards notices to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	level := slog.LevelInfo
	if notice.Level == LevelError {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "cart notice", "title", notice.Title, "message", notice.Message)
}

// Recorder keeps every notice it receives.
type Recorder struct {
	mu      sync.RWMutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *Recorder) Notices() []Notice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Last returns the most recent notice and false when nothing was recorded.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Fanout delivers every notice to each notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notice) {
	for _, notifier := range f {
		notifier.Notify(ctx, n)
	}
}
