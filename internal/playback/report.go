package playback

import (
	"log/slog"
	"time"
)

// SessionReport summarises one playback session after its loop exits.
type SessionReport struct {
	TacticID  string
	Frames    int
	Ticks     int
	Elapsed   time.Duration
	Speed     float64
	Completed bool
}

// Reporter receives session reports. Implementations must not block.
type Reporter interface {
	ReportSession(r SessionReport)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(SessionReport)

// ReportSession calls f(r).
func (f ReporterFunc) ReportSession(r SessionReport) { f(r) }

// LogReporter writes one log line per session.
type LogReporter struct {
	Logger *slog.Logger
}

// ReportSession logs r at info level.
func (l LogReporter) ReportSession(r SessionReport) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("playback session finished",
		"tacticId", r.TacticID,
		"frames", r.Frames,
		"ticks", r.Ticks,
		"elapsed", r.Elapsed,
		"speed", r.Speed,
		"completed", r.Completed,
	)
}
