package activitymap

import (
	"context"
	"time"

	climb "github.com/goliatone/go-climb"
	"github.com/goliatone/go-climb/telemetry"
)

// LogSink writes every activity event as an audit line
type LogSink struct {
	logger climb.Logger
	now    func() time.Time
}

var _ climb.ActivitySink = (*LogSink)(nil)

// NewLogSink returns a sink that logs audit entries at info level
func NewLogSink(logger climb.Logger) *LogSink {
	return &LogSink{logger: logger, now: time.Now}
}

// WithClock sets the time used for events that carry no timestamp
func (s *LogSink) WithClock(now func() time.Time) *LogSink {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *LogSink) Record(ctx context.Context, event climb.ActivityEvent) error {
	if s.logger == nil {
		return nil
	}

	entry := FromEvent(event, s.now)
	args := []any{
		"verb", entry.Verb,
		"channel", entry.Channel,
		"actor_id", entry.ActorID,
		"object_type", entry.ObjectType,
		"object_id", entry.ObjectID,
		"occurred_at", entry.OccurredAt,
	}
	if len(entry.Metadata) > 0 {
		args = append(args, "metadata", entry.Metadata)
	}
	args = append(args, telemetry.LogFields(ctx)...)

	s.logger.Info("activity", args...)
	return nil
}
