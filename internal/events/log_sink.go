package events

import (
	"context"

	"duet/internal/logger"
)

// LogSink writes every event to the structured log
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.With("sink", "log")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, e Event) error {
	s.log.Info("event",
		"event_id", e.ID,
		"type", string(e.Type),
		"couple_id", e.CoupleID,
		"actor_id", e.ActorID,
		"entity_id", e.EntityID,
	)
	return nil
}
