package publishers

import "context"

// logPublisher writes events to the structured log. It is the default sink when no
// publishers file is configured.
type logPublisher struct {
	id  string
	log Logger
}

func newLogPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	return &logPublisher{id: cfg.ID, log: ensureLogger(log)}, nil
}

// NewLogPublisher builds a log sink without a config entry.
func NewLogPublisher(id string, log Logger) Publisher {
	return &logPublisher{id: id, log: ensureLogger(log)}
}

func (l *logPublisher) ID() string   { return l.id }
func (l *logPublisher) Type() string { return TypeLog }

func (l *logPublisher) Publish(_ context.Context, evt Event) error {
	l.log.InfoObj("event published", "event", evt)
	return nil
}
