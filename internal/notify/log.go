package notify

import (
	"context"

	"go.uber.org/zap"
)

// Log writes payloads to the application log instead of an external channel.
// Used when no notification endpoint is configured and for dry runs.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Send(_ context.Context, p *Payload) error {
	l.logger.Info("notification",
		zap.String("kind", string(p.Kind)),
		zap.String("subject", p.Subject),
		zap.String("body", p.Body),
	)
	return nil
}
