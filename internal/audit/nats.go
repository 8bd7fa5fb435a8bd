package audit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const defaultSubject = "toolgate.audit.dispatch"

// Publisher forwards dispatch attempts to a NATS subject so an external
// audit consumer can persist them. Publishing is fire-and-forget: errors are
// logged and dropped.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewPublisher connects to NATS and returns a publishing sink.
func NewPublisher(url, subject string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(strings.TrimSpace(url), nats.Name("fabrica-toolgate-audit"))
	if err != nil {
		return nil, fmt.Errorf("connecting audit publisher: %w", err)
	}

	trimmed := strings.TrimSpace(subject)
	if trimmed == "" {
		trimmed = defaultSubject
	}

	return &Publisher{
		conn:    conn,
		subject: trimmed,
		logger:  logger.With().Str("component", "audit-publisher").Logger(),
	}, nil
}

// Record implements Sink.
func (p *Publisher) Record(attempt Attempt) {
	if p == nil || p.conn == nil {
		return
	}

	payload, err := json.Marshal(attempt)
	if err != nil {
		p.logger.Error().Err(err).Msg("encoding audit event")
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Error().Err(err).Str("subject", p.subject).Msg("publishing audit event")
	}
}

// Close flushes and drops the connection.
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := p.conn.Flush(); err != nil {
		p.conn.Close()
		return fmt.Errorf("flushing audit publisher: %w", err)
	}
	p.conn.Close()
	return nil
}
