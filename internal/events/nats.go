package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/buildtrigger/internal/config"
	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
)

// NATSPublisher publishes run events on core NATS subjects of the form
// <subject>.<started|succeeded|failed>.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	publish func(subject string, data []byte) error
	flush   func(timeout time.Duration) error
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(cfg config.EventsConfig) (*NATSPublisher, error) {
	if cfg.NATSURL == "" {
		return nil, ferrors.ConfigError("events.nats_url is required for NATS publishing").Build()
	}

	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("buildtrigger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", logfields.URL(c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEvents, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).
			Build()
	}

	slog.Info("NATS publisher initialized", logfields.URL(cfg.NATSURL), slog.String("subject", cfg.Subject))

	p := newPublisher(cfg.Subject, conn.Publish, conn.FlushTimeout)
	p.conn = conn
	return p, nil
}

func newPublisher(subject string, publish func(string, []byte) error, flush func(time.Duration) error) *NATSPublisher {
	return &NATSPublisher{subject: subject, publish: publish, flush: flush}
}

// Subject returns the subject an event of type t is published on.
func (p *NATSPublisher) Subject(t Type) string {
	return p.subject + "." + strings.TrimPrefix(string(t), "run.")
}

// Publish marshals ev and publishes it. The context deadline bounds the flush.
func (p *NATSPublisher) Publish(ctx context.Context, ev RunEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.Subject(ev.Type)
	if err := p.publish(subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryEvents, "failed to publish event").
			WithContext("subject", subject).
			Build()
	}

	if p.flush != nil {
		timeout := 2 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if timeout > 0 {
			if err := p.flush(timeout); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryEvents, "failed to flush event").
					WithContext("subject", subject).
					Build()
			}
		}
	}

	slog.Debug("Published run event",
		slog.String("subject", subject),
		logfields.RunID(ev.RunID),
		logfields.CorrelationID(ev.CorrelationID))
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
