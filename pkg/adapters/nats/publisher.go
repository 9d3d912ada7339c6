// Package nats publishes project events on a NATS subject per project and action.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/topolab/internal/logging"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is the root of every subject published by the controller.
const SubjectPrefix = "topolab"

// Subject returns "topolab.<project_id>.<action>", e.g. "topolab.p1.node.started".
func Subject(event domain.Event) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, event.ProjectID, event.Action)
}

// Publisher implements ports.EventPublisher on a NATS connection.
type Publisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher connects to url and keeps reconnecting for as long as the publisher lives.
func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts := []nats.Option{
		nats.Name("topolab-controller"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, domain.ConnectionError("connect "+url, err)
	}
	return &Publisher{nc: nc, logger: logger}, nil
}

// Publish sends the event as JSON. Delivery is fire-and-forget.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	if p.nc == nil || p.nc.IsClosed() {
		return domain.ConnectionError("publish", fmt.Errorf("nats not connected"))
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(event), data); err != nil {
		return domain.ConnectionError("publish "+Subject(event), err)
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (p *Publisher) Flush(ctx context.Context) error {
	return p.nc.FlushWithContext(ctx)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}
