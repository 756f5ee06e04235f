// Package events fans run progress out to external subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

const DefaultSubjectPrefix = "scaffoldgen.progress"

type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes every progress event as JSON on
// <prefix>.<runID>.
type NATSPublisher struct {
	nc     conn
	closer func()
	prefix string
	logger *slog.Logger
}

var _ repository.ProgressSink = (*NATSPublisher)(nil)

func Connect(url, prefix string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("scaffoldgen"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := newPublisher(nc, prefix, logger)
	p.closer = func() {
		_ = nc.Drain()
		nc.Close()
	}
	return p, nil
}

func newPublisher(nc conn, prefix string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

func (p *NATSPublisher) Subject(runID string) string {
	return p.prefix + "." + runID
}

// Publish never fails the run; delivery problems are logged and counted.
func (p *NATSPublisher) Publish(_ context.Context, ev entity.Progress) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("encode progress", "run_id", ev.RunID, "err", err)
		return
	}
	if err := p.nc.Publish(p.Subject(ev.RunID), data); err != nil {
		metrics.IncError("nats_publisher", "publish_error")
		p.logger.Warn("publish progress", "run_id", ev.RunID, "err", err)
		return
	}
	metrics.IncEventPublished("nats")
}

func (p *NATSPublisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}
