package repository

import (
	"context"

	"scaffoldgen/internal/domain/entity"
)

// ProgressSink receives run progress. Publish must not block the caller
// for long; slow sinks should buffer or drop.
type ProgressSink interface {
	Publish(ctx context.Context, p entity.Progress)
}

type ProgressFunc func(ctx context.Context, p entity.Progress)

func (f ProgressFunc) Publish(ctx context.Context, p entity.Progress) { f(ctx, p) }

// FanOut delivers every event to all sinks in order.
type FanOut []ProgressSink

func (f FanOut) Publish(ctx context.Context, p entity.Progress) {
	for _, s := range f {
		if s != nil {
			s.Publish(ctx, p)
		}
	}
}
