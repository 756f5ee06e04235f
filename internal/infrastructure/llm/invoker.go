package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

// RetryConfig controls rate-limit backoff. Retry n waits BaseDelay*2^(n-1).
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// WaitFunc blocks for d or until ctx is done, whichever comes first.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Wait is the production WaitFunc.
func Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff tracks how many retries were spent and what the next delay is.
type backoff struct {
	base    time.Duration
	attempt int
}

func (b *backoff) next() time.Duration {
	d := b.base << b.attempt
	b.attempt++
	return d
}

// Invoker calls the model through a CallFunc and retries on rate limits.
// Every call is recorded in the session passed to Invoke.
type Invoker struct {
	call   repository.CallFunc
	model  string
	retry  RetryConfig
	wait   WaitFunc
	logger *slog.Logger
}

type InvokerOption func(*Invoker)

func WithRetry(cfg RetryConfig) InvokerOption {
	return func(i *Invoker) { i.retry = cfg }
}

func WithWait(w WaitFunc) InvokerOption {
	return func(i *Invoker) { i.wait = w }
}

// WithModelLabel sets the model name used in metrics.
func WithModelLabel(model string) InvokerOption {
	return func(i *Invoker) { i.model = model }
}

func NewInvoker(call repository.CallFunc, logger *slog.Logger, opts ...InvokerOption) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	inv := &Invoker{
		call:   call,
		model:  "default",
		retry:  DefaultRetryConfig(),
		wait:   Wait,
		logger: logger,
	}
	for _, o := range opts {
		o(inv)
	}
	return inv
}

func (i *Invoker) Configured() bool {
	return i != nil && i.call != nil
}

// Invoke sends prompt for stage and returns the raw model output.
func (i *Invoker) Invoke(ctx context.Context, session *entity.Session, stage entity.Stage, prompt string, tokenBudget int) (string, error) {
	if !i.Configured() {
		session.AddError(fmt.Sprintf("%s: %v", stage, entity.ErrNotConfigured))
		metrics.IncError("invoker", "not_configured")
		return "", entity.ErrNotConfigured
	}

	b := backoff{base: i.retry.BaseDelay}
	for {
		if err := ctx.Err(); err != nil {
			session.AddError(fmt.Sprintf("%s: %v", stage, err))
			return "", fmt.Errorf("invoke %s: %w", stage, err)
		}

		metrics.IncLLMRequest(i.model, string(stage))
		start := time.Now()
		out, err := i.call(ctx, prompt, tokenBudget)
		if err == nil {
			session.Record(stage, prompt, out.Output, out.TokensUsed)
			metrics.AddLLMTokens(string(stage), out.TokensUsed)
			i.logger.Debug("model call finished",
				"session_id", session.ID,
				"stage", stage,
				"tokens", out.TokensUsed,
				"duration", time.Since(start),
			)
			return out.Output, nil
		}

		if !entity.IsRateLimit(err) {
			metrics.IncError("invoker", "call_failed")
			ierr := &entity.InvocationError{Stage: stage, Attempts: b.attempt + 1, Err: err}
			session.AddError(ierr.Error())
			return "", ierr
		}

		if b.attempt >= i.retry.MaxRetries {
			metrics.IncError("invoker", "rate_limit_exceeded")
			session.AddError(fmt.Sprintf("%s: rate limited after %d retries", stage, b.attempt))
			return "", fmt.Errorf("invoke %s after %d retries: %w: %v", stage, b.attempt, entity.ErrRateLimitExceeded, err)
		}

		delay := b.next()
		metrics.IncLLMRetry(string(stage))
		i.logger.Warn("rate limited, backing off",
			"session_id", session.ID,
			"stage", stage,
			"attempt", b.attempt,
			"delay", delay,
		)
		if err := i.wait(ctx, delay); err != nil {
			session.AddError(fmt.Sprintf("%s: retry wait interrupted: %v", stage, err))
			return "", fmt.Errorf("invoke %s: retry wait: %w", stage, err)
		}
	}
}
