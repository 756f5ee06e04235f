package repository

import (
	"context"
)

// Completion is the raw answer of a model call.
type Completion struct {
	Output     string
	TokensUsed int
}

// CallFunc is the single external boundary of the generator: prompt and
// token budget in, text and token count out.
type CallFunc func(ctx context.Context, prompt string, tokenBudget int) (Completion, error)

// Transport is a concrete model provider.
type Transport interface {
	Call(ctx context.Context, prompt string, tokenBudget int) (Completion, error)
	Name() string
}

func AsCallFunc(t Transport) CallFunc {
	if t == nil {
		return nil
	}
	return t.Call
}
