package ratelimit

import (
	"context"
	"time"
)

// Rule is a fixed window: at most Max admissions per identity per Window.
type Rule struct {
	Name    string
	Window  time.Duration
	Max     int
	Message string
}

// Result describes one admission decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects a request for an identity under its rule.
type Limiter interface {
	Allow(ctx context.Context, identity string) (*Result, error)
	Rule() Rule
}

func decide(rule Rule, count int, resetIn time.Duration) *Result {
	remaining := rule.Max - count
	if remaining < 0 {
		remaining = 0
	}
	result := &Result{
		Allowed:   count <= rule.Max,
		Limit:     rule.Max,
		Remaining: remaining,
	}
	if !result.Allowed {
		result.RetryAfter = resetIn
	}
	return result
}
