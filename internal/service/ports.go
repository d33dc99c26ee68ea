package service

import (
	"context"
	"time"
)

// Metrics receives domain level measurements
type Metrics interface {
	PathGenerated(ctx context.Context, mode string, size int, elapsed time.Duration)
	ProblemSolved(ctx context.Context)
	ToolCalled(ctx context.Context, name string, err error)
}

// Cache stores JSON encodable query results
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
}

type nopMetrics struct{}

func (nopMetrics) PathGenerated(context.Context, string, int, time.Duration) {}
func (nopMetrics) ProblemSolved(context.Context) {}
func (nopMetrics) ToolCalled(context.Context, string, error) {}

type nopCache struct{}

func (nopCache) GetJSON(context.Context, string, any) (bool, error) { return false, nil }
func (nopCache) SetJSON(context.Context, string, any) error { return nil }

// NopMetrics returns a Metrics that records nothing
func NopMetrics() Metrics { return nopMetrics{} }

// NopCache returns a Cache that never hits
func NopCache() Cache { return nopCache{} }
