package metrics

import (
	"context"
	"time"

	"github.com/adam-wood/llm-council/llm"
	"github.com/adam-wood/llm-council/types"
)

// instrumentedClient decorates an llm.Client with per-model query metrics.
type instrumentedClient struct {
	inner     llm.Client
	collector *Collector
}

var _ llm.Client = (*instrumentedClient)(nil)

// InstrumentClient wraps a client so every completion is recorded. A nil
// collector returns the client unchanged.
func InstrumentClient(inner llm.Client, collector *Collector) llm.Client {
	if collector == nil {
		return inner
	}
	return &instrumentedClient{inner: inner, collector: collector}
}

func (c *instrumentedClient) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := c.inner.Completion(ctx, req)
	c.collector.RecordModelQuery(req.Model, queryOutcome(err), time.Since(start))
	return resp, err
}

func (c *instrumentedClient) Name() string {
	return c.inner.Name()
}

func queryOutcome(err error) string {
	if err == nil {
		return "success"
	}
	switch types.GetErrorCode(err) {
	case types.ErrQuotaExceeded:
		return "quota_exceeded"
	case types.ErrUpstreamTimeout:
		return "timeout"
	case types.ErrRateLimited:
		return "rate_limited"
	default:
		return "error"
	}
}
