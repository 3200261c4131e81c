package main

import (
	"context"
	"time"

	"github.com/adam-wood/llm-council/api/handlers"
	"github.com/adam-wood/llm-council/council"
	"github.com/adam-wood/llm-council/internal/metrics"
	"github.com/adam-wood/llm-council/types"
)

// instrumentedCouncil records stage and run durations around the
// orchestrator.
type instrumentedCouncil struct {
	inner     handlers.Council
	collector *metrics.Collector
}

var _ handlers.Council = (*instrumentedCouncil)(nil)

func instrumentCouncil(inner handlers.Council, collector *metrics.Collector) handlers.Council {
	if collector == nil {
		return inner
	}
	return &instrumentedCouncil{inner: inner, collector: collector}
}

func (c *instrumentedCouncil) Stage1(ctx context.Context, userID, query string) ([]council.Stage1Result, error) {
	start := time.Now()
	results, err := c.inner.Stage1(ctx, userID, query)
	c.collector.RecordStage("stage1", time.Since(start))
	return results, err
}

func (c *instrumentedCouncil) Stage2(ctx context.Context, userID, query string, stage1 []council.Stage1Result) ([]council.Stage2Result, map[string]council.LabelInfo, error) {
	start := time.Now()
	results, labels, err := c.inner.Stage2(ctx, userID, query, stage1)
	c.collector.RecordStage("stage2", time.Since(start))
	return results, labels, err
}

func (c *instrumentedCouncil) Stage3(ctx context.Context, userID, query string, stage1 []council.Stage1Result, stage2 []council.Stage2Result) (council.Stage3Result, error) {
	start := time.Now()
	result, err := c.inner.Stage3(ctx, userID, query, stage1, stage2)
	c.collector.RecordStage("stage3", time.Since(start))
	return result, err
}

func (c *instrumentedCouncil) Run(ctx context.Context, userID, query string) (*council.Result, error) {
	start := time.Now()
	result, err := c.inner.Run(ctx, userID, query)
	c.collector.RecordCouncilRun(runOutcome(result, err), time.Since(start))
	return result, err
}

func (c *instrumentedCouncil) GenerateTitle(ctx context.Context, query string, timeout time.Duration) string {
	return c.inner.GenerateTitle(ctx, query, timeout)
}

func runOutcome(result *council.Result, err error) string {
	switch {
	case err == nil && result != nil && result.Stage3.Model == "error":
		return "all_failed"
	case err == nil:
		return "success"
	case types.GetErrorCode(err) == types.ErrQuotaExceeded:
		return "quota_exceeded"
	default:
		return "error"
	}
}
