package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adam-wood/llm-council/llm"
	"github.com/adam-wood/llm-council/types"
)

func TestNilCollectorIsSafe(t *testing.T) {
	t.Parallel()
	var c *Collector
	c.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	c.RecordCouncilRun("success", time.Second)
	c.RecordStage("stage1", time.Second)
	c.RecordModelQuery("model-a", "success", time.Second)
}

func TestCollectorRecords(t *testing.T) {
	t.Parallel()
	c := NewCollector("test")

	c.RecordHTTPRequest("GET", "/api/models", 200, 5*time.Millisecond)
	c.RecordHTTPRequest("GET", "/api/models", 200, 5*time.Millisecond)
	c.RecordCouncilRun("success", 2*time.Second)
	c.RecordModelQuery("model-a", "quota_exceeded", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/api/models", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.councilRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.modelQueriesTotal.WithLabelValues("model-a", "quota_exceeded")))
}

type stubClient struct {
	err error
}

func (s *stubClient) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: "ok"}, nil
}

func (s *stubClient) Name() string { return "stub" }

func TestInstrumentClient(t *testing.T) {
	t.Parallel()
	c := NewCollector("test")
	client := InstrumentClient(&stubClient{}, c)

	_, err := client.Completion(context.Background(), &llm.ChatRequest{Model: "model-a"})
	require.NoError(t, err)
	assert.Equal(t, "stub", client.Name())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.modelQueriesTotal.WithLabelValues("model-a", "success")))

	failing := InstrumentClient(&stubClient{err: types.NewError(types.ErrQuotaExceeded, "out of credits")}, c)
	_, err = failing.Completion(context.Background(), &llm.ChatRequest{Model: "model-b"})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.modelQueriesTotal.WithLabelValues("model-b", "quota_exceeded")))
}

func TestInstrumentClientNilCollector(t *testing.T) {
	t.Parallel()
	inner := &stubClient{}
	assert.Same(t, llm.Client(inner), InstrumentClient(inner, nil))
}
