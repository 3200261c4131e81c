// Package openrouter implements the llm.Client interface against the
// OpenRouter chat completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adam-wood/llm-council/llm"
	"github.com/adam-wood/llm-council/types"
)

const providerName = "openrouter"

// Config holds the configuration for the OpenRouter client.
type Config struct {
	// APIKey is the OpenRouter API key.
	APIKey string

	// BaseURL is the API base URL. Defaults to https://openrouter.ai/api.
	BaseURL string

	// Timeout is the default per-call timeout. Defaults to 120s if zero.
	Timeout time.Duration

	// Referer and Title are optional attribution headers OpenRouter uses
	// for app rankings. Empty values omit the headers.
	Referer string
	Title   string
}

// Provider is the OpenRouter implementation of llm.Client.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a new OpenRouter provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger.With(zap.String("component", "openrouter")),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return providerName }

func (p *Provider) endpoint() string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/chat/completions"
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", p.cfg.Referer)
	}
	if p.cfg.Title != "" {
		req.Header.Set("X-Title", p.cfg.Title)
	}
}

type chatRequestBody struct {
	Model    string          `json:"model"`
	Messages []types.Message `json:"messages"`
}

type chatResponseBody struct {
	Choices []struct {
		Message struct {
			Content          string          `json:"content"`
			ReasoningDetails json.RawMessage `json:"reasoning_details,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

// Completion performs a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	timeout := p.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(chatRequestBody{Model: req.Model, Messages: req.Messages})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, types.NewError(types.ErrUpstreamTimeout, fmt.Sprintf("%s: request timed out after %s", req.Model, timeout)).
				WithHTTPStatus(http.StatusGatewayTimeout).
				WithRetryable(true).
				WithProvider(providerName).
				WithCause(err)
		}
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithProvider(providerName).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		return nil, mapHTTPError(resp.StatusCode, msg)
	}

	var body chatResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "malformed response body").
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithProvider(providerName).
			WithCause(err)
	}
	if len(body.Choices) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "response contains no choices").
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithProvider(providerName)
	}

	p.logger.Debug("completion",
		zap.String("model", req.Model),
		zap.Duration("duration", time.Since(start)),
	)

	// A missing content field yields an empty string, not an error; the
	// caller decides what an empty completion means.
	choice := body.Choices[0].Message
	return &llm.ChatResponse{
		Model:            req.Model,
		Content:          choice.Content,
		ReasoningDetails: choice.ReasoningDetails,
	}, nil
}

// readErrorMessage extracts a human-readable message from an error body.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

// mapHTTPError converts an upstream HTTP status into a typed error.
// 402 is the credits-exhausted signal and must stay distinguishable: the
// orchestrator propagates it instead of dropping the call.
func mapHTTPError(status int, msg string) *types.Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusPaymentRequired:
		return types.NewError(types.ErrQuotaExceeded, msg).
			WithHTTPStatus(status).WithProvider(providerName)
	case status == http.StatusUnauthorized:
		return types.NewError(types.ErrUnauthorized, msg).
			WithHTTPStatus(status).WithProvider(providerName)
	case status == http.StatusForbidden:
		return types.NewError(types.ErrForbidden, msg).
			WithHTTPStatus(status).WithProvider(providerName)
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).
			WithHTTPStatus(status).WithRetryable(true).WithProvider(providerName)
	default:
		return types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider(providerName)
	}
}

// Ensure Provider implements llm.Client.
var _ llm.Client = (*Provider)(nil)
