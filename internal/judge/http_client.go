package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/infrastructure"
)

// HTTPClient runs code on the sandbox service over JSON/HTTP.
// Every failure, including waiting too long for a free slot, surfaces as
// domain.ErrJudgeUnavailable. The caller's context bounds the call; the
// client adds no deadline of its own. It records the judge run metrics.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	slots   *semaphore.Weighted
	metrics *infrastructure.TelemetryMetrics
	logger  *zap.Logger
}

// NewHTTPClient creates a judge client from configuration
func NewHTTPClient(config *infrastructure.JudgeConfig, metrics *infrastructure.TelemetryMetrics, logger *zap.Logger) *HTTPClient {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		slots:   semaphore.NewWeighted(int64(maxConcurrent)),
		metrics: metrics,
		logger:  logger.Named("judge"),
	}
}

type runResponse struct {
	Results []domain.TestCaseResult `json:"results"`
}

// Run submits the code with its test cases and waits for per-test results
func (c *HTTPClient) Run(ctx context.Context, req domain.JudgeRequest) ([]domain.TestCaseResult, error) {
	start := time.Now()
	results, err := c.run(ctx, req)
	c.metrics.RecordJudgeRun(ctx, time.Since(start), err)
	if err != nil {
		c.logger.Warn("Judge run failed",
			zap.String("language", string(req.Language)),
			zap.Int("test_cases", len(req.TestCases)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrJudgeUnavailable, err)
	}
	return results, nil
}

func (c *HTTPClient) run(ctx context.Context, req domain.JudgeRequest) ([]domain.TestCaseResult, error) {
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for judge slot: %w", err)
	}
	defer c.slots.Release(1)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("judge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded runResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding judge response: %w", err)
	}
	return decoded.Results, nil
}
