// Package embedder implements the C6 Embedding Service Adapter: a raw HTTP
// client to an OpenAI-compatible embeddings endpoint, wrapped with retry,
// circuit-breaking, and caching so callers see a single narrow contract.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"manifold/internal/config"
	"manifold/internal/rag/kind"
)

// Service is the C6 contract: Embed and EmbedBatch return one vector of
// dimension D per input, D being a process constant.
type Service interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Logger is the minimal structured-logging surface the adapter needs.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
}

// Metrics is the minimal counters/histograms surface the adapter needs.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

type noopLogger struct{}

func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}
func (noopLogger) Debug(string, map[string]any) {}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, map[string]string)               {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}

// rawClient is the unwrapped HTTP transport to an OpenAI-compatible
// embeddings endpoint.
type rawClient struct {
	cfg config.EmbeddingConfig
	dim int
	hc  *http.Client
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func newRawClient(cfg config.EmbeddingConfig) *rawClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &rawClient{cfg: cfg, dim: cfg.Dimensions, hc: &http.Client{Timeout: timeout}}
}

func (c *rawClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embedReq{Model: c.cfg.Model, Input: texts})
	if err != nil {
		return nil, kind.Wrap(kind.ErrInternal, "embedder.marshal", err)
	}
	url := c.cfg.BaseURL + c.cfg.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, kind.Wrap(kind.ErrInternal, "embedder.newRequest", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIHeader == "Authorization" || c.cfg.APIHeader == "" {
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
	} else if c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.APIHeader, c.cfg.APIKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, kind.Wrap(kind.ErrUpstreamUnavailable, "embedder.do", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, kind.Wrap(kind.ErrUpstreamUnavailable, "embedder.readBody", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, kind.Wrap(kind.ErrUpstreamUnavailable, "embedder.httpStatus",
			fmt.Errorf("%s: %s", resp.Status, truncate(respBytes, 200)))
	}

	var er embedResp
	if err := json.Unmarshal(respBytes, &er); err != nil {
		return nil, kind.Wrap(kind.ErrUpstreamUnavailable, "embedder.decode", err)
	}
	if len(er.Data) != len(texts) {
		return nil, kind.Wrap(kind.ErrUpstreamUnavailable, "embedder.countMismatch",
			fmt.Errorf("got %d embeddings, want %d", len(er.Data), len(texts)))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		if c.dim > 0 && len(er.Data[i].Embedding) != c.dim {
			return nil, kind.Wrap(kind.ErrDimensionMismatch, "embedder.dimension", nil)
		}
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

// service layers cache, circuit-breaker, and retry on top of rawClient.
type service struct {
	raw     *rawClient
	dim     int
	cache   *ttlCache
	breaker *circuitBreaker
	cfg     config.EmbeddingConfig
	log     Logger
	metrics Metrics
}

// Option configures a Service at construction time.
type Option func(*service)

// WithLogger overrides the adapter's logger.
func WithLogger(l Logger) Option { return func(s *service) { s.log = l } }

// WithMetrics overrides the adapter's metrics sink.
func WithMetrics(m Metrics) Option { return func(s *service) { s.metrics = m } }

// New constructs the C6 Embedding Service Adapter from configuration.
func New(cfg config.EmbeddingConfig, opts ...Option) Service {
	cfg = cfg.WithDefaults()
	s := &service{
		raw:     newRawClient(cfg),
		dim:     cfg.Dimensions,
		cache:   newTTLCache(cfg.MaxCachedItems, time.Duration(cfg.ExpirationHours)*time.Hour),
		breaker: newCircuitBreaker(cfg),
		cfg:     cfg,
		log:     noopLogger{},
		metrics: noopMetrics{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) Dimension() int { return s.dim }

func (s *service) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, t := range texts {
		if v, ok := s.cache.get(t); ok {
			out[i] = v
			s.metrics.IncCounter("embedding_cache_hit_total", nil)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fetched, err := s.fetchWithResilience(ctx, missTexts)
	if err != nil {
		if fb, ok := s.cacheFallback(missTexts); ok {
			s.log.Debug("embedding_cache_fallback", map[string]any{"count": len(missTexts)})
			for j, i := range missIdx {
				out[i] = fb[j]
			}
			return out, nil
		}
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = fetched[j]
		s.cache.put(missTexts[j], fetched[j])
	}
	return out, nil
}

func (s *service) cacheFallback(texts []string) ([][]float32, bool) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := s.cache.get(t)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (s *service) fetchWithResilience(ctx context.Context, texts []string) ([][]float32, error) {
	if !s.breaker.allow() {
		s.metrics.IncCounter("embedding_circuit_open_total", nil)
		return nil, kind.Wrap(kind.ErrUpstreamUnavailable, "embedder.circuitOpen", nil)
	}

	result, err := retryWithBackoff(ctx, s.cfg, func() ([][]float32, error) {
		return s.raw.embedBatch(ctx, texts)
	})
	if err != nil {
		if kind.Is(err, kind.ErrDimensionMismatch) {
			// Fatal, not retryable, not a breaker signal.
			return nil, err
		}
		s.breaker.recordFailure()
		s.log.Error("embedding_request_failed", map[string]any{"error": err.Error()})
		return nil, err
	}
	s.breaker.recordSuccess()
	return result, nil
}
