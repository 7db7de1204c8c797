package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"manifold/internal/config"
	"manifold/internal/rag/kind"
)

func testConfig(url string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		BaseURL:           url,
		Path:              "/embeddings",
		Model:             "test-model",
		Dimensions:        2,
		MaxCachedItems:    16,
		ExpirationHours:   1,
		MaxRetryAttempts:  2,
		InitialDelayMs:    1,
		MaxDelayMs:        2,
		BackoffMultiplier: 2.0,
		CircuitFailureRatio:  0.5,
		CircuitMinThroughput: 2,
		CircuitSamplingSec:   60,
		CircuitBreakSec:      60,
		TimeoutSec:           5,
	}
}

func respondEmbeddings(w http.ResponseWriter, n int) {
	data := make([]map[string]any, n)
	for i := range data {
		data[i] = map[string]any{"embedding": []float32{0.1, 0.2}}
	}
	b, _ := json.Marshal(map[string]any{"data": data})
	w.Write(b)
}

func TestEmbed_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		respondEmbeddings(w, len(req.Input))
	}))
	defer ts.Close()

	svc := New(testConfig(ts.URL))
	vec, err := svc.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("expected dim 2, got %d", len(vec))
	}
}

func TestEmbed_CacheHitSkipsUpstream(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req embedReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		respondEmbeddings(w, len(req.Input))
	}))
	defer ts.Close()

	svc := New(testConfig(ts.URL))
	ctx := context.Background()
	if _, err := svc.Embed(ctx, "repeat"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Embed(ctx, "repeat"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

func TestEmbed_DimensionMismatchIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Wrong dimension response; must not be retried away.
		b, _ := json.Marshal(map[string]any{"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}}})
		w.Write(b)
	}))
	defer ts.Close()

	svc := New(testConfig(ts.URL))
	_, err := svc.Embed(context.Background(), "x")
	if err == nil || !kind.Is(err, kind.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch error, got %v", err)
	}
}

func TestEmbed_UpstreamFailureFallsBackToCache(t *testing.T) {
	var fail atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req embedReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		respondEmbeddings(w, len(req.Input))
	}))
	defer ts.Close()

	svc := New(testConfig(ts.URL))
	ctx := context.Background()
	if _, err := svc.Embed(ctx, "cached"); err != nil {
		t.Fatalf("unexpected error priming cache: %v", err)
	}

	fail.Store(true)
	vec, err := svc.Embed(ctx, "cached")
	if err != nil {
		t.Fatalf("expected cache fallback to succeed, got error: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("expected cached vector of dim 2, got %d", len(vec))
	}
}

func TestEmbed_UpstreamFailureNoCacheReturnsUpstreamUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	svc := New(testConfig(ts.URL))
	_, err := svc.Embed(context.Background(), "uncached")
	if err == nil || !kind.Is(err, kind.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable error, got %v", err)
	}
}

func TestCircuitBreaker_OpensAfterSustainedFailures(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.CircuitMinThroughput = 2
	cfg.CircuitFailureRatio = 0.5
	cfg.CircuitSamplingSec = 60
	cfg.CircuitBreakSec = 60
	cb := newCircuitBreaker(cfg)

	cb.recordFailure()
	cb.recordFailure()
	if cb.allow() {
		t.Fatal("expected circuit to be open after sustained failures")
	}
}

func TestCircuitBreaker_HalfOpenClosesOnSuccess(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.CircuitMinThroughput = 1
	cfg.CircuitFailureRatio = 0.1
	cfg.CircuitSamplingSec = 60
	cfg.CircuitBreakSec = 0 // immediately eligible for half-open
	cb := newCircuitBreaker(cfg)

	cb.recordFailure()
	if !cb.allow() {
		t.Fatal("expected half-open probe to be allowed")
	}
	cb.recordSuccess()
	if cb.state != cbClosed {
		t.Errorf("expected breaker to close after successful probe, state=%v", cb.state)
	}
}
