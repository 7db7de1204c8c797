// Package service wires the C1–C8 components into the two pipelines spec
// §4.9 and §4.10 describe: Ingest/Delete and Query.
package service

import (
	"context"

	"manifold/internal/config"
	"manifold/internal/llm"
	"manifold/internal/rag/embedder"
	"manifold/internal/rag/extract"
	"manifold/internal/rag/resolve"
	"manifold/internal/persistence/databases"
)

// Generator is the tier-keyed generative endpoint spec §6 describes. It is
// satisfied by *llm/router.Router; declared locally to avoid importing the
// router package's dependency surface (anthropic/openai SDKs) into every
// caller of this package.
type Generator interface {
	Generate(ctx context.Context, tier, system string, messages []llm.Message) (string, error)
}

// Service implements the GraphRAG core operation surface: Ingest, Delete,
// Query (spec §6).
type Service struct {
	vector    databases.VectorStore
	graph     databases.GraphDB
	embedder  embedder.Service
	extractor *extract.Extractor
	resolver  *resolve.Resolver
	generator Generator

	synthesisTier string
	queryDefaults config.QueryDefaults

	clock   Clock
	log     Logger
	metrics Metrics
}

// Option configures a Service at construction time.
type Option func(*Service)

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }
func WithLogger(l Logger) Option { return func(s *Service) { s.log = l } }
func WithMetrics(m Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithSynthesisTier overrides the tier used for step 9 of the query
// pipeline (answer synthesis). Defaults to "mid" per spec §4.10.
func WithSynthesisTier(tier string) Option {
	return func(s *Service) { s.synthesisTier = tier }
}

// New builds a Service from its required collaborators.
func New(
	vector databases.VectorStore,
	graph databases.GraphDB,
	emb embedder.Service,
	extractor *extract.Extractor,
	resolver *resolve.Resolver,
	generator Generator,
	queryDefaults config.QueryDefaults,
	opts ...Option,
) *Service {
	s := &Service{
		vector:        vector,
		graph:         graph,
		embedder:      emb,
		extractor:     extractor,
		resolver:      resolver,
		generator:     generator,
		synthesisTier: "mid",
		queryDefaults: queryDefaults.WithDefaults(),
		clock:         SystemClock{},
		log:           NoopLogger{},
		metrics:       NoopMetrics{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}
