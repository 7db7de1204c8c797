package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"manifold/internal/llm"
	"manifold/internal/persistence/databases"
	"manifold/internal/rag/kind"
)

const groundingSystemPrompt = "You are a grounded technical assistant. Answer the user's question using only the information in the provided context. If the context does not contain the answer, say you don't know. Never state information that is not present in the context."

const maxInFlightTraversals = 8

// GraphRagOptions tunes one Query call (spec §6). A nil value takes every
// default from the service's configured query defaults.
type GraphRagOptions struct {
	MaxChunks         int
	MinRelevanceScore float64
	MaxTraversalSteps int
	UseCrossRepoLinks bool
	RepositoryFilter  string
	DocTypeFilter     string
}

// Source is one retrieved chunk backing a GraphRagResult's answer.
type Source struct {
	DocumentID     string  `json:"document_id"`
	ChunkID        string  `json:"chunk_id"`
	Repository     string  `json:"repository"`
	FilePath       string  `json:"file_path"`
	RelevanceScore float64 `json:"relevance_score"`
}

// GraphRagResult is Query's return value (spec §6).
type GraphRagResult struct {
	Answer          string   `json:"answer"`
	Sources         []Source `json:"sources"`
	RelatedConcepts []string `json:"related_concepts"`
	Confidence      float64  `json:"confidence"`
}

func (s *Service) resolveOptions(o *GraphRagOptions) GraphRagOptions {
	resolved := GraphRagOptions{
		MaxChunks:         s.queryDefaults.MaxChunks,
		MinRelevanceScore: s.queryDefaults.MinRelevanceScore,
		MaxTraversalSteps: 1,
		UseCrossRepoLinks: s.queryDefaults.UseCrossRepoLinks,
	}
	if o != nil {
		if o.MaxChunks != 0 {
			resolved.MaxChunks = o.MaxChunks
		}
		if o.MinRelevanceScore != 0 {
			resolved.MinRelevanceScore = o.MinRelevanceScore
		}
		if o.MaxTraversalSteps != 0 {
			resolved.MaxTraversalSteps = o.MaxTraversalSteps
		}
		resolved.UseCrossRepoLinks = o.UseCrossRepoLinks
		resolved.RepositoryFilter = o.RepositoryFilter
		resolved.DocTypeFilter = o.DocTypeFilter
	}
	if resolved.MaxChunks < 1 {
		resolved.MaxChunks = 1
	}
	if resolved.MaxChunks > 100 {
		resolved.MaxChunks = 100
	}
	if resolved.MinRelevanceScore < 0 {
		resolved.MinRelevanceScore = 0
	}
	if resolved.MinRelevanceScore > 1 {
		resolved.MinRelevanceScore = 1
	}
	// MaxTraversalSteps > 1 is silently clamped to 1: multi-hop traversal is
	// not implemented, only the single-hop resolution C8 performs.
	resolved.MaxTraversalSteps = 1
	return resolved
}

// buildSearchFilters turns the optional repository/doc-type filters into the
// metadata-equality map SimilaritySearch expects (spec §4.10 step 2).
func buildSearchFilters(o GraphRagOptions) map[string]string {
	if o.RepositoryFilter == "" && o.DocTypeFilter == "" {
		return nil
	}
	filters := make(map[string]string, 2)
	if o.RepositoryFilter != "" {
		filters["repository"] = o.RepositoryFilter
	}
	if o.DocTypeFilter != "" {
		filters["doc_type"] = o.DocTypeFilter
	}
	return filters
}

func emptyResult() *GraphRagResult {
	return &GraphRagResult{
		Answer:          "No relevant documents found for your query.",
		Sources:         []Source{},
		RelatedConcepts: []string{},
		Confidence:      0,
	}
}

// Query runs the C10 pipeline (spec §4.10): embed, search, filter, hydrate,
// enrich, synthesize, score.
func (s *Service) Query(ctx context.Context, query string, opts *GraphRagOptions) (*GraphRagResult, error) {
	o := s.resolveOptions(opts)
	start := s.clock.Now()

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, kind.Wrap(kind.ErrUpstreamUnavailable, "service.Query.embed", err)
	}

	results, err := s.vector.SimilaritySearch(ctx, vec, o.MaxChunks, buildSearchFilters(o))
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "service.Query.search", err)
	}

	filtered := make([]databases.VectorResult, 0, len(results))
	for _, r := range results {
		if r.Score >= o.MinRelevanceScore {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return emptyResult(), nil
	}

	chunkIDs := make([]string, len(filtered))
	for i, r := range filtered {
		chunkIDs[i] = r.ChunkID
	}
	chunks, err := s.graph.GetChunksByIds(ctx, chunkIDs)
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "service.Query.hydrate", err)
	}
	chunkByID := make(map[string]databases.ChunkNode, len(chunks))
	for _, c := range chunks {
		chunkByID[c.ID] = c
	}

	relatedNames, seen := s.enrichConcepts(ctx, chunkIDs)

	if o.UseCrossRepoLinks {
		s.traverseCrossRepo(ctx, filtered, relatedNamesSnapshot(relatedNames), &relatedNames, seen)
	}

	prompt := buildContextPrompt(query, filtered, chunkByID)
	answer, err := s.generator.Generate(ctx, s.synthesisTier, groundingSystemPrompt, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, kind.Wrap(kind.ErrUpstreamUnavailable, "service.Query.synthesize", err)
	}

	confidence := computeConfidence(filtered, o.MaxChunks)
	sources := buildSources(filtered)

	dur := s.clock.Now().Sub(start)
	s.metrics.ObserveHistogram("query_duration_seconds", dur.Seconds(), nil)
	s.log.Info("query_complete", map[string]any{
		"query_len":  len(query),
		"results":    len(results),
		"filtered":   len(filtered),
		"confidence": confidence,
	})

	return &GraphRagResult{
		Answer:          answer,
		Sources:         sources,
		RelatedConcepts: relatedNames,
		Confidence:      confidence,
	}, nil
}

// enrichConcepts runs step 6 (best effort): concepts mentioned by the
// hydrated chunks. Failure is logged and treated as no enrichment.
func (s *Service) enrichConcepts(ctx context.Context, chunkIDs []string) ([]string, map[string]bool) {
	seen := make(map[string]bool)
	names := make([]string, 0)
	concepts, err := s.graph.GetConceptsByChunkIds(ctx, chunkIDs)
	if err != nil {
		s.log.Warn("query_concept_enrichment_failed", map[string]any{"error": err.Error()})
		return names, seen
	}
	for _, c := range concepts {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		names = append(names, c.Name)
	}
	return names, seen
}

func relatedNamesSnapshot(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// traverseCrossRepo runs step 7 (best effort, bounded parallel fan-out):
// pre-warms linked-document traversal per distinct document id (never
// surfaced, purely a cache warm), then resolves each concept name from the
// pre-mutation snapshot, appending the resolved entity's related concept
// names when its repository isn't already represented in the filtered
// results.
func (s *Service) traverseCrossRepo(ctx context.Context, filtered []databases.VectorResult, nameSnapshot []string, relatedNames *[]string, seen map[string]bool) {
	docIDs := distinctDocumentIDs(filtered)
	runBounded(docIDs, func(id string) {
		if _, err := s.graph.GetLinkedDocuments(ctx, id); err != nil {
			s.log.Warn("query_linked_document_prewarm_failed", map[string]any{"document_id": id, "error": err.Error()})
		}
	})

	filteredRepos := make(map[string]bool)
	for _, r := range filtered {
		if repo := r.Metadata["repository"]; repo != "" {
			filteredRepos[repo] = true
		}
	}

	var mu sync.Mutex
	runBounded(nameSnapshot, func(name string) {
		resolved, err := s.resolver.Resolve(ctx, name)
		if err != nil {
			s.log.Warn("query_cross_repo_resolve_failed", map[string]any{"concept": name, "error": err.Error()})
			return
		}
		if resolved == nil || resolved.Repository == "" || filteredRepos[resolved.Repository] {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, n := range resolved.RelatedConceptNames {
			if seen[n] {
				continue
			}
			seen[n] = true
			*relatedNames = append(*relatedNames, n)
		}
	})
}

func distinctDocumentIDs(results []databases.VectorResult) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(results))
	for _, r := range results {
		id := r.Metadata["document_id"]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// runBounded runs fn(item) for every item with at most maxInFlightTraversals
// concurrent calls, waiting for all to finish.
func runBounded(items []string, fn func(string)) {
	sem := make(chan struct{}, maxInFlightTraversals)
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(it string) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(it)
		}(item)
	}
	wg.Wait()
}

func buildContextPrompt(query string, filtered []databases.VectorResult, chunkByID map[string]databases.ChunkNode) string {
	var sb strings.Builder
	sb.WriteString(query)
	sb.WriteString("\n\n## Context\n")
	for _, r := range filtered {
		chunk, ok := chunkByID[r.ChunkID]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "### Source: %s (relevance: %.2f)\n%s\n\n", r.Metadata["file_path"], r.Score, chunk.Content)
	}
	return sb.String()
}

func computeConfidence(filtered []databases.VectorResult, maxChunks int) float64 {
	if len(filtered) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range filtered {
		sum += r.Score
	}
	avg := sum / float64(len(filtered))
	return avg * math.Min(1, float64(len(filtered))/float64(maxChunks))
}

func buildSources(filtered []databases.VectorResult) []Source {
	sources := make([]Source, 0, len(filtered))
	for _, r := range filtered {
		docID := r.Metadata["document_id"]
		if docID == "" {
			docID = r.ChunkID
		}
		sources = append(sources, Source{
			DocumentID:     docID,
			ChunkID:        r.ChunkID,
			Repository:     r.Metadata["repository"],
			FilePath:       r.Metadata["file_path"],
			RelevanceScore: r.Score,
		})
	}
	return sources
}
