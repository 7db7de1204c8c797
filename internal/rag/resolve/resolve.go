// Package resolve implements C8, the cross-repo entity resolver: given a
// concept name, find its graph node and describe which repository owns it
// and what it relates to.
package resolve

import (
	"context"
	"sort"
	"strings"

	"manifold/internal/persistence/databases"
)

// ResolvedEntity is the result of resolving a concept name against the
// graph (spec §4.8).
type ResolvedEntity struct {
	ConceptID            string
	Name                 string
	Repository           string
	RelatedConceptIDs    []string
	RelatedConceptNames  []string
}

// Resolver is the C8 contract.
type Resolver struct {
	graph databases.GraphDB
}

// New builds a Resolver backed by graph.
func New(graph databases.GraphDB) *Resolver {
	return &Resolver{graph: graph}
}

// Resolve implements the 5-step algorithm from spec §4.8. It returns
// (nil, nil) when no concept matches name — not found is not an error here.
func (r *Resolver) Resolve(ctx context.Context, name string) (*ResolvedEntity, error) {
	concepts, err := r.graph.FindConceptsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(concepts) == 0 {
		return nil, nil
	}

	// Stabilize "the first" per DESIGN.md's Open Question decision:
	// lexicographic by concept id.
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].ID < concepts[j].ID })
	concept := concepts[0]

	type relatedResult struct {
		related []databases.ConceptNode
		err     error
	}
	type chunksResult struct {
		chunks []databases.ChunkNode
		err    error
	}
	relatedCh := make(chan relatedResult, 1)
	chunksCh := make(chan chunksResult, 1)

	go func() {
		related, err := r.graph.GetRelatedConcepts(ctx, concept.ID, 1)
		relatedCh <- relatedResult{related, err}
	}()
	go func() {
		chunks, err := r.graph.GetChunksByConcept(ctx, concept.ID)
		chunksCh <- chunksResult{chunks, err}
	}()

	rr := <-relatedCh
	cr := <-chunksCh
	if rr.err != nil {
		return nil, rr.err
	}
	if cr.err != nil {
		return nil, cr.err
	}

	repository := ""
	if len(cr.chunks) > 0 {
		repository = repositoryFromDocumentID(cr.chunks[0].DocumentID)
	}

	ids := make([]string, 0, len(rr.related))
	names := make([]string, 0, len(rr.related))
	for _, c := range rr.related {
		ids = append(ids, c.ID)
		names = append(names, c.Name)
	}

	return &ResolvedEntity{
		ConceptID:           concept.ID,
		Name:                concept.Name,
		Repository:          repository,
		RelatedConceptIDs:   ids,
		RelatedConceptNames: names,
	}, nil
}

func repositoryFromDocumentID(documentID string) string {
	idx := strings.Index(documentID, ":")
	if idx < 0 {
		return ""
	}
	return documentID[:idx]
}
