package databases

import "context"

// VectorResult is a single nearest-neighbor hit. Score is higher-is-closer.
type VectorResult struct {
	ChunkID  string
	Score    float64
	Metadata map[string]string
}

// VectorRecord is one row for BatchUpsert.
type VectorRecord struct {
	ChunkID  string
	Vector   []float32
	Metadata map[string]string
}

// VectorStore is the C4 Vector Index Adapter contract (spec §4.4). All
// implementations must reject vectors whose length does not match
// Dimension() with a kind.ErrDimensionMismatch error, on both write and
// search.
type VectorStore interface {
	// Dimension returns the fixed vector width this store was configured for.
	Dimension() int
	// Upsert writes or replaces the record for chunkID.
	Upsert(ctx context.Context, chunkID string, vector []float32, metadata map[string]string) error
	// BatchUpsert is equivalent to N calls to Upsert.
	BatchUpsert(ctx context.Context, records []VectorRecord) error
	// Delete removes every record whose metadata document_id matches.
	Delete(ctx context.Context, documentID string) error
	// SimilaritySearch returns up to k results matching filter (AND of
	// metadata equality predicates), sorted by score descending.
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error)
}

// GraphDB is the C5 Graph Repository Adapter contract (spec §4.5). All
// operations accept a cancellation context; long-running traversals must
// honor it.
type GraphDB interface {
	UpsertDocument(ctx context.Context, doc DocumentNode) error
	UpsertSection(ctx context.Context, sec SectionNode) error
	UpsertChunk(ctx context.Context, chunk ChunkNode) error
	UpsertConcept(ctx context.Context, concept ConceptNode) error
	// UpsertCodeExample also creates the HAS_CODE_EXAMPLE edge from
	// example.ChunkID.
	UpsertCodeExample(ctx context.Context, example CodeExampleNode) error
	// CreateRelationship creates a directed edge of the given type if not
	// already present.
	CreateRelationship(ctx context.Context, relType, sourceID, targetID string) error

	GetChunksByIds(ctx context.Context, ids []string) ([]ChunkNode, error)
	GetConceptsByChunkIds(ctx context.Context, ids []string) ([]ConceptNode, error)
	GetLinkedDocuments(ctx context.Context, documentID string) ([]DocumentNode, error)
	FindConceptsByName(ctx context.Context, name string) ([]ConceptNode, error)
	GetRelatedConcepts(ctx context.Context, conceptID string, depth int) ([]ConceptNode, error)
	GetChunksByConcept(ctx context.Context, conceptID string) ([]ChunkNode, error)

	// DeleteDocumentCascade removes the document, its sections, its chunks,
	// and all edges incident on them. Concepts and code examples referenced
	// only by the deleted chunks are left in place.
	DeleteDocumentCascade(ctx context.Context, documentID string) error
}

// Manager holds concrete adapter backends resolved from configuration.
type Manager struct {
	Vector VectorStore
	Graph  GraphDB
}

// Close releases any underlying connection pools. No-op for memory backends.
func (m Manager) Close() {
	if c, ok := any(m.Vector).(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if c, ok := any(m.Graph).(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
