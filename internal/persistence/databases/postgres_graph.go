package databases

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"manifold/internal/rag/kind"
)

// pgGraph stores the property graph as a generic arena of nodes keyed by id
// plus an edge list keyed by (type, source), per the re-architecture note in
// spec §9 ("never as a pointer graph"). Node attributes live in JSONB so
// every label shares one table.
type pgGraph struct{ pool *pgxpool.Pool }

// NewPostgresGraph prepares the generic nodes/edges schema and returns a
// GraphDB backed by pool.
func NewPostgresGraph(pool *pgxpool.Pool) GraphDB {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS nodes (
  id TEXT PRIMARY KEY,
  labels TEXT[] NOT NULL DEFAULT '{}',
  props JSONB NOT NULL DEFAULT '{}'::jsonb
);`)
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS edges (
  id BIGSERIAL PRIMARY KEY,
  source TEXT NOT NULL,
  rel TEXT NOT NULL,
  target TEXT NOT NULL,
  props JSONB NOT NULL DEFAULT '{}'::jsonb,
  UNIQUE(source, rel, target)
);`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS edges_src_rel ON edges(source, rel)`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS edges_dst_rel ON edges(target, rel)`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS nodes_labels_gin ON nodes USING GIN(labels)`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS nodes_props_gin ON nodes USING GIN(props)`)
	return &pgGraph{pool: pool}
}

func (g *pgGraph) upsertNode(ctx context.Context, id string, labels []string, props map[string]any) error {
	_, err := g.pool.Exec(ctx, `
INSERT INTO nodes(id, labels, props) VALUES($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET labels=EXCLUDED.labels, props=EXCLUDED.props`, id, labels, props)
	return err
}

func (g *pgGraph) addEdge(ctx context.Context, source, rel, target string) error {
	_, err := g.pool.Exec(ctx, `
INSERT INTO edges(source, rel, target) VALUES($1,$2,$3)
ON CONFLICT (source, rel, target) DO NOTHING`, source, rel, target)
	return err
}

func (g *pgGraph) UpsertDocument(ctx context.Context, doc DocumentNode) error {
	err := g.upsertNode(ctx, doc.ID, []string{LabelDocument}, map[string]any{
		"repository":      doc.Repository,
		"file_path":       doc.FilePath,
		"title":           doc.Title,
		"doc_type":        doc.DocType,
		"promotion_level": doc.PromotionLevel,
		"commit_hash":     doc.CommitHash,
	})
	if err != nil {
		return kind.Wrap(kind.ErrStoreError, "UpsertDocument", err)
	}
	return nil
}

func (g *pgGraph) UpsertSection(ctx context.Context, sec SectionNode) error {
	if err := g.upsertNode(ctx, sec.ID, []string{LabelSection}, map[string]any{
		"document_id":   sec.DocumentID,
		"title":         sec.Title,
		"order":         sec.Order,
		"heading_level": sec.HeadingLevel,
	}); err != nil {
		return kind.Wrap(kind.ErrStoreError, "UpsertSection", err)
	}
	if err := g.addEdge(ctx, sec.DocumentID, EdgeHasSection, sec.ID); err != nil {
		return kind.Wrap(kind.ErrStoreError, "UpsertSection.edge", err)
	}
	return nil
}

func (g *pgGraph) UpsertChunk(ctx context.Context, chunk ChunkNode) error {
	if err := g.upsertNode(ctx, chunk.ID, []string{LabelChunk}, map[string]any{
		"section_id":  chunk.SectionID,
		"document_id": chunk.DocumentID,
		"content":     chunk.Content,
		"order":       chunk.Order,
		"token_count": chunk.TokenCount,
	}); err != nil {
		return kind.Wrap(kind.ErrStoreError, "UpsertChunk", err)
	}
	if err := g.addEdge(ctx, chunk.SectionID, EdgeHasChunk, chunk.ID); err != nil {
		return kind.Wrap(kind.ErrStoreError, "UpsertChunk.edge", err)
	}
	return nil
}

func (g *pgGraph) UpsertConcept(ctx context.Context, concept ConceptNode) error {
	if err := g.upsertNode(ctx, concept.ID, []string{LabelConcept}, map[string]any{
		"name":        concept.Name,
		"description": concept.Description,
		"category":    concept.Category,
		"aliases":     concept.Aliases,
	}); err != nil {
		return kind.Wrap(kind.ErrStoreError, "UpsertConcept", err)
	}
	return nil
}

func (g *pgGraph) UpsertCodeExample(ctx context.Context, ex CodeExampleNode) error {
	if err := g.upsertNode(ctx, ex.ID, []string{LabelCodeExample}, map[string]any{
		"chunk_id": ex.ChunkID,
		"language": ex.Language,
		"code":     ex.Code,
	}); err != nil {
		return kind.Wrap(kind.ErrStoreError, "UpsertCodeExample", err)
	}
	if err := g.addEdge(ctx, ex.ChunkID, EdgeHasCodeExample, ex.ID); err != nil {
		return kind.Wrap(kind.ErrStoreError, "UpsertCodeExample.edge", err)
	}
	return nil
}

func (g *pgGraph) CreateRelationship(ctx context.Context, relType, sourceID, targetID string) error {
	if err := g.addEdge(ctx, sourceID, relType, targetID); err != nil {
		return kind.Wrap(kind.ErrStoreError, "CreateRelationship", err)
	}
	return nil
}

func (g *pgGraph) GetChunksByIds(ctx context.Context, ids []string) ([]ChunkNode, error) {
	if len(ids) == 0 {
		return []ChunkNode{}, nil
	}
	rows, err := g.pool.Query(ctx, `SELECT id, props FROM nodes WHERE id = ANY($1) AND labels @> ARRAY['Chunk']`, ids)
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "GetChunksByIds", err)
	}
	defer rows.Close()
	byID := map[string]ChunkNode{}
	for rows.Next() {
		var id string
		var props map[string]any
		if err := rows.Scan(&id, &props); err != nil {
			return nil, kind.Wrap(kind.ErrStoreError, "GetChunksByIds.scan", err)
		}
		byID[id] = chunkFromProps(id, props)
	}
	if err := rows.Err(); err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "GetChunksByIds.rows", err)
	}
	out := make([]ChunkNode, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *pgGraph) GetConceptsByChunkIds(ctx context.Context, ids []string) ([]ConceptNode, error) {
	if len(ids) == 0 {
		return []ConceptNode{}, nil
	}
	rows, err := g.pool.Query(ctx, `
SELECT DISTINCT n.id, n.props
FROM edges e
JOIN nodes n ON n.id = e.target
WHERE e.rel = $1 AND e.source = ANY($2) AND n.labels @> ARRAY['Concept']`, EdgeMentions, ids)
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "GetConceptsByChunkIds", err)
	}
	defer rows.Close()
	out := []ConceptNode{}
	for rows.Next() {
		var id string
		var props map[string]any
		if err := rows.Scan(&id, &props); err != nil {
			return nil, kind.Wrap(kind.ErrStoreError, "GetConceptsByChunkIds.scan", err)
		}
		out = append(out, conceptFromProps(id, props))
	}
	return out, rows.Err()
}

func (g *pgGraph) GetLinkedDocuments(ctx context.Context, documentID string) ([]DocumentNode, error) {
	rows, err := g.pool.Query(ctx, `
SELECT n.id, n.props
FROM edges e
JOIN nodes n ON n.id = e.target
WHERE e.source = $1 AND e.rel = $2 AND n.labels @> ARRAY['Document']`, documentID, EdgeLinksTo)
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "GetLinkedDocuments", err)
	}
	defer rows.Close()
	out := []DocumentNode{}
	for rows.Next() {
		var id string
		var props map[string]any
		if err := rows.Scan(&id, &props); err != nil {
			return nil, kind.Wrap(kind.ErrStoreError, "GetLinkedDocuments.scan", err)
		}
		out = append(out, documentFromProps(id, props))
	}
	return out, rows.Err()
}

func (g *pgGraph) FindConceptsByName(ctx context.Context, name string) ([]ConceptNode, error) {
	low := strings.ToLower(strings.TrimSpace(name))
	rows, err := g.pool.Query(ctx, `
SELECT id, props FROM nodes
WHERE labels @> ARRAY['Concept']
  AND (lower(props->>'name') = $1
       OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(COALESCE(props->'aliases','[]'::jsonb)) a WHERE lower(a) = $1))
ORDER BY id`, low)
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "FindConceptsByName", err)
	}
	defer rows.Close()
	out := []ConceptNode{}
	for rows.Next() {
		var id string
		var props map[string]any
		if err := rows.Scan(&id, &props); err != nil {
			return nil, kind.Wrap(kind.ErrStoreError, "FindConceptsByName.scan", err)
		}
		out = append(out, conceptFromProps(id, props))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, rows.Err()
}

func (g *pgGraph) GetRelatedConcepts(ctx context.Context, conceptID string, depth int) ([]ConceptNode, error) {
	if depth != 1 {
		depth = 1
	}
	rows, err := g.pool.Query(ctx, `
SELECT DISTINCT n.id, n.props
FROM edges mentioning
JOIN edges co_mentions ON co_mentions.source = mentioning.source AND co_mentions.rel = $1
JOIN nodes n ON n.id = co_mentions.target
WHERE mentioning.rel = $1 AND mentioning.target = $2 AND co_mentions.target <> $2
  AND n.labels @> ARRAY['Concept']`, EdgeMentions, conceptID)
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "GetRelatedConcepts", err)
	}
	defer rows.Close()
	out := []ConceptNode{}
	for rows.Next() {
		var id string
		var props map[string]any
		if err := rows.Scan(&id, &props); err != nil {
			return nil, kind.Wrap(kind.ErrStoreError, "GetRelatedConcepts.scan", err)
		}
		out = append(out, conceptFromProps(id, props))
	}
	return out, rows.Err()
}

func (g *pgGraph) GetChunksByConcept(ctx context.Context, conceptID string) ([]ChunkNode, error) {
	rows, err := g.pool.Query(ctx, `
SELECT n.id, n.props
FROM edges e
JOIN nodes n ON n.id = e.source
WHERE e.rel = $1 AND e.target = $2 AND n.labels @> ARRAY['Chunk']`, EdgeMentions, conceptID)
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "GetChunksByConcept", err)
	}
	defer rows.Close()
	out := []ChunkNode{}
	for rows.Next() {
		var id string
		var props map[string]any
		if err := rows.Scan(&id, &props); err != nil {
			return nil, kind.Wrap(kind.ErrStoreError, "GetChunksByConcept.scan", err)
		}
		out = append(out, chunkFromProps(id, props))
	}
	return out, rows.Err()
}

func (g *pgGraph) DeleteDocumentCascade(ctx context.Context, documentID string) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return kind.Wrap(kind.ErrStoreError, "DeleteDocumentCascade.begin", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
SELECT id FROM nodes
WHERE id = $1
   OR (labels && ARRAY['Section','Chunk'] AND props->>'document_id' = $1)`, documentID)
	if err != nil {
		return kind.Wrap(kind.ErrStoreError, "DeleteDocumentCascade.select", err)
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return kind.Wrap(kind.ErrStoreError, "DeleteDocumentCascade.scan", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return kind.Wrap(kind.ErrStoreError, "DeleteDocumentCascade.rows", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM edges WHERE source = ANY($1) OR target = ANY($1)`, ids); err != nil {
		return kind.Wrap(kind.ErrStoreError, "DeleteDocumentCascade.edges", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM nodes WHERE id = ANY($1)`, ids); err != nil {
		return kind.Wrap(kind.ErrStoreError, "DeleteDocumentCascade.nodes", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return kind.Wrap(kind.ErrStoreError, "DeleteDocumentCascade.commit", err)
	}
	return nil
}

func chunkFromProps(id string, props map[string]any) ChunkNode {
	return ChunkNode{
		ID:         id,
		SectionID:  strProp(props, "section_id"),
		DocumentID: strProp(props, "document_id"),
		Content:    strProp(props, "content"),
		Order:      intProp(props, "order"),
		TokenCount: intProp(props, "token_count"),
	}
}

func conceptFromProps(id string, props map[string]any) ConceptNode {
	var aliases []string
	if raw, ok := props["aliases"].([]any); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				aliases = append(aliases, s)
			}
		}
	}
	return ConceptNode{
		ID:          id,
		Name:        strProp(props, "name"),
		Description: strProp(props, "description"),
		Category:    strProp(props, "category"),
		Aliases:     aliases,
	}
}

func documentFromProps(id string, props map[string]any) DocumentNode {
	return DocumentNode{
		ID:             id,
		Repository:     strProp(props, "repository"),
		FilePath:       strProp(props, "file_path"),
		Title:          strProp(props, "title"),
		DocType:        strProp(props, "doc_type"),
		PromotionLevel: strProp(props, "promotion_level"),
		CommitHash:     strProp(props, "commit_hash"),
	}
}

func strProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
