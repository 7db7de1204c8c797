package databases

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"manifold/internal/rag/kind"
)

type pgVector struct {
	pool       *pgxpool.Pool
	dimensions int
	metric     string // cosine|l2|ip
}

// NewPostgresVector prepares a pgvector-backed embeddings table and returns
// a VectorStore fixed at dimensions.
func NewPostgresVector(pool *pgxpool.Pool, dimensions int, metric string) VectorStore {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	vecType := "vector"
	if dimensions > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimensions)
	}
	_, _ = pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS embeddings (
  chunk_id TEXT PRIMARY KEY,
  vec %s,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);`, vecType))
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS embeddings_doc_id ON embeddings((metadata->>'document_id'))`)
	return &pgVector{pool: pool, dimensions: dimensions, metric: strings.ToLower(strings.TrimSpace(metric))}
}

func (p *pgVector) Dimension() int { return p.dimensions }

func (p *pgVector) checkDim(v []float32) error {
	if p.dimensions > 0 && len(v) != p.dimensions {
		return kind.Wrap(kind.ErrDimensionMismatch, "pgVector", nil)
	}
	return nil
}

func (p *pgVector) Upsert(ctx context.Context, chunkID string, vector []float32, metadata map[string]string) error {
	if err := p.checkDim(vector); err != nil {
		return err
	}
	vecLit := toVectorLiteral(vector)
	_, err := p.pool.Exec(ctx, `
INSERT INTO embeddings(chunk_id, vec, metadata) VALUES($1, $2::vector, $3)
ON CONFLICT (chunk_id) DO UPDATE SET vec=EXCLUDED.vec, metadata=EXCLUDED.metadata`, chunkID, vecLit, metadata)
	if err != nil {
		return kind.Wrap(kind.ErrStoreError, "pgVector.Upsert", err)
	}
	return nil
}

func (p *pgVector) BatchUpsert(ctx context.Context, records []VectorRecord) error {
	for _, r := range records {
		if err := p.Upsert(ctx, r.ChunkID, r.Vector, r.Metadata); err != nil {
			return err
		}
	}
	return nil
}

func (p *pgVector) Delete(ctx context.Context, documentID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM embeddings WHERE metadata->>'document_id' = $1`, documentID)
	if err != nil {
		return kind.Wrap(kind.ErrStoreError, "pgVector.Delete", err)
	}
	return nil
}

func (p *pgVector) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error) {
	if err := p.checkDim(vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}
	vecLit := toVectorLiteral(vector)
	op := "<=>"
	scoreExpr := "1 - (vec <=> $1::vector)"
	switch p.metric {
	case "l2", "euclidean":
		op = "<->"
		scoreExpr = "-(vec <-> $1::vector)"
	case "ip", "dot":
		op = "<#>"
		scoreExpr = "-(vec <#> $1::vector)"
	}
	args := []any{vecLit, k}
	where := ""
	if len(filter) > 0 {
		where = "WHERE metadata @> $3"
		args = []any{vecLit, k, filter}
	}
	query := fmt.Sprintf(`SELECT chunk_id, %s AS score, metadata FROM embeddings %s ORDER BY vec %s $1::vector LIMIT $2`, scoreExpr, where, op)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, kind.Wrap(kind.ErrStoreError, "pgVector.SimilaritySearch", err)
	}
	defer rows.Close()
	out := make([]VectorResult, 0, k)
	for rows.Next() {
		var r VectorResult
		var md map[string]string
		if err := rows.Scan(&r.ChunkID, &r.Score, &md); err != nil {
			return nil, kind.Wrap(kind.ErrStoreError, "pgVector.SimilaritySearch.scan", err)
		}
		r.Metadata = md
		out = append(out, r)
	}
	return out, rows.Err()
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	b := strings.Builder{}
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%g", x))
	}
	b.WriteByte(']')
	return b.String()
}
