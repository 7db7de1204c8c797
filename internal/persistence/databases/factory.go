package databases

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"manifold/internal/config"
)

// NewManager constructs the vector and graph adapters from configuration.
// Supported backends: memory (default), postgres/pg/pgvector (vector only),
// qdrant (vector only), postgres/pg (graph only).
func NewManager(ctx context.Context, cfg config.StoreConfig) (Manager, error) {
	var m Manager

	switch cfg.Vector.Backend {
	case "", "memory":
		m.Vector = NewMemoryVector(cfg.Vector.Dimensions)
	case "qdrant":
		if cfg.Vector.DSN == "" {
			return Manager{}, fmt.Errorf("vector backend qdrant requires dsn")
		}
		v, err := NewQdrantVector(cfg.Vector.DSN, cfg.Vector.Collection, cfg.Vector.Dimensions, cfg.Vector.Metric)
		if err != nil {
			return Manager{}, fmt.Errorf("connect qdrant: %w", err)
		}
		m.Vector = v
	case "postgres", "pgvector", "pg":
		if cfg.Vector.DSN == "" {
			return Manager{}, fmt.Errorf("vector backend postgres requires dsn")
		}
		p, err := newPgPool(ctx, cfg.Vector.DSN)
		if err != nil {
			return Manager{}, fmt.Errorf("connect postgres (vector): %w", err)
		}
		m.Vector = NewPostgresVector(p, cfg.Vector.Dimensions, cfg.Vector.Metric)
	default:
		return Manager{}, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}

	switch cfg.Graph.Backend {
	case "", "memory":
		m.Graph = NewMemoryGraph()
	case "postgres", "pg":
		if cfg.Graph.DSN == "" {
			return Manager{}, fmt.Errorf("graph backend postgres requires dsn")
		}
		p, err := newPgPool(ctx, cfg.Graph.DSN)
		if err != nil {
			return Manager{}, fmt.Errorf("connect postgres (graph): %w", err)
		}
		m.Graph = NewPostgresGraph(p)
	default:
		return Manager{}, fmt.Errorf("unsupported graph backend: %s", cfg.Graph.Backend)
	}
	return m, nil
}

func newPgPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 8
	pcfg.MinConns = 0
	pcfg.MaxConnLifetime = time.Hour
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
