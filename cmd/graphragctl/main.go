// Command graphragctl is a thin CLI over the GraphRAG core operation surface
// (spec §6: Ingest, Delete, Query). It is the reference wiring for the
// RPC/tool layer a real deployment would put in front of internal/rag/service
// — the wire shape is deliberately not constrained by the core package.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"manifold/internal/config"
	"manifold/internal/llm/router"
	"manifold/internal/observability"
	"manifold/internal/persistence/databases"
	"manifold/internal/rag/embedder"
	"manifold/internal/rag/extract"
	"manifold/internal/rag/obs"
	"manifold/internal/rag/resolve"
	"manifold/internal/rag/service"
)

func main() {
	op := flag.String("op", "", "operation: ingest | delete | query")
	documentID := flag.String("document-id", "", "document id, e.g. repo:path/to/file.md (ingest, delete)")
	repository := flag.String("repository", "", "source repository name (ingest)")
	filePath := flag.String("file-path", "", "file path within the repository (ingest)")
	title := flag.String("title", "", "document title (ingest)")
	docType := flag.String("doc-type", "", "document type, e.g. guide|reference (ingest)")
	stdin := flag.Bool("stdin", false, "read ingest content / query text from STDIN")
	text := flag.String("text", "", "inline content (ingest) or query text (query)")
	maxChunks := flag.Int("max-chunks", 0, "query: override MaxChunks")
	minScore := flag.Float64("min-score", 0, "query: override MinRelevanceScore")
	crossRepo := flag.Bool("cross-repo", false, "query: enable cross-repo link resolution")
	flag.Parse()

	observability.InitLogger("graphragctl.log", "info")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	shutdown, err := observability.InitOTel(context.Background(), cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
	} else if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	ctx := context.Background()
	mgr, err := databases.NewManager(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("init stores")
	}
	defer mgr.Close()

	httpClient := observability.NewHTTPClient(nil)
	emb := embedder.New(cfg.Embedding)
	llmRouter := router.New(cfg.LLM, httpClient)
	extractProvider, extractModel, ok := llmRouter.ForTier(router.TierSmall)
	if !ok {
		extractProvider, extractModel, _ = llmRouter.ForTier(router.TierMid)
	}
	extractor := extract.New(extractProvider, extractModel, extract.WithLogger(obs.NewZerologLogger(log.Logger)))
	resolver := resolve.New(mgr.Graph)

	svc := service.New(mgr.Vector, mgr.Graph, emb, extractor, resolver, llmRouter, cfg.Query,
		service.WithLogger(obs.NewZerologLogger(log.Logger)),
		service.WithMetrics(obs.NewOtelMetrics()),
	)

	switch *op {
	case "ingest":
		runIngest(ctx, svc, *documentID, *repository, *filePath, *title, *docType, *text, *stdin)
	case "delete":
		runDelete(ctx, svc, *documentID)
	case "query":
		runQuery(ctx, svc, *text, *stdin, *maxChunks, *minScore, *crossRepo)
	default:
		fmt.Fprintln(os.Stderr, "usage: graphragctl -op={ingest,delete,query} [flags]")
		os.Exit(2)
	}
}

func runIngest(ctx context.Context, svc *service.Service, documentID, repository, filePath, title, docType, text string, stdin bool) {
	if documentID == "" {
		log.Fatal().Msg("ingest requires -document-id")
	}
	content := readInput(text, stdin)
	if content == "" {
		log.Fatal().Msg("no content provided; use -text or -stdin")
	}
	meta := service.DocumentIngestionMetadata{
		DocumentID: documentID,
		Repository: repository,
		FilePath:   filePath,
		Title:      title,
		DocType:    docType,
	}
	if err := svc.Ingest(ctx, content, meta); err != nil {
		log.Fatal().Err(err).Str("document_id", documentID).Msg("ingest failed")
	}
	fmt.Println("ok")
}

func runDelete(ctx context.Context, svc *service.Service, documentID string) {
	if documentID == "" {
		log.Fatal().Msg("delete requires -document-id")
	}
	if err := svc.Delete(ctx, documentID); err != nil {
		log.Fatal().Err(err).Str("document_id", documentID).Msg("delete failed")
	}
	fmt.Println("ok")
}

func runQuery(ctx context.Context, svc *service.Service, text string, stdin bool, maxChunks int, minScore float64, crossRepo bool) {
	q := readInput(text, stdin)
	if q == "" {
		log.Fatal().Msg("no query text provided; use -text or -stdin")
	}
	opts := &service.GraphRagOptions{
		MaxChunks:         maxChunks,
		MinRelevanceScore: minScore,
		UseCrossRepoLinks: crossRepo,
	}
	result, err := svc.Query(ctx, q, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("query failed")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("encode result")
	}
}

func readInput(text string, stdin bool) string {
	if stdin {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatal().Err(err).Msg("read stdin")
		}
		return string(b)
	}
	return strings.TrimSpace(text)
}
