package service

import (
	"context"
	"fmt"
	"strings"

	"manifold/internal/persistence/databases"
	"manifold/internal/rag/idnorm"
	"manifold/internal/rag/kind"
	"manifold/internal/rag/linkresolve"
	"manifold/internal/rag/parser"
)

// DocumentIngestionMetadata is the caller-supplied context for Ingest
// (spec §6). PromotionLevel defaults to "draft" when empty.
type DocumentIngestionMetadata struct {
	DocumentID     string
	Repository     string
	FilePath       string
	Title          string
	DocType        string
	PromotionLevel string
	CommitHash     string
}

type h2Section struct {
	line int
	id   string
}

// Ingest runs the C9 pipeline (spec §4.9) against content using metadata.
func (s *Service) Ingest(ctx context.Context, content string, metadata DocumentIngestionMetadata) error {
	if strings.TrimSpace(metadata.DocumentID) == "" {
		return kind.Wrap(kind.ErrInvalidInput, "service.Ingest", fmt.Errorf("document_id is required"))
	}
	promotionLevel := metadata.PromotionLevel
	if promotionLevel == "" {
		promotionLevel = "draft"
	}

	start := s.clock.Now()
	body, _, _ := parser.ParseFrontmatter(content)
	headers := parser.ExtractHeaders(body)
	links := parser.ExtractLinks(body)
	chunks := parser.ChunkByHeaders(body)

	if len(chunks) == 0 {
		s.log.Info("ingest_no_chunks", map[string]any{"document_id": metadata.DocumentID})
		return nil
	}

	hasIntro := documentHasIntro(body, headers)
	h2Headers := filterH2(headers)

	doc := databases.DocumentNode{
		ID:             metadata.DocumentID,
		Repository:     metadata.Repository,
		FilePath:       metadata.FilePath,
		Title:          metadata.Title,
		DocType:        metadata.DocType,
		PromotionLevel: promotionLevel,
		CommitHash:     metadata.CommitHash,
	}
	if err := s.graph.UpsertDocument(ctx, doc); err != nil {
		s.metrics.IncCounter("ingest_failed_total", map[string]string{"step": "upsert_document"})
		return kind.Wrap(kind.ErrStoreError, "service.Ingest.upsertDocument", err)
	}

	sections, h2Lines := buildSections(metadata.DocumentID, hasIntro, h2Headers)
	for _, sec := range sections {
		if err := s.graph.UpsertSection(ctx, sec); err != nil {
			s.metrics.IncCounter("ingest_failed_total", map[string]string{"step": "upsert_section"})
			return kind.Wrap(kind.ErrStoreError, "service.Ingest.upsertSection", err)
		}
	}

	introSectionID := ""
	if hasIntro {
		introSectionID = sections[0].ID
	} else if len(sections) > 0 {
		introSectionID = sections[0].ID
	}

	var (
		indexed, embedFailed, extractFailed, codeExamples int
	)
	for _, chunk := range chunks {
		sectionID := parentSectionID(chunk.StartLine, h2Lines, introSectionID)
		chunkID := fmt.Sprintf("%s:chunk-%d", metadata.DocumentID, chunk.Index)

		chunkNode := databases.ChunkNode{
			ID:         chunkID,
			SectionID:  sectionID,
			DocumentID: metadata.DocumentID,
			Content:    chunk.Content,
			Order:      chunk.Index,
			TokenCount: len(chunk.Content) / 4,
		}
		if err := s.graph.UpsertChunk(ctx, chunkNode); err != nil {
			s.log.Error("ingest_chunk_upsert_failed", map[string]any{"chunk_id": chunkID, "error": err.Error()})
			continue
		}

		vec, err := s.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			embedFailed++
			s.log.Error("ingest_embed_failed", map[string]any{"chunk_id": chunkID, "error": err.Error()})
		} else {
			meta := map[string]string{
				"document_id": metadata.DocumentID,
				"section_id":  sectionID,
				"chunk_id":    chunkID,
				"file_path":   metadata.FilePath,
				"repository":  metadata.Repository,
				"header_path": chunk.HeaderPath,
				"doc_type":    metadata.DocType,
			}
			if err := s.vector.Upsert(ctx, chunkID, vec, meta); err != nil {
				s.log.Error("ingest_vector_upsert_failed", map[string]any{"chunk_id": chunkID, "error": err.Error()})
			} else {
				indexed++
			}
		}

		if s.extractor != nil {
			entities, err := s.extractor.Extract(ctx, chunk.Content)
			if err != nil {
				extractFailed++
				s.log.Error("ingest_entity_extraction_failed", map[string]any{"chunk_id": chunkID, "error": err.Error()})
			}
			for _, e := range entities {
				conceptID := idnorm.ConceptID(e.Name)
				concept := databases.ConceptNode{ID: conceptID, Name: e.Name, Description: e.Description, Category: e.Type, Aliases: e.Aliases}
				if err := s.graph.UpsertConcept(ctx, concept); err != nil {
					s.log.Error("ingest_concept_upsert_failed", map[string]any{"concept_id": conceptID, "error": err.Error()})
					continue
				}
				if err := s.graph.CreateRelationship(ctx, databases.EdgeMentions, chunkID, conceptID); err != nil {
					s.log.Error("ingest_mentions_edge_failed", map[string]any{"chunk_id": chunkID, "concept_id": conceptID, "error": err.Error()})
				}
			}
		}

		codeBlocks := parser.ExtractCodeBlocks(chunk.Content)
		for i, cb := range codeBlocks {
			exampleID := fmt.Sprintf("%s:code-%d", chunkID, i)
			ex := databases.CodeExampleNode{ID: exampleID, ChunkID: chunkID, Language: cb.Language, Code: cb.Code}
			if err := s.graph.UpsertCodeExample(ctx, ex); err != nil {
				s.log.Error("ingest_code_example_upsert_failed", map[string]any{"example_id": exampleID, "error": err.Error()})
				continue
			}
			codeExamples++
		}
	}

	for _, link := range links {
		target, ok := linkresolve.Resolve(metadata.FilePath, link.URL)
		if !ok {
			continue
		}
		targetDocID := strings.ToLower(metadata.Repository) + ":" + target
		if err := s.graph.CreateRelationship(ctx, databases.EdgeLinksTo, metadata.DocumentID, targetDocID); err != nil {
			s.log.Error("ingest_links_to_edge_failed", map[string]any{"target": targetDocID, "error": err.Error()})
		}
	}

	dur := s.clock.Now().Sub(start)
	s.metrics.ObserveHistogram("ingest_duration_seconds", dur.Seconds(), nil)
	s.log.Info("ingest_complete", map[string]any{
		"document_id":    metadata.DocumentID,
		"chunks":         len(chunks),
		"indexed":        indexed,
		"embed_failed":   embedFailed,
		"extract_failed": extractFailed,
		"code_examples":  codeExamples,
	})
	return nil
}

// Delete implements spec §4.9's Delete: vectors first, then graph cascade.
// The caller observes the first error; the other side may be left stale.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return kind.Wrap(kind.ErrInvalidInput, "service.Delete", fmt.Errorf("document_id is required"))
	}
	if err := s.vector.Delete(ctx, documentID); err != nil {
		return kind.Wrap(kind.ErrStoreError, "service.Delete.vector", err)
	}
	if err := s.graph.DeleteDocumentCascade(ctx, documentID); err != nil {
		return kind.Wrap(kind.ErrStoreError, "service.Delete.graph", err)
	}
	return nil
}

// documentHasIntro reports whether an "Introduction" section is warranted:
// non-whitespace content before the first header, and no H2 header starting
// at line 0.
func documentHasIntro(body string, headers []parser.Header) bool {
	if len(headers) == 0 {
		return strings.TrimSpace(body) != ""
	}
	first := headers[0]
	if first.Level == 2 && first.Line == 0 {
		return false
	}
	lines := strings.Split(body, "\n")
	if first.Line > len(lines) {
		return strings.TrimSpace(body) != ""
	}
	lead := strings.Join(lines[:first.Line], "\n")
	return strings.TrimSpace(lead) != ""
}

func filterH2(headers []parser.Header) []parser.Header {
	out := make([]parser.Header, 0, len(headers))
	for _, h := range headers {
		if h.Level == 2 {
			out = append(out, h)
		}
	}
	return out
}

// buildSections assigns dense orders starting at 0: the optional intro
// section first, then one section per H2 header. It also returns a
// line->sectionID index (ascending by line) used to attach chunks.
func buildSections(documentID string, hasIntro bool, h2Headers []parser.Header) ([]databases.SectionNode, []h2Section) {
	var sections []databases.SectionNode
	var h2Lines []h2Section
	order := 0
	if hasIntro {
		sections = append(sections, databases.SectionNode{
			ID:           documentID + ":introduction",
			DocumentID:   documentID,
			Title:        "Introduction",
			Order:        order,
			HeadingLevel: 0,
		})
		order++
	}
	for _, h := range h2Headers {
		id := documentID + ":" + idnorm.SectionID(h.Text)
		sections = append(sections, databases.SectionNode{
			ID:           id,
			DocumentID:   documentID,
			Title:        h.Text,
			Order:        order,
			HeadingLevel: 2,
		})
		h2Lines = append(h2Lines, h2Section{line: h.Line, id: id})
		order++
	}
	return sections, h2Lines
}

// parentSectionID picks the last H2 section whose line <= startLine;
// chunks before any H2 attach to fallbackSectionID (the intro section, or
// the first H2 section when there is no intro).
func parentSectionID(startLine int, h2Lines []h2Section, fallbackSectionID string) string {
	chosen := fallbackSectionID
	for _, h := range h2Lines {
		if h.line <= startLine {
			chosen = h.id
		} else {
			break
		}
	}
	return chosen
}
