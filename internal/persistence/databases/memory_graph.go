package databases

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memNode struct {
	id     string
	labels []string
	props  map[string]any
}

type memEdge struct {
	source, rel, target string
}

// memoryGraph is a linear-scan graph store over an arena of nodes plus a
// flat list of (source, type, target) edges, mirroring the teacher's generic
// nodes/edges shape without requiring SQL.
type memoryGraph struct {
	mu    sync.RWMutex
	nodes map[string]memNode
	edges []memEdge
}

// NewMemoryGraph returns an in-process GraphDB, used for tests and for the
// memory backend configuration.
func NewMemoryGraph() GraphDB {
	return &memoryGraph{nodes: make(map[string]memNode)}
}

func (g *memoryGraph) upsertNode(id string, labels []string, props map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	g.nodes[id] = memNode{id: id, labels: append([]string{}, labels...), props: cp}
}

func (g *memoryGraph) addEdge(source, rel, target string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.edges {
		if e.source == source && e.rel == rel && e.target == target {
			return
		}
	}
	g.edges = append(g.edges, memEdge{source: source, rel: rel, target: target})
}

func (g *memoryGraph) UpsertDocument(_ context.Context, doc DocumentNode) error {
	g.upsertNode(doc.ID, []string{LabelDocument}, map[string]any{
		"repository":      doc.Repository,
		"file_path":       doc.FilePath,
		"title":           doc.Title,
		"doc_type":        doc.DocType,
		"promotion_level": doc.PromotionLevel,
		"commit_hash":     doc.CommitHash,
	})
	return nil
}

func (g *memoryGraph) UpsertSection(_ context.Context, sec SectionNode) error {
	g.upsertNode(sec.ID, []string{LabelSection}, map[string]any{
		"document_id":   sec.DocumentID,
		"title":         sec.Title,
		"order":         sec.Order,
		"heading_level": sec.HeadingLevel,
	})
	g.addEdge(sec.DocumentID, EdgeHasSection, sec.ID)
	return nil
}

func (g *memoryGraph) UpsertChunk(_ context.Context, chunk ChunkNode) error {
	g.upsertNode(chunk.ID, []string{LabelChunk}, map[string]any{
		"section_id":  chunk.SectionID,
		"document_id": chunk.DocumentID,
		"content":     chunk.Content,
		"order":       chunk.Order,
		"token_count": chunk.TokenCount,
	})
	g.addEdge(chunk.SectionID, EdgeHasChunk, chunk.ID)
	return nil
}

func (g *memoryGraph) UpsertConcept(_ context.Context, concept ConceptNode) error {
	g.upsertNode(concept.ID, []string{LabelConcept}, map[string]any{
		"name":        concept.Name,
		"description": concept.Description,
		"category":    concept.Category,
		"aliases":     append([]string{}, concept.Aliases...),
	})
	return nil
}

func (g *memoryGraph) UpsertCodeExample(_ context.Context, ex CodeExampleNode) error {
	g.upsertNode(ex.ID, []string{LabelCodeExample}, map[string]any{
		"chunk_id": ex.ChunkID,
		"language": ex.Language,
		"code":     ex.Code,
	})
	g.addEdge(ex.ChunkID, EdgeHasCodeExample, ex.ID)
	return nil
}

func (g *memoryGraph) CreateRelationship(_ context.Context, relType, sourceID, targetID string) error {
	g.addEdge(sourceID, relType, targetID)
	return nil
}

func (g *memoryGraph) GetChunksByIds(_ context.Context, ids []string) ([]ChunkNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ChunkNode, 0, len(ids))
	for _, id := range ids {
		n, ok := g.nodes[id]
		if !ok || !hasLabel(n, LabelChunk) {
			continue
		}
		out = append(out, chunkFromNode(n))
	}
	return out, nil
}

func (g *memoryGraph) GetConceptsByChunkIds(_ context.Context, ids []string) ([]ConceptNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	seen := map[string]bool{}
	out := []ConceptNode{}
	for _, e := range g.edges {
		if e.rel != EdgeMentions || !want[e.source] {
			continue
		}
		if seen[e.target] {
			continue
		}
		n, ok := g.nodes[e.target]
		if !ok || !hasLabel(n, LabelConcept) {
			continue
		}
		seen[e.target] = true
		out = append(out, conceptFromNode(n))
	}
	return out, nil
}

func (g *memoryGraph) GetLinkedDocuments(_ context.Context, documentID string) ([]DocumentNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := []DocumentNode{}
	for _, e := range g.edges {
		if e.source != documentID || e.rel != EdgeLinksTo {
			continue
		}
		n, ok := g.nodes[e.target]
		if !ok || !hasLabel(n, LabelDocument) {
			continue
		}
		out = append(out, documentFromNode(n))
	}
	return out, nil
}

func (g *memoryGraph) FindConceptsByName(_ context.Context, name string) ([]ConceptNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	low := strings.ToLower(strings.TrimSpace(name))
	out := []ConceptNode{}
	for _, n := range g.nodes {
		if !hasLabel(n, LabelConcept) {
			continue
		}
		c := conceptFromNode(n)
		if strings.ToLower(c.Name) == low {
			out = append(out, c)
			continue
		}
		for _, a := range c.Aliases {
			if strings.ToLower(a) == low {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *memoryGraph) GetRelatedConcepts(ctx context.Context, conceptID string, depth int) ([]ConceptNode, error) {
	if depth != 1 {
		depth = 1
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	chunkIDs := g.chunksMentioningLocked(conceptID)
	seen := map[string]bool{conceptID: true}
	out := []ConceptNode{}
	for _, chunkID := range chunkIDs {
		for _, e := range g.edges {
			if e.source != chunkID || e.rel != EdgeMentions || seen[e.target] {
				continue
			}
			n, ok := g.nodes[e.target]
			if !ok || !hasLabel(n, LabelConcept) {
				continue
			}
			seen[e.target] = true
			out = append(out, conceptFromNode(n))
		}
	}
	return out, nil
}

func (g *memoryGraph) GetChunksByConcept(_ context.Context, conceptID string) ([]ChunkNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := []ChunkNode{}
	for _, chunkID := range g.chunksMentioningLocked(conceptID) {
		n, ok := g.nodes[chunkID]
		if !ok {
			continue
		}
		out = append(out, chunkFromNode(n))
	}
	return out, nil
}

// chunksMentioningLocked returns chunk ids with an outgoing MENTIONS edge to
// conceptID. Caller must hold g.mu (read or write).
func (g *memoryGraph) chunksMentioningLocked(conceptID string) []string {
	out := []string{}
	for _, e := range g.edges {
		if e.rel == EdgeMentions && e.target == conceptID {
			out = append(out, e.source)
		}
	}
	return out
}

func (g *memoryGraph) DeleteDocumentCascade(_ context.Context, documentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	doomed := map[string]bool{documentID: true}
	for id, n := range g.nodes {
		if hasLabel(n, LabelSection) && n.props["document_id"] == documentID {
			doomed[id] = true
		}
		if hasLabel(n, LabelChunk) && n.props["document_id"] == documentID {
			doomed[id] = true
		}
	}
	for id := range doomed {
		delete(g.nodes, id)
	}
	kept := g.edges[:0:0]
	for _, e := range g.edges {
		if doomed[e.source] || doomed[e.target] {
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return nil
}

func hasLabel(n memNode, label string) bool {
	for _, l := range n.labels {
		if l == label {
			return true
		}
	}
	return false
}

func chunkFromNode(n memNode) ChunkNode {
	return ChunkNode{
		ID:         n.id,
		SectionID:  str(n.props["section_id"]),
		DocumentID: str(n.props["document_id"]),
		Content:    str(n.props["content"]),
		Order:      toInt(n.props["order"]),
		TokenCount: toInt(n.props["token_count"]),
	}
}

func conceptFromNode(n memNode) ConceptNode {
	var aliases []string
	if a, ok := n.props["aliases"].([]string); ok {
		aliases = a
	}
	return ConceptNode{
		ID:          n.id,
		Name:        str(n.props["name"]),
		Description: str(n.props["description"]),
		Category:    str(n.props["category"]),
		Aliases:     aliases,
	}
}

func documentFromNode(n memNode) DocumentNode {
	return DocumentNode{
		ID:             n.id,
		Repository:     str(n.props["repository"]),
		FilePath:       str(n.props["file_path"]),
		Title:          str(n.props["title"]),
		DocType:        str(n.props["doc_type"]),
		PromotionLevel: str(n.props["promotion_level"]),
		CommitHash:     str(n.props["commit_hash"]),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
