package resolve

import (
	"context"
	"testing"

	"manifold/internal/persistence/databases"
)

func seedGraph(t *testing.T, g databases.GraphDB) {
	t.Helper()
	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	must(g.UpsertDocument(ctx, databases.DocumentNode{ID: "repoX:foo.md", Repository: "repoX"}))
	must(g.UpsertDocument(ctx, databases.DocumentNode{ID: "repoY:bar.md", Repository: "repoY"}))
	must(g.UpsertSection(ctx, databases.SectionNode{ID: "repoX:foo.md:intro", DocumentID: "repoX:foo.md"}))
	must(g.UpsertSection(ctx, databases.SectionNode{ID: "repoY:bar.md:intro", DocumentID: "repoY:bar.md"}))
	must(g.UpsertChunk(ctx, databases.ChunkNode{ID: "repoX:foo.md:chunk-0", SectionID: "repoX:foo.md:intro", DocumentID: "repoX:foo.md"}))
	must(g.UpsertChunk(ctx, databases.ChunkNode{ID: "repoY:bar.md:chunk-0", SectionID: "repoY:bar.md:intro", DocumentID: "repoY:bar.md"}))
	must(g.UpsertConcept(ctx, databases.ConceptNode{ID: "concept:react", Name: "React"}))
	must(g.UpsertConcept(ctx, databases.ConceptNode{ID: "concept:hooks", Name: "Hooks"}))
	must(g.CreateRelationship(ctx, databases.EdgeMentions, "repoX:foo.md:chunk-0", "concept:react"))
	must(g.CreateRelationship(ctx, databases.EdgeMentions, "repoY:bar.md:chunk-0", "concept:react"))
	must(g.CreateRelationship(ctx, databases.EdgeMentions, "repoY:bar.md:chunk-0", "concept:hooks"))
}

func TestResolve_NotFound(t *testing.T) {
	g := databases.NewMemoryGraph()
	r := New(g)
	got, err := r.Resolve(context.Background(), "NoSuchConcept")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result, got %+v", got)
	}
}

func TestResolve_DerivesRepositoryFromFirstChunk(t *testing.T) {
	g := databases.NewMemoryGraph()
	seedGraph(t, g)
	r := New(g)

	got, err := r.Resolve(context.Background(), "React")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a resolved entity")
	}
	if got.ConceptID != "concept:react" {
		t.Fatalf("unexpected concept id %q", got.ConceptID)
	}
	if got.Repository != "repoX" && got.Repository != "repoY" {
		t.Fatalf("expected repository derived from a mentioning chunk, got %q", got.Repository)
	}
}

func TestResolve_RelatedConceptsFromSharedChunk(t *testing.T) {
	g := databases.NewMemoryGraph()
	seedGraph(t, g)
	r := New(g)

	got, err := r.Resolve(context.Background(), "React")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, n := range got.RelatedConceptNames {
		if n == "Hooks" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Hooks among related concepts, got %v", got.RelatedConceptNames)
	}
}
