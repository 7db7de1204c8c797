package extract

import (
	"context"
	"errors"
	"testing"

	"manifold/internal/llm"
)

type stubProvider struct {
	response string
	err      error
	gotModel string
}

func (s *stubProvider) Chat(ctx context.Context, system string, messages []llm.Message, model string) (string, error) {
	s.gotModel = model
	return s.response, s.err
}

func TestExtract_ValidJSON(t *testing.T) {
	p := &stubProvider{response: `[{"name":"React","type":"library","aliases":["ReactJS"]}]`}
	e := New(p, "mid-model")
	entities, err := e.Extract(context.Background(), "React is a UI library.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "React" {
		t.Fatalf("unexpected entities: %+v", entities)
	}
	if p.gotModel != "mid-model" {
		t.Fatalf("expected model to be forwarded, got %q", p.gotModel)
	}
}

func TestExtract_EmptyArray(t *testing.T) {
	p := &stubProvider{response: `[]`}
	e := New(p, "m")
	entities, err := e.Extract(context.Background(), "nothing interesting here")
	if err != nil || len(entities) != 0 {
		t.Fatalf("expected empty, got %+v err=%v", entities, err)
	}
}

func TestExtract_LiteralNullIsEmptyNotError(t *testing.T) {
	p := &stubProvider{response: "null"}
	e := New(p, "m")
	entities, err := e.Extract(context.Background(), "x")
	if err != nil || entities != nil {
		t.Fatalf("expected nil, nil got %+v, %v", entities, err)
	}
}

func TestExtract_MalformedJSONIsEmptyNotError(t *testing.T) {
	p := &stubProvider{response: "this is not json"}
	e := New(p, "m")
	entities, err := e.Extract(context.Background(), "x")
	if err != nil {
		t.Fatalf("expected no error for malformed JSON, got %v", err)
	}
	if entities != nil {
		t.Fatalf("expected empty list, got %+v", entities)
	}
}

func TestExtract_CodeFenceWrappedJSON(t *testing.T) {
	p := &stubProvider{response: "```json\n[{\"name\":\"Go\",\"type\":\"language\"}]\n```"}
	e := New(p, "m")
	entities, err := e.Extract(context.Background(), "x")
	if err != nil || len(entities) != 1 || entities[0].Name != "Go" {
		t.Fatalf("unexpected result: %+v, %v", entities, err)
	}
}

func TestExtract_EmptyChunkSkipsCall(t *testing.T) {
	p := &stubProvider{response: "should not be used"}
	e := New(p, "m")
	entities, err := e.Extract(context.Background(), "   ")
	if err != nil || entities != nil {
		t.Fatalf("expected no call for blank input, got %+v, %v", entities, err)
	}
}

func TestExtract_ProviderErrorPropagates(t *testing.T) {
	p := &stubProvider{err: errors.New("upstream down")}
	e := New(p, "m")
	_, err := e.Extract(context.Background(), "x")
	if err == nil {
		t.Fatal("expected provider error to propagate")
	}
}
