package parser

import "testing"

func TestParseFrontmatter(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		content := "---\ntitle: Foo\n---\n# Heading\nbody"
		body, fm, has := ParseFrontmatter(content)
		if !has {
			t.Fatal("expected frontmatter detected")
		}
		if fm != "title: Foo" {
			t.Errorf("unexpected frontmatter: %q", fm)
		}
		if body != "# Heading\nbody" {
			t.Errorf("unexpected body: %q", body)
		}
	})

	t.Run("absent", func(t *testing.T) {
		content := "# Heading\nbody"
		body, _, has := ParseFrontmatter(content)
		if has {
			t.Fatal("expected no frontmatter")
		}
		if body != content {
			t.Errorf("body should be unchanged: %q", body)
		}
	})

	t.Run("unterminated treated as body", func(t *testing.T) {
		content := "---\ntitle: Foo\n# Heading"
		body, _, has := ParseFrontmatter(content)
		if has {
			t.Fatal("expected no frontmatter for unterminated block")
		}
		if body != content {
			t.Errorf("body should equal full content: %q", body)
		}
	})
}

func TestExtractHeaders(t *testing.T) {
	body := "intro\n# Title\ntext\n## Sub\nmore"
	headers := ExtractHeaders(body)
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(headers))
	}
	if headers[0].Level != 1 || headers[0].Text != "Title" || headers[0].Line != 1 {
		t.Errorf("unexpected header[0]: %+v", headers[0])
	}
	if headers[1].Level != 2 || headers[1].Text != "Sub" || headers[1].Line != 3 {
		t.Errorf("unexpected header[1]: %+v", headers[1])
	}
}

func TestExtractLinks(t *testing.T) {
	body := "See [Go docs](https://go.dev) and [local](./other.md#sec)."
	links := ExtractLinks(body)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].Text != "Go docs" || links[0].URL != "https://go.dev" {
		t.Errorf("unexpected link[0]: %+v", links[0])
	}
	if links[1].Text != "local" || links[1].URL != "./other.md#sec" {
		t.Errorf("unexpected link[1]: %+v", links[1])
	}
}

func TestExtractCodeBlocks(t *testing.T) {
	body := "before\n```go\nfmt.Println(\"hi\")\n```\nafter\n```\nplain\n```\n"
	blocks := ExtractCodeBlocks(body)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 code blocks, got %d", len(blocks))
	}
	if blocks[0].Language != "go" || blocks[0].Code != `fmt.Println("hi")` {
		t.Errorf("unexpected block[0]: %+v", blocks[0])
	}
	if blocks[1].Language != "" || blocks[1].Code != "plain" {
		t.Errorf("unexpected block[1]: %+v", blocks[1])
	}
}

func TestChunkByHeaders_NoHeaders(t *testing.T) {
	body := "just a paragraph\nwith two lines"
	chunks := ChunkByHeaders(body)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].HeaderPath != "" || chunks[0].StartLine != 0 || chunks[0].Index != 0 {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}

func TestChunkByHeaders_LeadingContent(t *testing.T) {
	body := "intro text\n# Title\nbody text"
	chunks := ChunkByHeaders(body)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].HeaderPath != "" || chunks[0].StartLine != 0 || chunks[0].Content != "intro text" {
		t.Errorf("unexpected leading chunk: %+v", chunks[0])
	}
	if chunks[1].HeaderPath != "Title" || chunks[1].StartLine != 1 {
		t.Errorf("unexpected header chunk: %+v", chunks[1])
	}
}

func TestChunkByHeaders_NestedHeaderPath(t *testing.T) {
	body := "# A\ntext a\n## B\ntext b\n### C\ntext c\n## D\ntext d"
	chunks := ChunkByHeaders(body)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	want := []string{"A", "A > B", "A > B > C", "A > D"}
	for i, w := range want {
		if chunks[i].HeaderPath != w {
			t.Errorf("chunk[%d].HeaderPath = %q, want %q", i, chunks[i].HeaderPath, w)
		}
		if chunks[i].Index != i {
			t.Errorf("chunk[%d].Index = %d, want %d", i, chunks[i].Index, i)
		}
	}
}

func TestChunkByHeaders_SiblingResetsStack(t *testing.T) {
	body := "# A\n## B\ntext\n# C\ntext"
	chunks := ChunkByHeaders(body)
	last := chunks[len(chunks)-1]
	if last.HeaderPath != "C" {
		t.Errorf("expected sibling top-level header to reset stack, got %q", last.HeaderPath)
	}
}
