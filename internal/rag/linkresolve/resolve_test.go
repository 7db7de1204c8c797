package linkresolve

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		name       string
		sourcePath string
		link       string
		wantPath   string
		wantOK     bool
	}{
		{"empty link", "docs/guide.md", "", "", false},
		{"strips fragment", "docs/guide.md", "other.md#section-1", "docs/other.md", true},
		{"root level file", "guide.md", "other.md", "other.md", true},
		{"parent traversal", "docs/sub/guide.md", "../other.md", "docs/other.md", true},
		{"windows backslashes in source", "docs\\sub\\guide.md", "other.md", "docs/sub/other.md", true},
		{"uppercase normalized", "docs/guide.md", "Other.MD", "docs/other.md", true},
		{"excess parent pops stop at root", "guide.md", "../../other.md", "other.md", true},
		{"dot segments skipped", "docs/guide.md", "./sub/./other.md", "docs/sub/other.md", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Resolve(c.sourcePath, c.link)
			if ok != c.wantOK {
				t.Fatalf("Resolve(%q,%q) ok = %v, want %v", c.sourcePath, c.link, ok, c.wantOK)
			}
			if ok && got != c.wantPath {
				t.Errorf("Resolve(%q,%q) = %q, want %q", c.sourcePath, c.link, got, c.wantPath)
			}
		})
	}
}
