// Package parser implements the markdown parsing primitives the ingestion
// pipeline builds documents, sections, and chunks from: frontmatter
// stripping, header extraction, link extraction, code block extraction, and
// header-based chunking.
package parser

import (
	"regexp"
	"strings"
)

var (
	headerRe    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	linkRe      = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	fenceOpenRe = regexp.MustCompile("^```([^`]*)$")
)

// Header is a parsed markdown heading.
type Header struct {
	Level int
	Text  string
	Line  int // 0-based
}

// Link is a parsed `[Text](url)` markdown link.
type Link struct {
	Text string
	URL  string
}

// CodeBlock is a fenced code block.
type CodeBlock struct {
	Language string
	Code     string
}

// Chunk is one header-delimited slice of a document.
type Chunk struct {
	Index      int
	Content    string
	StartLine  int
	HeaderPath string
}

// ParseFrontmatter strips a leading "---"-delimited YAML-like block, if
// present, returning the remaining body and the raw frontmatter text.
func ParseFrontmatter(content string) (body string, frontmatter string, hasFrontmatter bool) {
	lines := splitLines(content)
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != "---" {
		return content, "", false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == "---" {
			fm := strings.Join(lines[1:i], "\n")
			rest := strings.Join(lines[i+1:], "\n")
			return rest, fm, true
		}
	}
	// Unterminated frontmatter: treat the whole document as body.
	return content, "", false
}

// ExtractHeaders returns every ATX-style heading in document order.
func ExtractHeaders(body string) []Header {
	lines := splitLines(body)
	headers := make([]Header, 0)
	for i, line := range lines {
		m := headerRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		headers = append(headers, Header{Level: len(m[1]), Text: strings.TrimSpace(m[2]), Line: i})
	}
	return headers
}

// ExtractLinks returns every markdown-style [text](url) link; it does not
// follow reference-style links.
func ExtractLinks(body string) []Link {
	matches := linkRe.FindAllStringSubmatch(body, -1)
	links := make([]Link, 0, len(matches))
	for _, m := range matches {
		links = append(links, Link{Text: m[1], URL: m[2]})
	}
	return links
}

// ExtractCodeBlocks returns every fenced code block in document order.
// language is the fence's info-string and may be empty.
func ExtractCodeBlocks(body string) []CodeBlock {
	lines := splitLines(body)
	blocks := make([]CodeBlock, 0)
	var open bool
	var lang string
	var buf []string
	for _, line := range lines {
		if !open {
			if m := fenceOpenRe.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
				open = true
				lang = strings.TrimSpace(m[1])
				buf = buf[:0]
			}
			continue
		}
		if strings.TrimRight(line, "\r") == "```" {
			blocks = append(blocks, CodeBlock{Language: lang, Code: strings.Join(buf, "\n")})
			open = false
			continue
		}
		buf = append(buf, line)
	}
	return blocks
}

// ChunkByHeaders splits body at every header. header_path is the " > "
// joined titles of the enclosing header stack at the point the chunk began.
// A document with no headers yields a single chunk with header_path "" and
// start_line 0. Content before the first header becomes its own chunk with
// an empty header_path.
func ChunkByHeaders(body string) []Chunk {
	lines := splitLines(body)
	headers := ExtractHeaders(body)
	if len(headers) == 0 {
		return []Chunk{{Index: 0, Content: body, StartLine: 0, HeaderPath: ""}}
	}

	boundaries := make([]int, len(headers)+1)
	for i, h := range headers {
		boundaries[i] = h.Line
	}
	boundaries[len(headers)] = len(lines)

	chunks := make([]Chunk, 0, len(headers)+1)
	idx := 0

	if headers[0].Line > 0 {
		content := strings.Join(lines[0:headers[0].Line], "\n")
		chunks = append(chunks, Chunk{Index: idx, Content: content, StartLine: 0, HeaderPath: ""})
		idx++
	}

	stack := make([]headerStackEntry, 0, 6)
	for i, h := range headers {
		for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, headerStackEntry{level: h.Level, text: h.Text})

		start := h.Line
		end := boundaries[i+1]
		content := strings.Join(lines[start:end], "\n")
		chunks = append(chunks, Chunk{
			Index:      idx,
			Content:    content,
			StartLine:  start,
			HeaderPath: joinHeaderPath(stack),
		})
		idx++
	}
	return chunks
}

type headerStackEntry struct {
	level int
	text  string
}

func joinHeaderPath(stack []headerStackEntry) string {
	parts := make([]string, len(stack))
	for i, e := range stack {
		parts[i] = e.text
	}
	return strings.Join(parts, " > ")
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// LineCount reports how many lines a body spans (0 for an empty body).
func LineCount(s string) int {
	return len(splitLines(s))
}
