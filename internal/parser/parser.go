// Package parser splits Markdown frontmatter from the body and extracts inline tags.
package parser

import (
	"regexp"
	"strings"

	"github.com/mcmassia/nexusdrive/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([\p{L}][\p{L}0-9_/-]*)`)

const delim = "---"

// SplitFrontmatter separates the block between a leading --- line and the
// next --- line from the rest of the document. ok is false when the document
// has no complete frontmatter block, in which case body is the whole input.
func SplitFrontmatter(data []byte) (block string, body string, ok bool) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	trimmed := strings.TrimLeft(text, "\n")

	first, rest, found := strings.Cut(trimmed, "\n")
	if !found || strings.TrimSpace(first) != delim {
		return "", text, false
	}

	lines := strings.Split(rest, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == delim {
			block = strings.Join(lines[:i], "\n")
			body = strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
			return block, body, true
		}
	}
	// No closing delimiter: everything is body.
	return "", text, false
}

// ParseFrontmatter parses a flat key: value block. Each line splits on its
// first colon; a value wrapped in [...] becomes a list; "null" and empty
// values become empty text. A key with an empty value followed by "- item"
// lines collects those items as a list.
func ParseFrontmatter(block string) *models.Metadata {
	md := models.NewMetadata()
	if strings.TrimSpace(block) == "" {
		return md
	}

	var pendingKey string
	var pending []string
	flush := func() {
		if pendingKey != "" && len(pending) > 0 {
			md.Set(pendingKey, models.List(pending...))
		}
		pendingKey, pending = "", nil
	}

	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if pendingKey != "" && (strings.HasPrefix(trimmed, "- ") || trimmed == "-") {
			item := unquote(strings.TrimSpace(strings.TrimPrefix(trimmed, "-")))
			if item != "" {
				pending = append(pending, item)
			}
			continue
		}
		flush()

		key, raw, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		md.Set(key, ParseValue(raw))

		if strings.TrimSpace(raw) == "" {
			pendingKey = key
		}
	}
	flush()
	return md
}

// ParseValue converts one raw frontmatter value into a metadata value.
// Scalars are only trimmed; quotes are stripped from list elements.
func ParseValue(raw string) models.Value {
	v := strings.TrimSpace(raw)
	if v == "" || v == "null" {
		return models.Text("")
	}
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		return models.List(splitList(v[1 : len(v)-1])...)
	}
	return models.Text(v)
}

func splitList(inner string) []string {
	var out []string
	for _, part := range strings.Split(inner, ",") {
		item := unquote(strings.TrimSpace(part))
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// unquote strips one pair of matching surrounding quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// ExtractTags returns deduplicated inline #tags from body in order of appearance.
// Fenced code blocks are ignored.
func ExtractTags(body string) []string {
	var out []string
	seen := make(map[string]struct{})
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
			t := m[1]
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// MergeTags appends extra to base, skipping duplicates and empty strings.
func MergeTags(base []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
