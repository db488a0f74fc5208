package parser

import (
	"reflect"
	"testing"

	"github.com/mcmassia/nexusdrive/internal/models"
)

func TestSplitFrontmatter_Basic(t *testing.T) {
	block, body, ok := SplitFrontmatter([]byte("---\ntitle: Hello\n---\n# Hello\nBody text.\n"))
	if !ok {
		t.Fatal("expected frontmatter")
	}
	if block != "title: Hello" {
		t.Errorf("block = %q", block)
	}
	if body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", body)
	}
}

func TestSplitFrontmatter_NoFrontmatter(t *testing.T) {
	input := "# Just a heading\nSome text.\n"
	_, body, ok := SplitFrontmatter([]byte(input))
	if ok {
		t.Fatal("expected no frontmatter")
	}
	if body != input {
		t.Errorf("body = %q", body)
	}
}

func TestSplitFrontmatter_Unclosed(t *testing.T) {
	input := "---\ntitle: x\nno closing\n"
	_, body, ok := SplitFrontmatter([]byte(input))
	if ok {
		t.Fatal("unclosed block should not count as frontmatter")
	}
	if body != input {
		t.Errorf("body = %q", body)
	}
}

func TestSplitFrontmatter_CRLF(t *testing.T) {
	block, body, ok := SplitFrontmatter([]byte("---\r\ntype: book\r\n---\r\ntext"))
	if !ok || block != "type: book" || body != "text" {
		t.Errorf("got block=%q body=%q ok=%v", block, body, ok)
	}
}

func TestParseFrontmatter_ListValue(t *testing.T) {
	cases := []string{
		"tags: [work, draft]",
		"tags: [ work ,  draft ]",
		`tags: ["work", 'draft']`,
		"tags: [work, , draft,]",
	}
	for _, in := range cases {
		md := ParseFrontmatter(in)
		v, ok := md.Get("tags")
		if !ok {
			t.Fatalf("%q: tags missing", in)
		}
		if !v.IsList() {
			t.Fatalf("%q: expected list value", in)
		}
		if got := v.Items(); !reflect.DeepEqual(got, []string{"work", "draft"}) {
			t.Errorf("%q: items = %v, want [work draft]", in, got)
		}
	}
}

func TestParseFrontmatter_FirstColonSplit(t *testing.T) {
	md := ParseFrontmatter("url: https://example.com/a\ntitle:  Note: part two  ")
	if v, _ := md.Get("url"); v.String() != "https://example.com/a" {
		t.Errorf("url = %q", v.String())
	}
	if v, _ := md.Get("title"); v.String() != "Note: part two" {
		t.Errorf("title = %q", v.String())
	}
}

func TestParseFrontmatter_NullAndEmpty(t *testing.T) {
	md := ParseFrontmatter("a: null\nb:\nc: value")
	for _, k := range []string{"a", "b"} {
		v, ok := md.Get(k)
		if !ok {
			t.Fatalf("key %q missing", k)
		}
		if v.IsList() || v.String() != "" {
			t.Errorf("%s = %#v, want empty text", k, v)
		}
	}
	if got := md.Keys(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("keys = %v", got)
	}
}

func TestParseFrontmatter_BlockList(t *testing.T) {
	md := ParseFrontmatter("aliases:\n  - one\n  - \"two\"\nstatus: open")
	v, _ := md.Get("aliases")
	if !v.IsList() || !reflect.DeepEqual(v.Items(), []string{"one", "two"}) {
		t.Errorf("aliases = %#v", v.Items())
	}
	if v, _ := md.Get("status"); v.String() != "open" {
		t.Errorf("status = %q", v.String())
	}
}

func TestParseValue_Scalar(t *testing.T) {
	if v := ParseValue(` "quoted" `); v.Kind() != models.KindText || v.String() != `"quoted"` {
		t.Errorf("value = %#v", v)
	}
	if v := ParseValue(`["a", 'b', c]`); v.Kind() != models.KindList || !reflect.DeepEqual(v.Items(), []string{"a", "b", "c"}) {
		t.Errorf("list = %#v", v)
	}
}

func TestExtractTags_Inline(t *testing.T) {
	body := "Some text #beta and #alpha again #beta.\n```\n#notatag\n```\n#gamma"
	tags := ExtractTags(body)
	want := []string{"beta", "alpha", "gamma"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("tags = %v, want %v", tags, want)
	}
}

func TestExtractTags_IgnoresHeadings(t *testing.T) {
	if tags := ExtractTags("# Heading\n## Second"); len(tags) != 0 {
		t.Errorf("tags = %v, want none", tags)
	}
}

func TestMergeTags(t *testing.T) {
	got := MergeTags([]string{"a", "b"}, "b", " ", "c")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("merged = %v", got)
	}
}
