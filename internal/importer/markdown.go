package importer

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/mcmassia/nexusdrive/internal/models"
	"github.com/mcmassia/nexusdrive/internal/parser"
)

// MarkdownParser converts .md files: flat frontmatter, then the body rendered
// to HTML with wiki-links, links and images rewritten against the run.
type MarkdownParser struct{}

func (MarkdownParser) Extensions() []string { return []string{".md"} }

func (MarkdownParser) Parse(run *Run, rec *models.FileRecord, data []byte) (*models.ParsedDocument, error) {
	block, body, _ := parser.SplitFrontmatter(data)
	md := parser.ParseFrontmatter(block)

	rw := newRewriter(run, rec)
	var buf bytes.Buffer
	if err := newMarkdown(rw).Convert([]byte(body), &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", rec.Path, err)
	}
	return &models.ParsedDocument{
		Metadata: md,
		Body:     buf.String(),
		Links:    rw.links,
		Tags:     parser.ExtractTags(body),
	}, nil
}

// newMarkdown builds a converter bound to one file's rewriter.
func newMarkdown(rw *rewriter) goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			gmparser.WithInlineParsers(util.Prioritized(wikiLinkParser{}, 199)),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(&linkRenderer{rw: rw}, 100)),
		),
	)
}

// wikiLinkParser turns [[target]], [[target|label]] and ![[target]] into
// link and image nodes.
type wikiLinkParser struct{}

func (wikiLinkParser) Trigger() []byte { return []byte{'[', '!'} }

func (wikiLinkParser) Parse(_ ast.Node, block text.Reader, _ gmparser.Context) ast.Node {
	line, _ := block.PeekLine()
	start := 0
	if len(line) > 0 && line[0] == '!' {
		start = 1
	}
	rest := line[start:]
	if !bytes.HasPrefix(rest, []byte("[[")) {
		return nil
	}
	end := bytes.Index(rest[2:], []byte("]]"))
	if end < 0 {
		return nil
	}
	inner := bytes.TrimSpace(rest[2 : 2+end])
	if len(inner) == 0 {
		return nil
	}
	target, label, hasLabel := bytes.Cut(inner, []byte("|"))
	target = bytes.TrimSpace(target)
	label = bytes.TrimSpace(label)
	if !hasLabel || len(label) == 0 {
		label = target
	}
	block.Advance(start + 2 + end + 2)

	link := ast.NewLink()
	link.Destination = append([]byte(nil), target...)
	link.AppendChild(link, ast.NewString(append([]byte(nil), label...)))
	if start == 1 {
		return ast.NewImage(link)
	}
	return link
}

// linkRenderer overrides link and image output so every reference points at
// an object, a stored asset, an external URL, or is flagged as broken.
type linkRenderer struct {
	rw    *rewriter
	stack []linkTarget
}

func (r *linkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindImage, r.renderImage)
}

func (r *linkRenderer) renderLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if entering {
		t := r.rw.link(string(n.Destination))
		r.stack = append(r.stack, t)
		_, _ = w.WriteString(openTag(t, string(n.Destination)))
		return ast.WalkContinue, nil
	}
	t := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	_, _ = w.WriteString(closeTag(t))
	return ast.WalkContinue, nil
}

func (r *linkRenderer) renderImage(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Image)
	ref := string(n.Destination)
	alt := plainText(n, source)
	t := r.rw.image(ref)

	if t.kind == targetObject {
		label := alt
		if label == "" {
			label = ref
		}
		_, _ = w.WriteString(openTag(t, ref) + html.EscapeString(label) + closeTag(t))
		return ast.WalkSkipChildren, nil
	}

	_, _ = w.WriteString(`<img src="` + html.EscapeString(t.href) + `" alt="` + html.EscapeString(alt) + `"`)
	if len(n.Title) > 0 {
		_, _ = w.WriteString(` title="` + html.EscapeString(string(n.Title)) + `"`)
	}
	_, _ = w.WriteString(">")
	return ast.WalkSkipChildren, nil
}

func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c == n {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
