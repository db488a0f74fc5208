package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notionPage = `<html><head><title>Ignored</title></head><body><article>
<header><h1 class="page-title">Project X</h1>
<table class="properties"><tbody>
<tr class="property-row property-row-multi_select"><th>Tags</th><td><span class="selected-value">alpha</span><span class="selected-value">beta</span></td></tr>
<tr class="property-row property-row-multi_select"><th>Owners</th><td><span class="selected-value">Ana</span></td></tr>
<tr class="property-row"><th>Status</th><td> Done </td></tr>
<tr class="property-row property-row-date"><th>Fecha Inicio</th><td><time>@May 1, 2024</time></td></tr>
</tbody></table></header>
<div class="page-body"><p>See <a href="Other%20Page.html">Other</a>, <a href="missing.html">gone</a> and <a href="https://x.org">ext</a>.</p>
<img src="img/pic.png"/><img src="https://cdn.example.com/a.png"/></div>
</article></body></html>`

func TestHTML_NotionExport(t *testing.T) {
	run := scanned(t, paths("Project X.html", "Other Page.html", "img/pic.png")...)
	rec, _ := run.Record("Project X.html")

	doc, err := HTMLParser{}.Parse(run, rec, []byte(notionPage))
	require.NoError(t, err)

	title, _ := doc.Metadata.Get("title")
	assert.Equal(t, "Project X", title.String())

	tags, _ := doc.Metadata.Get("tags")
	assert.True(t, tags.IsList())
	assert.Equal(t, []string{"alpha", "beta"}, tags.Items())

	owners, _ := doc.Metadata.Get("owners")
	assert.True(t, owners.IsList())
	assert.Equal(t, []string{"Ana"}, owners.Items())

	status, _ := doc.Metadata.Get("status")
	assert.Equal(t, "Done", status.String())

	fecha, ok := doc.Metadata.Get("fecha inicio")
	require.True(t, ok)
	assert.Equal(t, "@May 1, 2024", fecha.String())

	assert.NotContains(t, doc.Body, "properties")
	assert.NotContains(t, doc.Body, "page-title")
	assert.Contains(t, doc.Body, `href="object://id-2"`)
	assert.Contains(t, doc.Body, `data-object-id="id-2"`)
	assert.Contains(t, doc.Body, `<span class="broken-link" title="Broken link: missing.html">gone</span>`)
	assert.Contains(t, doc.Body, `href="https://x.org"`)
	assert.Contains(t, doc.Body, `src="asset://pic_1.png"`)
	assert.Contains(t, doc.Body, `src="https://cdn.example.com/a.png"`)
	assert.Equal(t, []string{"id-2"}, doc.Links)
}

func TestHTML_TitleFallbacks(t *testing.T) {
	run := scanned(t, paths("a.html")...)
	rec, _ := run.Record("a.html")

	doc, err := HTMLParser{}.Parse(run, rec, []byte(`<html><head><title>From Head</title></head><body><p>x</p></body></html>`))
	require.NoError(t, err)
	title, _ := doc.Metadata.Get("title")
	assert.Equal(t, "From Head", title.String())
	assert.Equal(t, "<p>x</p>", doc.Body)

	doc, err = HTMLParser{}.Parse(run, rec, []byte(`<p>bare</p>`))
	require.NoError(t, err)
	title, _ = doc.Metadata.Get("title")
	assert.Equal(t, "Untitled", title.String())
}

func TestHTML_ColonTitleLinkResolves(t *testing.T) {
	run := scanned(t, paths("A.html", "Meeting: Q1.html")...)
	rec, _ := run.Record("A.html")
	page := `<html><body><div class="page-body"><a href="Meeting:%20Q1.html">m</a> <a href="mailto:me@example.com">mail</a></div></body></html>`

	doc, err := HTMLParser{}.Parse(run, rec, []byte(page))
	require.NoError(t, err)

	assert.Contains(t, doc.Body, `data-object-id="id-2"`)
	assert.Contains(t, doc.Body, `href="mailto:me@example.com"`)
	assert.Equal(t, []string{"id-2"}, doc.Links)
}
