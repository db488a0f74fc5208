package importer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mcmassia/nexusdrive/internal/models"
	"github.com/mcmassia/nexusdrive/internal/parser"
)

const untitled = "Untitled"

// HTMLParser converts exported .html pages. The title comes from the first
// heading, a properties table becomes metadata, and links and images are
// rewritten in place before the page body is serialized.
type HTMLParser struct{}

func (HTMLParser) Extensions() []string { return []string{".html"} }

func (HTMLParser) Parse(run *Run, rec *models.FileRecord, data []byte) (*models.ParsedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", rec.Path, err)
	}

	md := models.NewMetadata()
	md.Set("title", models.Text(pageTitle(doc)))
	readProperties(doc, md)

	rw := newRewriter(run, rec)
	rewriteImages(doc, rw)
	rewriteAnchors(doc, rw)

	container := doc.Find(".page-body").First()
	if container.Length() == 0 {
		container = doc.Find("body").First()
	}
	body, err := container.Html()
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", rec.Path, err)
	}
	body = strings.TrimSpace(body)

	return &models.ParsedDocument{
		Metadata: md,
		Body:     body,
		Links:    rw.links,
		Tags:     parser.ExtractTags(container.Text()),
	}, nil
}

func pageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("h1, h2, h3, h4, h5, h6").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return untitled
}

// readProperties copies each row of table.properties into md under its
// lower-cased header, then removes the table from the page.
func readProperties(doc *goquery.Document, md *models.Metadata) {
	table := doc.Find("table.properties").First()
	if table.Length() == 0 {
		return
	}
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		key := strings.ToLower(strings.TrimSpace(row.Find("th").First().Text()))
		if key == "" {
			return
		}
		cell := row.Find("td").First()
		selected := cell.Find(".selected-value")
		if selected.Length() > 1 || row.HasClass("property-row-multi_select") {
			var items []string
			selected.Each(func(_ int, s *goquery.Selection) {
				if v := strings.TrimSpace(s.Text()); v != "" {
					items = append(items, v)
				}
			})
			md.Set(key, models.List(items...))
			return
		}
		md.Set(key, models.Text(strings.TrimSpace(cell.Text())))
	})
	table.Remove()
}

func rewriteImages(doc *goquery.Document, rw *rewriter) {
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if t := rw.image(src); t.kind == targetAsset {
			img.SetAttr("src", t.href)
		}
	})
}

func rewriteAnchors(doc *goquery.Document, rw *rewriter) {
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		t := rw.link(href)
		switch t.kind {
		case targetObject:
			a.SetAttr("href", t.href)
			a.SetAttr("data-object-id", t.id)
			a.AddClass("internal-link")
		case targetAsset:
			a.SetAttr("href", t.href)
			a.AddClass("asset-link")
		case targetBroken:
			inner, _ := a.Html()
			a.ReplaceWithHtml(openTag(t, href) + inner + closeTag(t))
		}
	})
}
