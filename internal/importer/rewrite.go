package importer

import (
	"fmt"
	"html"

	"github.com/mcmassia/nexusdrive/internal/models"
)

const (
	// AssetScheme prefixes references to stored assets in rewritten content.
	AssetScheme = "asset://"
	// ObjectScheme prefixes references to other knowledge objects.
	ObjectScheme = "object://"
)

type targetKind int

const (
	targetBroken targetKind = iota
	targetExternal
	targetObject
	targetAsset
)

type linkTarget struct {
	kind targetKind
	href string
	id   string
}

// rewriter resolves the references of one content file and remembers which
// objects it links to.
type rewriter struct {
	run    *Run
	source *models.FileRecord
	links  []string
	seen   map[string]struct{}
}

func newRewriter(run *Run, source *models.FileRecord) *rewriter {
	return &rewriter{run: run, source: source, seen: make(map[string]struct{})}
}

func (w *rewriter) link(ref string) linkTarget {
	if ref == "" {
		return linkTarget{kind: targetBroken}
	}
	if isExternal(ref) {
		return linkTarget{kind: targetExternal, href: ref}
	}
	if rec, ok := w.run.ResolveLink(w.source.Path, ref); ok {
		w.addLink(rec.ID)
		return linkTarget{kind: targetObject, href: ObjectScheme + rec.ID, id: rec.ID}
	}
	if name, ok := w.run.ResolveAsset(w.source.Path, ref); ok {
		return linkTarget{kind: targetAsset, href: AssetScheme + name}
	}
	if hasScheme(ref) {
		return linkTarget{kind: targetExternal, href: ref}
	}
	return linkTarget{kind: targetBroken}
}

// image resolves an embedded reference. Embeds that name a content file
// resolve to the object instead.
func (w *rewriter) image(ref string) linkTarget {
	if isExternal(ref) {
		return linkTarget{kind: targetExternal, href: ref}
	}
	if name, ok := w.run.ResolveAsset(w.source.Path, ref); ok {
		return linkTarget{kind: targetAsset, href: AssetScheme + name}
	}
	if rec, ok := w.run.ResolveLink(w.source.Path, ref); ok {
		w.addLink(rec.ID)
		return linkTarget{kind: targetObject, href: ObjectScheme + rec.ID, id: rec.ID}
	}
	if hasScheme(ref) {
		return linkTarget{kind: targetExternal, href: ref}
	}
	return linkTarget{kind: targetBroken, href: ref}
}

func (w *rewriter) addLink(id string) {
	if id == w.source.ID {
		return
	}
	if _, ok := w.seen[id]; ok {
		return
	}
	w.seen[id] = struct{}{}
	w.links = append(w.links, id)
}

func openTag(t linkTarget, ref string) string {
	switch t.kind {
	case targetObject:
		return fmt.Sprintf(`<a href="%s" class="internal-link" data-object-id="%s">`,
			html.EscapeString(t.href), html.EscapeString(t.id))
	case targetAsset:
		return fmt.Sprintf(`<a href="%s" class="asset-link">`, html.EscapeString(t.href))
	case targetExternal:
		return fmt.Sprintf(`<a href="%s" class="external-link" target="_blank" rel="noopener noreferrer">`,
			html.EscapeString(t.href))
	default:
		return fmt.Sprintf(`<span class="broken-link" title="%s">`,
			html.EscapeString("Broken link: "+ref))
	}
}

func closeTag(t linkTarget) string {
	if t.kind == targetBroken {
		return "</span>"
	}
	return "</a>"
}
