package importer

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/mcmassia/nexusdrive/internal/models"
)

// ResolveLink maps a reference found in the file at sourcePath to a file
// record. Strategies run from most to least precise:
//
//  1. the decoded reference as an exact archive path
//  2. the reference joined to the source file's directory
//  3. step 2 with a .md, then .html, extension appended
//  4. the reference's last segment compared to each file's last segment
//     after unicode normalization, lower-casing and extension stripping
func (r *Run) ResolveLink(sourcePath, ref string) (*models.FileRecord, bool) {
	decoded := decodeRef(ref)
	if decoded == "" {
		return nil, false
	}
	for _, candidate := range r.candidates(sourcePath, decoded) {
		if rec, ok := r.records[candidate]; ok {
			return rec, true
		}
	}
	if rel := joinRelative(path.Dir(sourcePath), decoded); rel != "" {
		for _, ext := range []string{".md", ".html"} {
			if rec, ok := r.records[rel+ext]; ok {
				return rec, true
			}
		}
	}

	want := fallbackKey(decoded)
	if want == "" {
		return nil, false
	}
	for _, p := range r.order {
		if fallbackKey(p) == want {
			return r.records[p], true
		}
	}
	return nil, false
}

// ResolveAsset maps a reference to the stored name of an asset. After the
// exact and relative lookups it falls back to matching the file name alone.
func (r *Run) ResolveAsset(sourcePath, ref string) (string, bool) {
	decoded := decodeRef(ref)
	if decoded == "" {
		return "", false
	}
	for _, candidate := range r.candidates(sourcePath, decoded) {
		if name, ok := r.assets[candidate]; ok {
			return name, true
		}
	}
	want := foldName(path.Base(decoded))
	for _, p := range r.assetOrder {
		if foldName(path.Base(p)) == want {
			return r.assets[p], true
		}
	}
	return "", false
}

// candidates returns the exact and the source-relative form of ref.
func (r *Run) candidates(sourcePath, ref string) []string {
	exact := strings.TrimPrefix(ref, "/")
	rel := joinRelative(path.Dir(sourcePath), ref)
	if rel == exact || rel == "" {
		return []string{exact}
	}
	return []string{exact, rel}
}

// joinRelative walks ref against dir: ".." pops a segment, "." and empty
// segments are ignored, anything else is pushed.
func joinRelative(dir, ref string) string {
	var stack []string
	if dir != "." && dir != "" {
		stack = strings.Split(dir, "/")
	}
	for _, seg := range strings.Split(ref, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return strings.Join(stack, "/")
}

// decodeRef strips any fragment or query and percent-decodes the rest.
// Undecodable input is used verbatim.
func decodeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "#?"); i >= 0 {
		ref = ref[:i]
	}
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = decoded
	}
	return strings.ReplaceAll(ref, "\\", "/")
}

func fallbackKey(p string) string {
	base := path.Base(p)
	switch strings.ToLower(path.Ext(base)) {
	case ".md", ".html":
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	return foldName(base)
}

func foldName(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// isExternal reports whether ref is an http(s) URL or a pure fragment.
// References with any other scheme still go through the resolver, since
// note titles may contain a colon.
func isExternal(ref string) bool {
	if strings.HasPrefix(ref, "#") {
		return true
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// hasScheme reports whether ref starts with a URL scheme such as mailto:.
func hasScheme(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	// Single letters are Windows drive letters, not schemes.
	return len(u.Scheme) > 1
}
