package importer

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9]`)

// TokenGenerator produces the unique suffix appended to stored asset names.
type TokenGenerator interface {
	Token() string
}

// RandomTokens draws tokens from random UUIDs.
type RandomTokens struct{}

func (RandomTokens) Token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// CounterTokens yields 1, 2, 3... and makes asset naming reproducible.
type CounterTokens struct {
	n atomic.Int64
}

func (c *CounterTokens) Token() string {
	return strconv.FormatInt(c.n.Add(1), 10)
}

// ResolveAssets assigns every pending asset a stored name of the form
// <sanitized base>_<token><ext>. Names are unique within the run even when
// two archive paths share a base name.
func ResolveAssets(run *Run, pending []Entry) {
	for _, e := range pending {
		if _, done := run.assets[e.Path]; done {
			continue
		}
		name := run.storedName(e.Path)
		run.assets[e.Path] = name
		run.assetOrder = append(run.assetOrder, e.Path)
	}
}

func (r *Run) storedName(p string) string {
	for {
		name := StoredName(path.Base(p), r.tokens.Token())
		if _, taken := r.storedNames[name]; !taken {
			r.storedNames[name] = struct{}{}
			return name
		}
	}
}

// StoredName builds <stem>_<token><ext> from filename with every
// non-alphanumeric character of the stem replaced by "_".
func StoredName(filename, token string) string {
	ext := path.Ext(filename)
	stem := unsafeNameRe.ReplaceAllString(strings.TrimSuffix(filename, ext), "_")
	if stem == "" {
		stem = "asset"
	}
	ext = unsafeNameRe.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	if ext != "" {
		ext = "." + ext
	}
	return stem + "_" + token + ext
}
