package importer

import (
	"path"
	"strings"
	"sync"

	"github.com/mcmassia/nexusdrive/internal/models"
)

// ContentParser converts one content file into a parsed document. Parsers
// may read the run's record and asset maps but never modify them.
type ContentParser interface {
	Parse(run *Run, rec *models.FileRecord, data []byte) (*models.ParsedDocument, error)
	Extensions() []string
}

// Registry routes content files to parsers by extension.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]ContentParser
}

// NewRegistry returns a registry with the Markdown and HTML parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]ContentParser)}
	r.Register(MarkdownParser{})
	r.Register(HTMLParser{})
	return r
}

// Register associates p with each of its extensions, lower-cased.
func (r *Registry) Register(p ContentParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.Extensions() {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.parsers[ext] = p
	}
}

// For returns the parser for filename, or nil.
func (r *Registry) For(filename string) ContentParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsers[strings.ToLower(path.Ext(filename))]
}
