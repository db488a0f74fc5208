// Package models defines the domain types for NexusDrive.
package models

import "time"

// DefaultType is assigned to content files that declare no type.
const DefaultType = "page"

// FileRecord is the in-run identity of one accepted content file.
type FileRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	InferredType string `json:"type"`
	Path         string `json:"path"`
}

// AssetRecord maps an archive path to its collision-free stored name.
type AssetRecord struct {
	OriginalPath string `json:"original_path"`
	StoredName   string `json:"stored_name"`
}

// ParsedDocument is the output of parsing one content file.
type ParsedDocument struct {
	Metadata *Metadata
	Body     string
	// Links holds the ids of internal targets that resolved during rewriting.
	Links []string
	// Tags holds inline #tags found in the body.
	Tags []string
}

// Property is a realized property value on a KnowledgeObject.
type Property struct {
	Key   string       `json:"key"`
	Label string       `json:"label"`
	Type  PropertyType `json:"type"`
	Value Value        `json:"value"`
}

// KnowledgeObject is the persisted unit produced by an import.
type KnowledgeObject struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Type         string     `json:"type"`
	Content      string     `json:"content"`
	Metadata     []Property `json:"metadata"`
	Tags         []string   `json:"tags"`
	Links        []string   `json:"links,omitempty"`
	LastModified time.Time  `json:"last_modified"`
}

// ImportManifest is the durable record of what one import run created.
type ImportManifest struct {
	Timestamp int64    `json:"timestamp"`
	Types     []string `json:"types"`
	IDs       []string `json:"ids"`
	Assets    []string `json:"assets,omitempty"`
}
