package api

import (
	"time"

	"github.com/mcmassia/nexusdrive/internal/importer"
	"github.com/mcmassia/nexusdrive/internal/models"
	"github.com/mcmassia/nexusdrive/internal/objectservice"
	"github.com/mcmassia/nexusdrive/internal/storage"
)

// ImportResponse is the summary of a finished import (aliased from the engine).
type ImportResponse = importer.Result

// RevertResponse counts what a revert removed (aliased from the engine).
type RevertResponse = importer.RevertResult

// ManifestResponse is the revert record of the last import.
type ManifestResponse = models.ImportManifest

// ObjectDetail is the full object response type (aliased from the domain layer).
type ObjectDetail = objectservice.ObjectDetail

// ObjectListItem is a lightweight item in a list response (aliased from the domain layer).
type ObjectListItem = objectservice.ObjectListItem

// ObjectListResponse wraps paginated object listings.
type ObjectListResponse struct {
	Objects []ObjectListItem `json:"objects" validate:"required"`
	Total   int              `json:"total" example:"42" validate:"required"`
}

// SchemaListResponse wraps type schemas.
type SchemaListResponse struct {
	Schemas []models.TypeSchema `json:"schemas" validate:"required"`
}

// AssetListResponse wraps stored assets.
type AssetListResponse struct {
	Assets []storage.AssetInfo `json:"assets" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	ID      string `json:"id" example:"4f1c2b8e-7a3d-4c55-9e0b-1d2f3a4b5c6d" validate:"required"`
	Title   string `json:"title" example:"Hello" validate:"required"`
	Type    string `json:"type" example:"page" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// ObjectListItemDTO mirrors ObjectListItem for swag.
type ObjectListItemDTO struct {
	ID        string    `json:"id" example:"4f1c2b8e-7a3d-4c55-9e0b-1d2f3a4b5c6d"`
	Title     string    `json:"title" example:"Hello"`
	Type      string    `json:"type" example:"book"`
	Checksum  string    `json:"checksum" example:"abc123..."`
	Tags      []string  `json:"tags" example:"tag1,tag2"`
	UpdatedAt time.Time `json:"updated_at"`
}
