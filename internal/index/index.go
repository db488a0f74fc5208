package index

import (
	"context"

	"github.com/mcmassia/nexusdrive/internal/models"
)

// ObjectIndex defines the persistence operations for imported objects,
// type schemas and the import manifest. Consumers should depend on this
// interface rather than the concrete *DB type to facilitate testing with mocks.
type ObjectIndex interface {
	SaveObject(ctx context.Context, obj *models.KnowledgeObject) error
	DeleteObject(ctx context.Context, id string) error
	GetObject(ctx context.Context, id string) (*models.KnowledgeObject, error)
	GetChecksum(ctx context.Context, id string) (string, error)
	ListObjects(ctx context.Context, f ListFilter) ([]ObjectRow, int, error)
	AllTitles(ctx context.Context) (map[string]struct{}, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Backlinks(ctx context.Context, id string) ([]string, error)

	GetSchema(ctx context.Context, typ string) (*models.TypeSchema, error)
	SaveSchema(ctx context.Context, s *models.TypeSchema) error
	DeleteSchema(ctx context.Context, typ string) error
	ListSchemas(ctx context.Context) ([]*models.TypeSchema, error)

	LoadManifest(ctx context.Context) (*models.ImportManifest, error)
	SaveManifest(ctx context.Context, m *models.ImportManifest) error
	DeleteManifest(ctx context.Context) error

	Close() error
}

// Verify *DB satisfies ObjectIndex at compile time.
var _ ObjectIndex = (*DB)(nil)
