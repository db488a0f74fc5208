// Package objectservice coordinates the importer, the object index and the
// asset store for the API, MCP and inbox front ends.
package objectservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcmassia/nexusdrive/internal/apperr"
	"github.com/mcmassia/nexusdrive/internal/checksum"
	"github.com/mcmassia/nexusdrive/internal/importer"
	"github.com/mcmassia/nexusdrive/internal/index"
	"github.com/mcmassia/nexusdrive/internal/models"
	"github.com/mcmassia/nexusdrive/internal/storage"
)

var (
	_ importer.ObjectStore   = (*index.DB)(nil)
	_ importer.SchemaStore   = (*index.DB)(nil)
	_ importer.ManifestStore = (*index.DB)(nil)
	_ importer.AssetStore    = storage.AssetStore(nil)
)

// Notifier receives import lifecycle events.
type Notifier interface {
	ImportProgress(p importer.Progress)
	ImportCompleted(res *importer.Result)
	ImportFailed(err error)
	ImportReverted(res *importer.RevertResult)
}

// ObjectDetail is the full representation of an imported object.
type ObjectDetail struct {
	models.KnowledgeObject
	Checksum  string   `json:"checksum"`
	Backlinks []string `json:"backlinks"`
}

// ObjectListItem is a lightweight item in a list response.
type ObjectListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage and index operations.
type Service struct {
	db         index.ObjectIndex
	assets     storage.AssetStore
	engine     *importer.Engine
	notifier   Notifier
	maxArchive int64
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier forwards import events to n.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithMaxArchiveBytes rejects larger archives with apperr.ErrArchiveTooLarge.
func WithMaxArchiveBytes(n int64) Option { return func(s *Service) { s.maxArchive = n } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService creates a new object service.
func NewService(db index.ObjectIndex, assets storage.AssetStore, engine *importer.Engine, opts ...Option) *Service {
	s := &Service{db: db, assets: assets, engine: engine, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import runs the engine against the archive. Titles already in the index
// are skipped unless overwrite is set.
func (s *Service) Import(ctx context.Context, r io.ReaderAt, size int64, overwrite bool) (*importer.Result, error) {
	if s.maxArchive > 0 && size > s.maxArchive {
		s.logger.Warn("objectservice: archive rejected", slog.Int64("size", size), slog.Int64("max", s.maxArchive))
		return nil, fmt.Errorf("%w: %d bytes (max %d)", apperr.ErrArchiveTooLarge, size, s.maxArchive)
	}
	titles, err := s.db.AllTitles(ctx)
	if err != nil {
		return nil, err
	}
	opts := importer.Options{ExistingTitles: titles, Overwrite: overwrite}
	if s.notifier != nil {
		opts.OnProgress = s.notifier.ImportProgress
	}

	res, err := s.engine.Import(ctx, r, size, opts)
	if s.notifier != nil {
		if err != nil {
			s.notifier.ImportFailed(err)
		} else {
			s.notifier.ImportCompleted(res)
		}
	}
	return res, err
}

// Revert undoes the most recent import.
func (s *Service) Revert(ctx context.Context) (*importer.RevertResult, error) {
	var onProgress importer.ProgressFunc
	if s.notifier != nil {
		onProgress = s.notifier.ImportProgress
	}
	res, err := s.engine.Revert(ctx, onProgress)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ImportReverted(res)
	}
	return res, nil
}

// Manifest returns the revert record of the most recent import.
func (s *Service) Manifest(ctx context.Context) (*models.ImportManifest, error) {
	m, err := s.db.LoadManifest(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrNoManifest
	}
	return m, err
}

// GetObject loads an object with its checksum and backlinks.
func (s *Service) GetObject(ctx context.Context, id string) (*ObjectDetail, error) {
	obj, err := s.db.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(ctx, id)
	if err != nil {
		return nil, err
	}
	sum, _ := s.db.GetChecksum(ctx, id)
	if sum == "" {
		sum = checksum.Sum([]byte(obj.Content))
	}
	obj.Links = nonNilSlice(obj.Links)
	obj.Tags = nonNilSlice(obj.Tags)
	return &ObjectDetail{
		KnowledgeObject: *obj,
		Checksum:        sum,
		Backlinks:       nonNilSlice(bl),
	}, nil
}

// DeleteObject removes an object from the index.
func (s *Service) DeleteObject(ctx context.Context, id string) error {
	return s.db.DeleteObject(ctx, id)
}

// ListObjects returns one page of objects and the total matching count.
func (s *Service) ListObjects(ctx context.Context, f index.ListFilter) ([]ObjectListItem, int, error) {
	rows, total, err := s.db.ListObjects(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ObjectListItem, len(rows))
	for i, r := range rows {
		items[i] = ObjectListItem{
			ID:        r.ID,
			Title:     r.Title,
			Type:      r.Type,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(ctx, query, limit)
}

// ListSchemas returns every stored type schema.
func (s *Service) ListSchemas(ctx context.Context) ([]*models.TypeSchema, error) {
	schemas, err := s.db.ListSchemas(ctx)
	return nonNilSlice(schemas), err
}

// ReadAsset returns a stored asset blob.
func (s *Service) ReadAsset(ctx context.Context, name string) ([]byte, error) {
	return s.assets.Get(ctx, name)
}

// ListAssets returns every stored asset.
func (s *Service) ListAssets(ctx context.Context) ([]storage.AssetInfo, error) {
	return s.assets.List(ctx)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
