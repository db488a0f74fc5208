package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mcmassia/nexusdrive/internal/apperr"
	"github.com/mcmassia/nexusdrive/internal/models"
	"github.com/mcmassia/nexusdrive/internal/parser"
)

// Phase names a stage of an import or revert.
type Phase string

const (
	PhaseScanning      Phase = "scanning"
	PhaseSchemaMerge   Phase = "schema_merge"
	PhaseAssetTransfer Phase = "asset_transfer"
	PhaseObjectImport  Phase = "object_import"
	PhaseDone          Phase = "done"
	PhaseReverting     Phase = "reverting"
)

const defaultProgressEvery = 10

// Progress is one status update emitted while an import runs.
type Progress struct {
	Phase   Phase  `json:"phase"`
	Status  string `json:"status"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// ProgressFunc receives progress updates. It is called synchronously.
type ProgressFunc func(Progress)

// FatalError aborts an import. Phase records where it happened.
type FatalError struct {
	Phase Phase
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("import failed during %s: %v", e.Phase, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ObjectStore persists knowledge objects.
type ObjectStore interface {
	SaveObject(ctx context.Context, obj *models.KnowledgeObject) error
	DeleteObject(ctx context.Context, id string) error
}

// AssetStore persists asset blobs under their stored names.
type AssetStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// SchemaStore persists type schemas. GetSchema returns apperr.ErrNotFound
// for unknown types.
type SchemaStore interface {
	GetSchema(ctx context.Context, typ string) (*models.TypeSchema, error)
	SaveSchema(ctx context.Context, s *models.TypeSchema) error
	DeleteSchema(ctx context.Context, typ string) error
}

// ManifestStore keeps the single revert record. LoadManifest returns
// apperr.ErrNotFound when none exists.
type ManifestStore interface {
	LoadManifest(ctx context.Context) (*models.ImportManifest, error)
	SaveManifest(ctx context.Context, m *models.ImportManifest) error
	DeleteManifest(ctx context.Context) error
}

// Options are the per-import inputs.
type Options struct {
	ExistingTitles map[string]struct{}
	Overwrite      bool
	OnProgress     ProgressFunc
}

// Result summarizes a finished import.
type Result struct {
	Processed int                    `json:"total_processed"`
	Skipped   int                    `json:"skipped"`
	Failed    int                    `json:"failed"`
	Assets    int                    `json:"assets"`
	Types     []string               `json:"created_types"`
	Schemas   []*models.TypeSchema   `json:"schemas"`
	Manifest  *models.ImportManifest `json:"manifest,omitempty"`

	// Objects and Blobs collect output when no store is configured.
	Objects []*models.KnowledgeObject `json:"-"`
	Blobs   map[string][]byte         `json:"-"`
}

// RevertResult counts what a revert removed.
type RevertResult struct {
	Objects int `json:"objects"`
	Assets  int `json:"assets"`
	Types   int `json:"types"`
}

// Engine runs imports and reverts. At most one of either runs at a time.
type Engine struct {
	objects   ObjectStore
	assets    AssetStore
	schemas   SchemaStore
	manifests ManifestStore

	registry      *Registry
	sanitizer     *Sanitizer
	logger        *slog.Logger
	progressEvery int
	newID         func() string
	tokens        func() TokenGenerator
	color         func() string
	now           func() time.Time

	busy atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithObjectStore sets where objects are saved.
func WithObjectStore(s ObjectStore) EngineOption { return func(e *Engine) { e.objects = s } }

// WithAssetStore sets where asset blobs are written.
func WithAssetStore(s AssetStore) EngineOption { return func(e *Engine) { e.assets = s } }

// WithSchemaStore sets the schema store.
func WithSchemaStore(s SchemaStore) EngineOption { return func(e *Engine) { e.schemas = s } }

// WithManifestStore enables revert records.
func WithManifestStore(s ManifestStore) EngineOption { return func(e *Engine) { e.manifests = s } }

// WithSanitizer cleans every converted body before it is stored.
func WithSanitizer(s *Sanitizer) EngineOption { return func(e *Engine) { e.sanitizer = s } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption { return func(e *Engine) { e.logger = l } }

// WithProgressEvery sets how many items pass between progress updates.
func WithProgressEvery(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.progressEvery = n
		}
	}
}

// WithIDGenerator replaces random UUID identities.
func WithIDGenerator(f func() string) EngineOption { return func(e *Engine) { e.newID = f } }

// WithTokenGenerator sets a factory for per-run asset token generators.
func WithTokenGenerator(f func() TokenGenerator) EngineOption {
	return func(e *Engine) { e.tokens = f }
}

// WithColorGenerator replaces random schema colors.
func WithColorGenerator(f func() string) EngineOption { return func(e *Engine) { e.color = f } }

// WithClock replaces time.Now.
func WithClock(f func() time.Time) EngineOption { return func(e *Engine) { e.now = f } }

// WithParser registers an extra content parser.
func WithParser(p ContentParser) EngineOption { return func(e *Engine) { e.registry.Register(p) } }

// New returns an engine. Without stores, output is collected on the Result.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		registry:      NewRegistry(),
		logger:        slog.Default(),
		progressEvery: defaultProgressEvery,
		newID:         uuid.NewString,
		tokens:        func() TokenGenerator { return RandomTokens{} },
		color:         RandomColor,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// parsedFile is a content file that converted successfully.
type parsedFile struct {
	rec      *models.FileRecord
	doc      *models.ParsedDocument
	modified time.Time
}

type assetBlob struct {
	name string
	data []byte
}

// Import runs a full import of the zip archive read from r.
func (e *Engine) Import(ctx context.Context, r io.ReaderAt, size int64, opts Options) (*Result, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, apperr.ErrImportInProgress
	}
	defer e.busy.Store(false)

	emit := func(phase Phase, status string, current, total int) {
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Phase: phase, Status: status, Current: current, Total: total})
		}
	}
	res := &Result{Types: []string{}}

	emit(PhaseScanning, "Reading archive", 0, 0)
	entries, err := OpenArchive(r, size)
	if err != nil {
		return nil, e.fatal(PhaseScanning, err)
	}
	run := NewRun(e.newID, e.tokens())
	pending, err := Scan(ctx, run, entries, ScanOptions{ExistingTitles: opts.ExistingTitles, Overwrite: opts.Overwrite})
	if err != nil {
		return nil, e.fatal(PhaseScanning, err)
	}
	ResolveAssets(run, pending)
	res.Skipped = run.Skipped()
	files := run.Files()
	e.logger.Info("import: scanned archive",
		slog.Int("documents", len(files)),
		slog.Int("assets", len(run.assetOrder)),
		slog.Int("skipped", res.Skipped))
	emit(PhaseScanning, fmt.Sprintf("Found %d documents and %d assets", len(files), len(run.assetOrder)), len(files), len(files))

	parsed, err := e.parseAll(ctx, run, files, res, emit)
	if err != nil {
		return nil, err
	}

	schemas, err := e.mergeSchemas(ctx, parsed, res, emit)
	if err != nil {
		return nil, err
	}

	storedAssets, err := e.transferAssets(ctx, run, res, emit)
	if err != nil {
		return nil, err
	}

	ids, err := e.importObjects(ctx, e.objectSeq(parsed, schemas), len(parsed), res, emit)
	if err != nil {
		return nil, err
	}

	if e.manifests != nil {
		m := &models.ImportManifest{
			Timestamp: e.now().UnixMilli(),
			Types:     res.Types,
			IDs:       ids,
			Assets:    storedAssets,
		}
		if err := e.manifests.SaveManifest(ctx, m); err != nil {
			e.logger.Error("import: save manifest failed", slog.String("error", err.Error()))
		} else {
			res.Manifest = m
		}
	}

	e.logger.Info("import: completed",
		slog.Int("processed", res.Processed),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Int("assets", res.Assets))
	emit(PhaseDone, fmt.Sprintf("Imported %d documents", res.Processed), res.Processed, len(files))
	return res, nil
}

func (e *Engine) fatal(phase Phase, err error) error {
	e.logger.Error("import: aborted", slog.String("phase", string(phase)), slog.String("error", err.Error()))
	return &FatalError{Phase: phase, Err: err}
}

func (e *Engine) due(n, total int) bool {
	return n%e.progressEvery == 0 || n == total
}

// parseAll converts every accepted file. Files that fail are counted and
// left out of the rest of the run.
func (e *Engine) parseAll(ctx context.Context, run *Run, files []*models.FileRecord, res *Result,
	emit func(Phase, string, int, int)) ([]parsedFile, error) {
	out := make([]parsedFile, 0, len(files))
	for i, rec := range files {
		if err := ctx.Err(); err != nil {
			return nil, e.fatal(PhaseSchemaMerge, err)
		}
		pf, err := e.parseFile(run, rec)
		if err != nil {
			res.Failed++
			e.logger.Warn("import: parse failed", slog.String("path", rec.Path), slog.String("error", err.Error()))
		} else {
			out = append(out, pf)
		}
		if e.due(i+1, len(files)) {
			emit(PhaseSchemaMerge, fmt.Sprintf("Parsed %d of %d documents", i+1, len(files)), i+1, len(files))
		}
	}
	return out, nil
}

func (e *Engine) parseFile(run *Run, rec *models.FileRecord) (parsedFile, error) {
	entry, ok := run.entry(rec.Path)
	if !ok {
		return parsedFile{}, fmt.Errorf("no archive entry for %s", rec.Path)
	}
	p := e.registry.For(rec.Path)
	if p == nil {
		return parsedFile{}, fmt.Errorf("unsupported file type: %s", rec.Path)
	}
	data, err := entry.Read()
	if err != nil {
		return parsedFile{}, err
	}
	doc, err := p.Parse(run, rec, data)
	if err != nil {
		return parsedFile{}, err
	}
	promote(rec, doc.Metadata)
	return parsedFile{rec: rec, doc: doc, modified: entry.Modified}, nil
}

// promote moves the title and type keys out of the metadata onto the record.
// Keys match case-insensitively.
func promote(rec *models.FileRecord, md *models.Metadata) {
	if k, v, ok := getFold(md, "title"); ok {
		if t := firstItem(v); t != "" {
			rec.Title = t
		}
		md.Delete(k)
	}
	if k, v, ok := getFold(md, "type"); ok {
		if t := firstItem(v); t != "" {
			rec.InferredType = t
		}
		md.Delete(k)
	}
}

// getFold returns the first metadata entry whose key equals key ignoring case.
func getFold(md *models.Metadata, key string) (string, models.Value, bool) {
	for _, k := range md.Keys() {
		if strings.EqualFold(k, key) {
			v, _ := md.Get(k)
			return k, v, true
		}
	}
	return "", models.Value{}, false
}

func firstItem(v models.Value) string {
	if items := v.Items(); len(items) > 0 {
		return strings.TrimSpace(items[0])
	}
	return ""
}

// mergeSchemas infers one schema per observed type and reconciles it with
// the stored schema. Only new types get a color and count as created.
func (e *Engine) mergeSchemas(ctx context.Context, parsed []parsedFile, res *Result,
	emit func(Phase, string, int, int)) (map[string]*models.TypeSchema, error) {
	tk := newTypeKeys()
	for _, pf := range parsed {
		tk.add(pf.rec.InferredType, pf.doc.Metadata.Keys())
	}

	schemas := make(map[string]*models.TypeSchema, len(tk.types))
	for i, typ := range tk.types {
		if err := ctx.Err(); err != nil {
			return nil, e.fatal(PhaseSchemaMerge, err)
		}
		final := e.reconcileSchema(ctx, InferSchema(typ, tk.keys[typ]), res)
		schemas[typ] = final
		res.Schemas = append(res.Schemas, final)
		emit(PhaseSchemaMerge, "Merged schema "+typ, i+1, len(tk.types))
	}
	return schemas, nil
}

func (e *Engine) reconcileSchema(ctx context.Context, inferred *models.TypeSchema, res *Result) *models.TypeSchema {
	if e.schemas == nil {
		inferred.Color = e.color()
		return inferred
	}

	existing, err := e.schemas.GetSchema(ctx, inferred.Type)
	switch {
	case err == nil:
		merged, added := MergeSchema(existing, inferred)
		if added > 0 {
			if err := e.schemas.SaveSchema(ctx, merged); err != nil {
				e.logger.Warn("import: save schema failed", slog.String("type", merged.Type), slog.String("error", err.Error()))
			}
		}
		return merged
	case errors.Is(err, apperr.ErrNotFound):
		inferred.Color = e.color()
		if err := e.schemas.SaveSchema(ctx, inferred); err != nil {
			e.logger.Warn("import: save schema failed", slog.String("type", inferred.Type), slog.String("error", err.Error()))
			return inferred
		}
		res.Types = append(res.Types, inferred.Type)
		return inferred
	default:
		e.logger.Warn("import: load schema failed", slog.String("type", inferred.Type), slog.String("error", err.Error()))
		inferred.Color = e.color()
		return inferred
	}
}

// assetSeq lazily reads each asset's bytes in scan order. The sequence can
// be ranged over once.
func assetSeq(run *Run) iter.Seq2[assetBlob, error] {
	next := 0
	return func(yield func(assetBlob, error) bool) {
		for next < len(run.assetOrder) {
			p := run.assetOrder[next]
			next++
			name := run.assets[p]
			entry, _ := run.entry(p)
			data, err := entry.Read()
			if !yield(assetBlob{name: name, data: data}, err) {
				return
			}
		}
	}
}

func (e *Engine) transferAssets(ctx context.Context, run *Run, res *Result,
	emit func(Phase, string, int, int)) ([]string, error) {
	total := len(run.assetOrder)
	stored := make([]string, 0, total)
	n := 0
	for blob, err := range assetSeq(run) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, e.fatal(PhaseAssetTransfer, ctxErr)
		}
		n++
		switch {
		case err != nil:
			res.Failed++
			e.logger.Warn("import: read asset failed", slog.String("name", blob.name), slog.String("error", err.Error()))
		case e.assets == nil:
			if res.Blobs == nil {
				res.Blobs = make(map[string][]byte)
			}
			res.Blobs[blob.name] = blob.data
			stored = append(stored, blob.name)
		default:
			if putErr := e.assets.Put(ctx, blob.name, blob.data); putErr != nil {
				res.Failed++
				e.logger.Warn("import: store asset failed", slog.String("name", blob.name), slog.String("error", putErr.Error()))
				break
			}
			stored = append(stored, blob.name)
		}
		if e.due(n, total) {
			emit(PhaseAssetTransfer, fmt.Sprintf("Transferred %d of %d assets", n, total), n, total)
		}
	}
	res.Assets = len(stored)
	return stored, nil
}

// objectSeq lazily builds the finished objects. The sequence can be ranged
// over once.
func (e *Engine) objectSeq(parsed []parsedFile, schemas map[string]*models.TypeSchema) iter.Seq[*models.KnowledgeObject] {
	next := 0
	return func(yield func(*models.KnowledgeObject) bool) {
		for next < len(parsed) {
			pf := parsed[next]
			next++
			if !yield(e.buildObject(pf, schemas[pf.rec.InferredType])) {
				return
			}
		}
	}
}

func (e *Engine) buildObject(pf parsedFile, schema *models.TypeSchema) *models.KnowledgeObject {
	md := pf.doc.Metadata
	props := make([]models.Property, 0, md.Len())
	var tags []string
	for _, k := range md.Keys() {
		v, _ := md.Get(k)
		def, ok := models.PropertyDefinition{}, false
		if schema != nil {
			def, ok = schema.Property(k)
		}
		if !ok {
			def = models.PropertyDefinition{Key: k, Label: Label(k), Type: InferPropertyType(k)}
		}
		props = append(props, models.Property{Key: k, Label: def.Label, Type: def.Type, Value: v})
		if tags == nil && strings.EqualFold(k, "tags") {
			tags = v.Items()
		}
	}

	content := pf.doc.Body
	if e.sanitizer != nil {
		content = e.sanitizer.Sanitize(content)
	}
	modified := pf.modified
	if modified.IsZero() {
		modified = e.now()
	}
	return &models.KnowledgeObject{
		ID:           pf.rec.ID,
		Title:        pf.rec.Title,
		Type:         pf.rec.InferredType,
		Content:      content,
		Metadata:     props,
		Tags:         parser.MergeTags(tags, pf.doc.Tags...),
		Links:        pf.doc.Links,
		LastModified: modified.UTC(),
	}
}

func (e *Engine) importObjects(ctx context.Context, objects iter.Seq[*models.KnowledgeObject], total int, res *Result,
	emit func(Phase, string, int, int)) ([]string, error) {
	ids := make([]string, 0, total)
	n := 0
	for obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, e.fatal(PhaseObjectImport, err)
		}
		n++
		if e.objects == nil {
			res.Objects = append(res.Objects, obj)
			ids = append(ids, obj.ID)
		} else if err := e.objects.SaveObject(ctx, obj); err != nil {
			res.Failed++
			e.logger.Warn("import: save object failed",
				slog.String("id", obj.ID), slog.String("title", obj.Title), slog.String("error", err.Error()))
		} else {
			ids = append(ids, obj.ID)
		}
		if e.due(n, total) {
			emit(PhaseObjectImport, fmt.Sprintf("Imported %d of %d documents", n, total), n, total)
		}
	}
	res.Processed = len(ids)
	return ids, nil
}
