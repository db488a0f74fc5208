package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mcmassia/nexusdrive/internal/apperr"
	"github.com/mcmassia/nexusdrive/internal/checksum"
	"github.com/mcmassia/nexusdrive/internal/importer"
	"github.com/mcmassia/nexusdrive/internal/index"
	"github.com/mcmassia/nexusdrive/internal/objectservice"
	"github.com/mcmassia/nexusdrive/internal/storage"
)

const defaultMaxUpload = 512 << 20 // 512 MB

// Handler holds API route handlers.
type Handler struct {
	svc       *objectservice.Service
	maxUpload int64
}

// NewHandler creates a new Handler.
func NewHandler(svc *objectservice.Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// ImportArchive handles POST /api/imports.
//
//	@Summary		Import a zip archive of Markdown and HTML documents
//	@Tags			imports
//	@Accept			multipart/form-data,application/zip
//	@Produce		json
//	@Param			archive		formData	file	false	"Archive (multipart upload)"
//	@Param			overwrite	query		bool	false	"Import documents whose titles already exist"
//	@Success		200			{object}	ImportResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		413			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/imports [post]
func (h *Handler) ImportArchive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	overwrite, _ := strconv.ParseBool(r.URL.Query().Get("overwrite"))

	archive, size, err := h.readArchive(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("archive too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if c, ok := archive.(io.Closer); ok {
		defer c.Close()
	}

	res, err := h.svc.Import(r.Context(), archive, size, overwrite)
	if err != nil {
		var fatal *importer.FatalError
		switch {
		case errors.Is(err, apperr.ErrImportInProgress):
			writeJSON(w, http.StatusConflict, errorBody("an import or revert is already running"))
		case errors.Is(err, apperr.ErrArchiveTooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("archive too large"))
		case errors.As(err, &fatal):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": fatal.Err.Error(),
				"phase": string(fatal.Phase),
			})
		default:
			slog.Error("import failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readArchive accepts either a multipart upload in the "archive" field or a
// raw zip request body.
func (h *Handler) readArchive(r *http.Request) (io.ReaderAt, int64, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, 0, err
		}
		file, header, err := r.FormFile("archive")
		if err != nil {
			return nil, 0, errors.New("missing 'archive' field in multipart form")
		}
		return file, header.Size, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, 0, err
	}
	if len(data) == 0 {
		return nil, 0, errors.New("request body is empty")
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// RevertImport handles POST /api/imports/revert.
//
//	@Summary		Undo the most recent import
//	@Tags			imports
//	@Produce		json
//	@Success		200	{object}	RevertResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/imports/revert [post]
func (h *Handler) RevertImport(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Revert(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNoManifest):
			writeJSON(w, http.StatusNotFound, errorBody("no import to revert"))
		case errors.Is(err, apperr.ErrImportInProgress):
			writeJSON(w, http.StatusConflict, errorBody("an import or revert is already running"))
		default:
			slog.Error("revert failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetManifest handles GET /api/imports/manifest.
//
//	@Summary		Show what the most recent import created
//	@Tags			imports
//	@Produce		json
//	@Success		200	{object}	ManifestResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/imports/manifest [get]
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Manifest(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNoManifest) {
			writeJSON(w, http.StatusNotFound, errorBody("no import manifest"))
		} else {
			slog.Error("load manifest failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListObjects handles GET /api/objects.
//
//	@Summary		List objects with optional pagination and filtering
//	@Tags			objects
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			type	query		string	false	"Filter by type"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(title, updated)
//	@Success		200		{object}	ObjectListResponse
//	@Security		BearerAuth
//	@Router			/objects [get]
func (h *Handler) ListObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListObjects(r.Context(), index.ListFilter{
		Type:   q.Get("type"),
		Tag:    q.Get("tag"),
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		slog.Error("list objects failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"objects": items,
		"total":   total,
	})
}

// GetObject handles GET /api/objects/{id}.
//
//	@Summary		Get a single object with its backlinks
//	@Tags			objects
//	@Produce		json
//	@Param			id				path		string	true	"Object id"
//	@Param			If-None-Match	header		string	false	"ETag from a previous response"
//	@Success		200				{object}	ObjectDetail
//	@Success		304				"Not modified"
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/objects/{id} [get]
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	obj, err := h.svc.GetObject(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get object failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.Header().Set("ETag", checksum.ETag(obj.Checksum))
	if inm := r.Header.Get("If-None-Match"); inm != "" && checksum.Matches(inm, obj.Checksum) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// DeleteObject handles DELETE /api/objects/{id}.
//
//	@Summary		Delete an object
//	@Tags			objects
//	@Param			id	path	string	true	"Object id"
//	@Success		204	"Object deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/objects/{id} [delete]
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteObject(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete object failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSchemas handles GET /api/schemas.
//
//	@Summary		List type schemas
//	@Tags			schemas
//	@Produce		json
//	@Success		200	{object}	SchemaListResponse
//	@Security		BearerAuth
//	@Router			/schemas [get]
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.svc.ListSchemas(r.Context())
	if err != nil {
		slog.Error("list schemas failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": schemas})
}

// ListAssets handles GET /api/assets.
//
//	@Summary		List stored assets
//	@Tags			assets
//	@Produce		json
//	@Success		200	{object}	AssetListResponse
//	@Security		BearerAuth
//	@Router			/assets [get]
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.svc.ListAssets(r.Context())
	if err != nil {
		slog.Error("list assets failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if assets == nil {
		assets = []storage.AssetInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across imported objects
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
