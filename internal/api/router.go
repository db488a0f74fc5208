package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mcmassia/nexusdrive/internal/objectservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// maxUpload caps the size of an uploaded archive; zero uses the default.
func NewRouter(svc *objectservice.Service, authEnabled bool, token string, sseHandler http.Handler, maxUpload int64) chi.Router {
	h := NewHandler(svc, maxUpload)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Imports.
	r.Post("/imports", h.ImportArchive)
	r.Post("/imports/revert", h.RevertImport)
	r.Get("/imports/manifest", h.GetManifest)

	// Objects.
	r.Get("/objects", h.ListObjects)
	r.Get("/objects/{id}", h.GetObject)
	r.Delete("/objects/{id}", h.DeleteObject)

	r.Get("/schemas", h.ListSchemas)
	r.Get("/assets", h.ListAssets)
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
