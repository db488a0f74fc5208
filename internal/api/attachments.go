package api

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mcmassia/nexusdrive/internal/apperr"
	"github.com/mcmassia/nexusdrive/internal/checksum"
	"github.com/mcmassia/nexusdrive/internal/objectservice"
)

// AttachmentHandler serves imported asset blobs, the targets of asset:// references.
type AttachmentHandler struct {
	svc *objectservice.Service
}

// NewAttachmentHandler creates a handler backed by the asset store.
func NewAttachmentHandler(svc *objectservice.Service) *AttachmentHandler {
	return &AttachmentHandler{svc: svc}
}

// safeName validates that the name is a plain stored name (no path
// separators, no traversal).
func safeName(name string) error {
	if name == "" {
		return errors.New("filename is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.New("invalid filename: " + name)
	}
	return nil
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if err := safeName(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := h.svc.ReadAsset(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("read asset failed", slog.String("name", name), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sum := checksum.Sum(data)
	w.Header().Set("ETag", checksum.ETag(sum))
	if inm := r.Header.Get("If-None-Match"); inm != "" && checksum.Matches(inm, sum) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
