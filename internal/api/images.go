package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/deepfake-defender/internal/imagesource"
	"github.com/go-chi/chi/v5"
)

// ImageHandler serves round images by opaque ID.
type ImageHandler struct {
	*Handler
}

// NewImageHandler creates a new image handler.
func NewImageHandler(base *Handler) *ImageHandler {
	return &ImageHandler{Handler: base}
}

// RegisterRoutes registers image routes.
func (h *ImageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/images/{id}", h.GetImage)
}

// GetImage writes the image scaled to the display width. When the source
// cannot supply it a placeholder card is served instead so the page layout
// holds.
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	width := h.cfg.DisplayWidth

	blob, err := h.images.Open(r.Context(), id)
	if err == nil {
		var scaled *imagesource.Blob
		if scaled, err = imagesource.Scale(blob, width); err == nil {
			writeImage(w, http.StatusOK, scaled, "private, max-age=3600")
			return
		}
	}

	slog.Warn("Failed to load image", "image_id", id, "error", err)
	placeholder, perr := imagesource.Placeholder(width, 0, "Image unavailable")
	if perr != nil {
		slog.Error("Failed to render placeholder", "error", perr)
		Error(w, http.StatusInternalServerError, "failed to render image")
		return
	}
	writeImage(w, http.StatusNotFound, placeholder, "no-store")
}

func writeImage(w http.ResponseWriter, status int, b *imagesource.Blob, cacheControl string) {
	w.Header().Set("Content-Type", b.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.Data)))
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(status)
	if _, err := w.Write(b.Data); err != nil {
		slog.Debug("Failed to write image", "error", err)
	}
}
