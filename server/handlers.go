package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"DiscBox/config"
	"DiscBox/core/importer"
	"DiscBox/logger"
	"DiscBox/repository"

	"github.com/google/uuid"
)

// APIHandler handles all API requests.
type APIHandler struct {
	artistRepo repository.ArtistRepository
	albumRepo  repository.AlbumRepository
	supervisor *importer.Supervisor
	cfg        *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	artistRepo repository.ArtistRepository,
	albumRepo repository.AlbumRepository,
	supervisor *importer.Supervisor,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		artistRepo: artistRepo,
		albumRepo:  albumRepo,
		supervisor: supervisor,
		cfg:        cfg,
	}
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

var errInvalidImageType = errors.New("invalid image type")

var allowedImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// saveImageFile stores an uploaded image under a fresh identifier and
// returns the stored file name. Returns "" with no error when the form
// field is absent.
func (h *APIHandler) saveImageFile(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExts[ext] {
		return "", errInvalidImageType
	}

	filename := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	dst, err := os.Create(filepath.Join(h.cfg.ImagesDir, filename))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return filename, nil
}

// UploadImageHandler stores one image and returns its file name for use as
// an artist image or album cover.
func (h *APIHandler) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Failed to parse upload form", http.StatusBadRequest)
		return
	}

	filename, err := h.saveImageFile(r, "image")
	if err != nil {
		if err == errInvalidImageType {
			http.Error(w, "Invalid image type. Supported formats: PNG, JPG, GIF, WEBP.", http.StatusBadRequest)
			return
		}
		logger.Error("failed to save image", logger.ErrorField(err))
		http.Error(w, "Failed to save image", http.StatusInternalServerError)
		return
	}
	if filename == "" {
		http.Error(w, "Missing image file", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"filename": filename})
}
