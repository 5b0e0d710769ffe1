package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"DiscBox/logger"
	"DiscBox/model"
	"DiscBox/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AlbumRequest is the create/update body for an album.
type AlbumRequest struct {
	ArtistID   string `json:"artist_id"`
	Title      string `json:"title"`
	Year       string `json:"year"`
	Type       string `json:"type"`
	CoverImage string `json:"cover_image"`
}

// CreateAlbumHandler creates a new album document for an existing artist.
func (h *APIHandler) CreateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	var req AlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ArtistID == "" || req.Title == "" {
		http.Error(w, "artist_id and title are required", http.StatusBadRequest)
		return
	}

	artist, err := h.artistRepo.GetArtistByID(r.Context(), req.ArtistID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Artist not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to load artist", logger.String("artistId", req.ArtistID), logger.ErrorField(err))
		http.Error(w, "Failed to load artist", http.StatusInternalServerError)
		return
	}

	albumType := req.Type
	if albumType == "" {
		albumType = "Album"
	}

	album := &model.Album{
		ID:         uuid.NewString(),
		ArtistID:   artist.ID,
		ArtistName: artist.Name,
		Title:      req.Title,
		Year:       req.Year,
		Type:       albumType,
		CoverImage: req.CoverImage,
		Tracks:     []*model.Track{},
	}

	if err := h.albumRepo.CreateAlbum(r.Context(), album); err != nil {
		logger.Error("failed to create album", logger.ErrorField(err))
		http.Error(w, "Failed to create album", http.StatusInternalServerError)
		return
	}

	logger.Info("album created",
		logger.String("albumId", album.ID),
		logger.String("artistId", artist.ID),
		logger.String("title", album.Title))
	writeJSON(w, http.StatusCreated, album)
}

// GetAlbumHandler returns one album with its track list.
func (h *APIHandler) GetAlbumHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	album, err := h.albumRepo.GetAlbumByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Album not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to load album", logger.String("albumId", id), logger.ErrorField(err))
		http.Error(w, "Failed to load album", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

// UpdateAlbumHandler edits album metadata.
func (h *APIHandler) UpdateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req AlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.albumRepo.UpdateAlbum(r.Context(), id, func(album *model.Album) error {
		if req.Title != "" {
			album.Title = req.Title
		}
		if req.Year != "" {
			album.Year = req.Year
		}
		if req.Type != "" {
			album.Type = req.Type
		}
		if req.CoverImage != "" {
			album.CoverImage = req.CoverImage
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Album not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to update album", logger.String("albumId", id), logger.ErrorField(err))
		http.Error(w, "Failed to update album", http.StatusInternalServerError)
		return
	}

	album, err := h.albumRepo.GetAlbumByID(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load album", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

// DeleteAlbumHandler removes an album and, best effort, its media files.
func (h *APIHandler) DeleteAlbumHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	album, err := h.albumRepo.GetAlbumByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Album not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to load album", logger.String("albumId", id), logger.ErrorField(err))
		http.Error(w, "Failed to load album", http.StatusInternalServerError)
		return
	}

	if err := h.albumRepo.DeleteAlbum(r.Context(), id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Error("failed to delete album", logger.String("albumId", id), logger.ErrorField(err))
		http.Error(w, "Failed to delete album", http.StatusInternalServerError)
		return
	}

	for _, track := range album.Tracks {
		if track.Filename == nil {
			continue
		}
		if err := os.Remove(filepath.Join(h.cfg.MusicDir, *track.Filename)); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove media file",
				logger.String("filename", *track.Filename),
				logger.ErrorField(err))
		}
	}

	logger.Info("album deleted", logger.String("albumId", id))
	w.WriteHeader(http.StatusNoContent)
}
