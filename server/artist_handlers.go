package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"DiscBox/logger"
	"DiscBox/model"
	"DiscBox/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ArtistRequest is the create/update body for an artist.
type ArtistRequest struct {
	Name        string `json:"name"`
	Genre       string `json:"genre"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// GetArtistsHandler lists the artist index.
func (h *APIHandler) GetArtistsHandler(w http.ResponseWriter, r *http.Request) {
	index, err := h.artistRepo.ListIndex(r.Context())
	if err != nil {
		logger.Error("failed to list artists", logger.ErrorField(err))
		http.Error(w, "Failed to list artists", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

// CreateArtistHandler creates a new artist document.
func (h *APIHandler) CreateArtistHandler(w http.ResponseWriter, r *http.Request) {
	var req ArtistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Artist name is required", http.StatusBadRequest)
		return
	}

	artist := &model.Artist{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Genre:       req.Genre,
		Description: req.Description,
		Image:       req.Image,
	}

	if err := h.artistRepo.CreateArtist(r.Context(), artist); err != nil {
		logger.Error("failed to create artist", logger.ErrorField(err))
		http.Error(w, "Failed to create artist", http.StatusInternalServerError)
		return
	}

	logger.Info("artist created", logger.String("artistId", artist.ID), logger.String("name", artist.Name))
	writeJSON(w, http.StatusCreated, artist)
}

// GetArtistHandler returns one artist with its albums.
func (h *APIHandler) GetArtistHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	artist, err := h.artistRepo.GetArtistByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Artist not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to load artist", logger.String("artistId", id), logger.ErrorField(err))
		http.Error(w, "Failed to load artist", http.StatusInternalServerError)
		return
	}

	albums, err := h.albumRepo.GetAlbumsByArtistID(r.Context(), id)
	if err != nil {
		logger.Error("failed to load albums", logger.String("artistId", id), logger.ErrorField(err))
		http.Error(w, "Failed to load albums", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*model.Artist
		Albums []*model.Album `json:"albums"`
	}{artist, albums})
}

// GetArtistAlbumsHandler lists one artist's albums, oldest first.
func (h *APIHandler) GetArtistAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.artistRepo.GetArtistByID(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Artist not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to load artist", logger.String("artistId", id), logger.ErrorField(err))
		http.Error(w, "Failed to load artist", http.StatusInternalServerError)
		return
	}

	albums, err := h.albumRepo.GetAlbumsByArtistID(r.Context(), id)
	if err != nil {
		logger.Error("failed to load albums", logger.String("artistId", id), logger.ErrorField(err))
		http.Error(w, "Failed to load albums", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// UpdateArtistHandler edits artist metadata.
func (h *APIHandler) UpdateArtistHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ArtistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.artistRepo.UpdateArtist(r.Context(), id, func(artist *model.Artist) error {
		if req.Name != "" {
			artist.Name = req.Name
		}
		artist.Genre = req.Genre
		artist.Description = req.Description
		if req.Image != "" {
			artist.Image = req.Image
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Artist not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to update artist", logger.String("artistId", id), logger.ErrorField(err))
		http.Error(w, "Failed to update artist", http.StatusInternalServerError)
		return
	}

	artist, err := h.artistRepo.GetArtistByID(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load artist", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, artist)
}

// DeleteArtistHandler removes an artist and all of its albums.
func (h *APIHandler) DeleteArtistHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.artistRepo.DeleteArtist(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Artist not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to delete artist", logger.String("artistId", id), logger.ErrorField(err))
		http.Error(w, "Failed to delete artist", http.StatusInternalServerError)
		return
	}

	logger.Info("artist deleted", logger.String("artistId", id))
	w.WriteHeader(http.StatusNoContent)
}

// RebuildIndexHandler re-derives the artist index from the documents.
func (h *APIHandler) RebuildIndexHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.artistRepo.RebuildIndex(r.Context()); err != nil {
		logger.Error("failed to rebuild index", logger.ErrorField(err))
		http.Error(w, "Failed to rebuild index", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "index rebuilt"})
}
