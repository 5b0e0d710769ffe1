package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"DiscBox/core/importer"
	"DiscBox/logger"
	"DiscBox/model"
	"DiscBox/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ImportRequest is the body of an import submission.
type ImportRequest struct {
	URL         string `json:"url"`
	TrackNumber *int   `json:"track_number"`
}

// ImportResponse is returned immediately after an import is accepted.
type ImportResponse struct {
	TrackID string          `json:"track_id"`
	Job     importer.Status `json:"job"`
}

// ImportTrackHandler accepts an import request for an album: it persists an
// initializing placeholder track, hands the job to the supervisor and
// returns immediately. The placeholder is replaced by one waiting track per
// resolved entry once the job expands the URL.
func (h *APIHandler) ImportTrackHandler(w http.ResponseWriter, r *http.Request) {
	albumID := mux.Vars(r)["id"]

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	placeholderID := uuid.NewString()
	startNumber := 0
	err := h.albumRepo.UpdateAlbum(r.Context(), albumID, func(album *model.Album) error {
		startNumber = album.NextTrackNumber()
		if req.TrackNumber != nil {
			startNumber = *req.TrackNumber
		}
		album.Tracks = append(album.Tracks, &model.Track{
			ID:          placeholderID,
			Title:       "Initializing Import...",
			TrackNumber: startNumber,
			Status:      model.StatusInitializing,
			Processing:  true,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Album not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to persist import placeholder",
			logger.String("albumId", albumID),
			logger.ErrorField(err))
		http.Error(w, "Failed to start import", http.StatusInternalServerError)
		return
	}

	status, err := h.supervisor.Submit(albumID, req.URL, placeholderID, startNumber)
	if err != nil {
		// Undo the placeholder: the job was never started.
		_ = h.albumRepo.UpdateAlbum(r.Context(), albumID, func(album *model.Album) error {
			if !album.RemoveTrack(placeholderID) {
				return repository.ErrSkipSave
			}
			return nil
		})
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, ImportResponse{TrackID: placeholderID, Job: status})
}

// ListImportsHandler lists every known import job, newest first.
func (h *APIHandler) ListImportsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.supervisor.Jobs())
}

// GetImportHandler returns the status of one import job.
func (h *APIHandler) GetImportHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, ok := h.supervisor.JobStatus(id)
	if !ok {
		http.Error(w, "Import job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// CancelImportHandler requests cancellation of one import job.
func (h *APIHandler) CancelImportHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.supervisor.Cancel(id) {
		http.Error(w, "Import job not found", http.StatusNotFound)
		return
	}
	logger.Info("import cancellation requested", logger.String("jobId", id))
	w.WriteHeader(http.StatusAccepted)
}
