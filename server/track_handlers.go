package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"DiscBox/logger"
	"DiscBox/model"
	"DiscBox/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const maxUploadSize = 100 << 20 // 100MB

var allowedAudioTypes = []string{
	"audio/mpeg", "audio/mp3", // MP3
	"audio/wav", "audio/x-wav", // WAV
	"audio/flac", "audio/x-flac", // FLAC
	"audio/aac",  // AAC
	"audio/mp4",  // M4A
	"audio/ogg",  // OGG
	"audio/opus", // OPUS
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)

// secureFilename strips path components and unsafe characters from an
// uploaded file name.
func secureFilename(name string) string {
	base := filepath.Base(name)
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	if base == "" || base == "." {
		base = "upload"
	}
	return base
}

// UploadTrackHandler handles direct audio file uploads into an album.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	albumID := mux.Vars(r)["id"]

	if r.ContentLength > maxUploadSize {
		http.Error(w, fmt.Sprintf("Request too large. Maximum size is %d MB", maxUploadSize>>20), http.StatusRequestEntityTooLarge)
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		logger.Error("failed to parse upload form", logger.ErrorField(err))
		http.Error(w, "Failed to parse upload form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			http.Error(w, "Missing audio file. Please select a file to upload.", http.StatusBadRequest)
		} else {
			http.Error(w, "Failed to process uploaded file.", http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	validType := false
	for _, t := range allowedAudioTypes {
		if contentType == t {
			validType = true
			break
		}
	}
	if !validType {
		logger.Warn("unsupported audio type",
			logger.String("contentType", contentType),
			logger.String("filename", header.Filename))
		http.Error(w, "Invalid file type. Supported formats: MP3, WAV, FLAC, AAC, M4A, OGG, OPUS.", http.StatusBadRequest)
		return
	}

	// Stored name is a fresh identifier plus the sanitized original name,
	// so uploads never overwrite each other.
	storedName := strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + "_" + secureFilename(header.Filename)
	dstPath := filepath.Join(h.cfg.MusicDir, storedName)

	dst, err := os.Create(dstPath)
	if err != nil {
		logger.Error("failed to create media file", logger.ErrorField(err))
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dstPath)
		logger.Error("failed to store media file", logger.ErrorField(err))
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}
	dst.Close()

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	var track *model.Track
	err = h.albumRepo.UpdateAlbum(r.Context(), albumID, func(album *model.Album) error {
		number := album.NextTrackNumber()
		if v := r.FormValue("track_number"); v != "" {
			if n, convErr := strconv.Atoi(v); convErr == nil {
				number = n
			}
		}
		filename := storedName
		track = &model.Track{
			ID:          uuid.NewString(),
			Title:       title,
			TrackNumber: number,
			Filename:    &filename,
			Status:      model.StatusReady,
		}
		album.Tracks = append(album.Tracks, track)
		return nil
	})
	if err != nil {
		os.Remove(dstPath)
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Album not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to add track", logger.String("albumId", albumID), logger.ErrorField(err))
		http.Error(w, "Failed to add track", http.StatusInternalServerError)
		return
	}

	logger.Info("track uploaded",
		logger.String("albumId", albumID),
		logger.String("trackId", track.ID),
		logger.String("filename", storedName))
	writeJSON(w, http.StatusCreated, track)
}

// TrackRequest is the edit body for a track.
type TrackRequest struct {
	Title       string `json:"title"`
	TrackNumber *int   `json:"track_number"`
}

// UpdateTrackHandler edits a track's title and number.
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	albumID, trackID := vars["id"], vars["track_id"]

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	found := false
	err := h.albumRepo.UpdateAlbum(r.Context(), albumID, func(album *model.Album) error {
		track := album.TrackByID(trackID)
		if track == nil {
			return repository.ErrSkipSave
		}
		found = true
		if req.Title != "" {
			track.Title = req.Title
		}
		if req.TrackNumber != nil {
			track.TrackNumber = *req.TrackNumber
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Album not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to update track", logger.String("trackId", trackID), logger.ErrorField(err))
		http.Error(w, "Failed to update track", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}

	album, err := h.albumRepo.GetAlbumByID(r.Context(), albumID)
	if err != nil {
		http.Error(w, "Failed to load album", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

// DeleteTrackHandler removes a track and, best effort, its media file.
// Deleting a track whose import job is still in flight does not cancel the
// job; the job's next write for the missing id is a silent no-op.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	albumID, trackID := vars["id"], vars["track_id"]

	var filename string
	found := false
	err := h.albumRepo.UpdateAlbum(r.Context(), albumID, func(album *model.Album) error {
		track := album.TrackByID(trackID)
		if track == nil {
			return repository.ErrSkipSave
		}
		found = true
		if track.Filename != nil {
			filename = *track.Filename
		}
		album.RemoveTrack(trackID)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Album not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to delete track", logger.String("trackId", trackID), logger.ErrorField(err))
		http.Error(w, "Failed to delete track", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}

	if filename != "" {
		if err := os.Remove(filepath.Join(h.cfg.MusicDir, filename)); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove media file", logger.String("filename", filename), logger.ErrorField(err))
		}
	}

	logger.Info("track deleted", logger.String("albumId", albumID), logger.String("trackId", trackID))
	w.WriteHeader(http.StatusNoContent)
}
