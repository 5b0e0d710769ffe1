package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"DiscBox/model"
)

// AlbumRepository defines album document operations. The album document
// embeds the track list; every save keeps the tracks sorted ascending by
// track number.
type AlbumRepository interface {
	// CreateAlbum persists a new album document.
	CreateAlbum(ctx context.Context, album *model.Album) error

	// GetAlbumByID loads one album document.
	GetAlbumByID(ctx context.Context, id string) (*model.Album, error)

	// GetAlbumsByArtistID lists the albums owned by one artist.
	GetAlbumsByArtistID(ctx context.Context, artistID string) ([]*model.Album, error)

	// UpdateAlbum applies mutate to the current document and saves it.
	// Returns ErrNotFound if the document does not exist; a mutate returning
	// ErrSkipSave aborts without writing.
	UpdateAlbum(ctx context.Context, id string, mutate func(*model.Album) error) error

	// DeleteAlbum removes the album document.
	DeleteAlbum(ctx context.Context, id string) error
}

// FSAlbumRepository is the filesystem implementation of AlbumRepository.
type FSAlbumRepository struct {
	store *Store
}

// NewFSAlbumRepository creates a new filesystem album repository.
func NewFSAlbumRepository(store *Store) *FSAlbumRepository {
	return &FSAlbumRepository{store: store}
}

// CreateAlbum persists a new album document and refreshes the owning
// artist's index entry (album count).
func (r *FSAlbumRepository) CreateAlbum(ctx context.Context, album *model.Album) error {
	if album.ID == "" {
		return fmt.Errorf("album id is required")
	}
	if album.ArtistID == "" {
		return fmt.Errorf("album artist id is required")
	}

	path := r.store.albumPath(album.ID)
	lock := r.store.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	album.CreatedAt = now
	album.UpdatedAt = now
	if album.Tracks == nil {
		album.Tracks = []*model.Track{}
	}
	album.SortTracks()

	if err := writeDocument(path, album); err != nil {
		return err
	}
	return r.refreshArtistIndex(album.ArtistID)
}

// GetAlbumByID loads one album document.
func (r *FSAlbumRepository) GetAlbumByID(ctx context.Context, id string) (*model.Album, error) {
	album := &model.Album{}
	if err := readDocument(r.store.albumPath(id), album); err != nil {
		return nil, err
	}
	return album, nil
}

// GetAlbumsByArtistID lists the albums owned by one artist, oldest first.
func (r *FSAlbumRepository) GetAlbumsByArtistID(ctx context.Context, artistID string) ([]*model.Album, error) {
	entries, err := os.ReadDir(r.store.albumsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}

	albums := []*model.Album{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		album := &model.Album{}
		if err := readDocument(filepath.Join(r.store.albumsDir, entry.Name()), album); err != nil {
			continue
		}
		if album.ArtistID == artistID {
			albums = append(albums, album)
		}
	}

	sort.Slice(albums, func(i, j int) bool {
		return albums[i].CreatedAt.Before(albums[j].CreatedAt)
	})
	return albums, nil
}

// UpdateAlbum applies mutate under the album's document lock and saves.
// Tracks are re-sorted on every save, so the sorted-by-track-number
// invariant holds after any mutation.
func (r *FSAlbumRepository) UpdateAlbum(ctx context.Context, id string, mutate func(*model.Album) error) error {
	path := r.store.albumPath(id)
	lock := r.store.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	album := &model.Album{}
	if err := readDocument(path, album); err != nil {
		return err
	}

	if err := mutate(album); err != nil {
		if errors.Is(err, ErrSkipSave) {
			return nil
		}
		return err
	}
	album.UpdatedAt = time.Now()
	album.SortTracks()

	return writeDocument(path, album)
}

// DeleteAlbum removes the album document and refreshes the owning artist's
// index entry.
func (r *FSAlbumRepository) DeleteAlbum(ctx context.Context, id string) error {
	path := r.store.albumPath(id)
	lock := r.store.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	album := &model.Album{}
	if err := readDocument(path, album); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove album document: %w", err)
	}
	return r.refreshArtistIndex(album.ArtistID)
}

// refreshArtistIndex re-derives the index entry of one artist after an album
// change. A missing artist document is not an error: the index simply keeps
// no entry for it.
func (r *FSAlbumRepository) refreshArtistIndex(artistID string) error {
	artist := &model.Artist{}
	if err := readDocument(r.store.artistPath(artistID), artist); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return r.store.upsertIndexEntry(artist)
}
