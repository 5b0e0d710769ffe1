package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"DiscBox/model"
)

// ArtistRepository defines artist document operations. Mutations are
// whole-document: load, apply, save. Update serializes concurrent mutations
// of the same artist.
type ArtistRepository interface {
	// CreateArtist persists a new artist document and its index entry.
	CreateArtist(ctx context.Context, artist *model.Artist) error

	// GetArtistByID loads one artist document.
	GetArtistByID(ctx context.Context, id string) (*model.Artist, error)

	// UpdateArtist applies mutate to the current document and saves it.
	// Returns ErrNotFound if the document does not exist; a mutate returning
	// ErrSkipSave aborts without writing.
	UpdateArtist(ctx context.Context, id string, mutate func(*model.Artist) error) error

	// DeleteArtist removes the artist, all of its albums and its index entry.
	DeleteArtist(ctx context.Context, id string) error

	// ListIndex returns the derived artist summaries.
	ListIndex(ctx context.Context) ([]*model.ArtistSummary, error)

	// RebuildIndex re-derives the index from the artist documents.
	RebuildIndex(ctx context.Context) error
}

// FSArtistRepository is the filesystem implementation of ArtistRepository.
type FSArtistRepository struct {
	store *Store
}

// NewFSArtistRepository creates a new filesystem artist repository.
func NewFSArtistRepository(store *Store) *FSArtistRepository {
	return &FSArtistRepository{store: store}
}

// CreateArtist persists a new artist document and its index entry.
func (r *FSArtistRepository) CreateArtist(ctx context.Context, artist *model.Artist) error {
	if artist.ID == "" {
		return fmt.Errorf("artist id is required")
	}

	path := r.store.artistPath(artist.ID)
	lock := r.store.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	artist.CreatedAt = now
	artist.UpdatedAt = now

	if err := writeDocument(path, artist); err != nil {
		return err
	}
	return r.store.upsertIndexEntry(artist)
}

// GetArtistByID loads one artist document.
func (r *FSArtistRepository) GetArtistByID(ctx context.Context, id string) (*model.Artist, error) {
	artist := &model.Artist{}
	if err := readDocument(r.store.artistPath(id), artist); err != nil {
		return nil, err
	}
	return artist, nil
}

// UpdateArtist applies mutate under the artist's document lock and saves.
func (r *FSArtistRepository) UpdateArtist(ctx context.Context, id string, mutate func(*model.Artist) error) error {
	path := r.store.artistPath(id)
	lock := r.store.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	artist := &model.Artist{}
	if err := readDocument(path, artist); err != nil {
		return err
	}

	if err := mutate(artist); err != nil {
		if errors.Is(err, ErrSkipSave) {
			return nil
		}
		return err
	}
	artist.UpdatedAt = time.Now()

	if err := writeDocument(path, artist); err != nil {
		return err
	}
	return r.store.upsertIndexEntry(artist)
}

// DeleteArtist removes the artist, its albums and its index entry.
func (r *FSArtistRepository) DeleteArtist(ctx context.Context, id string) error {
	path := r.store.artistPath(id)
	lock := r.store.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrNotFound
	}

	// Cascade: drop every album document owned by this artist. Each removal
	// takes the album's document lock so an in-flight UpdateAlbum finishes
	// first instead of resurrecting the album after the cascade.
	entries, err := os.ReadDir(r.store.albumsDir)
	if err != nil {
		return fmt.Errorf("failed to list albums: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		albumPath := filepath.Join(r.store.albumsDir, entry.Name())
		var ref struct {
			ArtistID string `json:"artist_id"`
		}
		if err := readDocument(albumPath, &ref); err != nil {
			continue
		}
		if ref.ArtistID != id {
			continue
		}
		albumLock := r.store.lockFor(albumPath)
		albumLock.Lock()
		err := os.Remove(albumPath)
		albumLock.Unlock()
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove album document: %w", err)
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artist document: %w", err)
	}
	return r.store.removeIndexEntry(id)
}

// ListIndex returns the derived artist summaries.
func (r *FSArtistRepository) ListIndex(ctx context.Context) ([]*model.ArtistSummary, error) {
	var index []*model.ArtistSummary
	if err := readDocument(r.store.indexFile, &index); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []*model.ArtistSummary{}, nil
		}
		return nil, err
	}
	return index, nil
}

// RebuildIndex re-derives the index from the artist documents.
func (r *FSArtistRepository) RebuildIndex(ctx context.Context) error {
	return r.store.rebuildIndex()
}
