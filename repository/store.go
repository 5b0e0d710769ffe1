package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"DiscBox/model"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("record not found")

// ErrSkipSave may be returned from an Update mutate function to abort the
// update without writing. Used when the record a mutation targets has
// vanished and the write should be a silent no-op.
var ErrSkipSave = errors.New("skip save")

// Store is the shared document store for the catalog: one JSON document per
// artist, one per album, plus the derived artist index. Every mutation goes
// through a per-document lock so concurrent writers to the same id are
// applied in order instead of overwriting each other.
type Store struct {
	artistsDir string
	albumsDir  string
	indexFile  string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore opens (and if necessary creates) the data directory layout.
func NewStore(dataDir string) (*Store, error) {
	s := &Store{
		artistsDir: filepath.Join(dataDir, "artists"),
		albumsDir:  filepath.Join(dataDir, "albums"),
		indexFile:  filepath.Join(dataDir, "index.json"),
		locks:      make(map[string]*sync.Mutex),
	}

	for _, dir := range []string{dataDir, s.artistsDir, s.albumsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(s.indexFile); os.IsNotExist(err) {
		if err := writeDocument(s.indexFile, []*model.ArtistSummary{}); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ArtistsDir returns the directory holding artist documents.
func (s *Store) ArtistsDir() string {
	return s.artistsDir
}

// lockFor returns the mutex serializing writes to one document path. Locks
// are allocated lazily and never freed; the document population is small.
func (s *Store) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

func (s *Store) artistPath(id string) string {
	return filepath.Join(s.artistsDir, id+".json")
}

func (s *Store) albumPath(id string) string {
	return filepath.Join(s.albumsDir, id+".json")
}

// readDocument loads one JSON document into v.
func readDocument(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// writeDocument saves v as one JSON document. The write goes to a temp file
// in the same directory followed by a rename, so readers never observe a
// partially written document.
func writeDocument(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// countAlbums counts album documents owned by the artist.
func (s *Store) countAlbums(artistID string) (int, error) {
	entries, err := os.ReadDir(s.albumsDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list albums: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var ref struct {
			ArtistID string `json:"artist_id"`
		}
		if err := readDocument(filepath.Join(s.albumsDir, entry.Name()), &ref); err != nil {
			continue
		}
		if ref.ArtistID == artistID {
			count++
		}
	}
	return count, nil
}

// upsertIndexEntry recomputes one artist's index entry and writes the index.
func (s *Store) upsertIndexEntry(artist *model.Artist) error {
	count, err := s.countAlbums(artist.ID)
	if err != nil {
		return err
	}
	summary := artist.Summary(count)

	lock := s.lockFor(s.indexFile)
	lock.Lock()
	defer lock.Unlock()

	var index []*model.ArtistSummary
	if err := readDocument(s.indexFile, &index); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	found := false
	for i, item := range index {
		if item.ID == summary.ID {
			index[i] = summary
			found = true
			break
		}
	}
	if !found {
		index = append(index, summary)
	}

	return writeDocument(s.indexFile, index)
}

// removeIndexEntry drops one artist from the index.
func (s *Store) removeIndexEntry(artistID string) error {
	lock := s.lockFor(s.indexFile)
	lock.Lock()
	defer lock.Unlock()

	var index []*model.ArtistSummary
	if err := readDocument(s.indexFile, &index); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	kept := index[:0]
	for _, item := range index {
		if item.ID != artistID {
			kept = append(kept, item)
		}
	}

	return writeDocument(s.indexFile, kept)
}

// rebuildIndex re-derives the whole index from the artist documents.
func (s *Store) rebuildIndex() error {
	entries, err := os.ReadDir(s.artistsDir)
	if err != nil {
		return fmt.Errorf("failed to list artists: %w", err)
	}

	index := []*model.ArtistSummary{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var artist model.Artist
		if err := readDocument(filepath.Join(s.artistsDir, entry.Name()), &artist); err != nil {
			continue
		}
		count, err := s.countAlbums(artist.ID)
		if err != nil {
			return err
		}
		index = append(index, artist.Summary(count))
	}

	lock := s.lockFor(s.indexFile)
	lock.Lock()
	defer lock.Unlock()
	return writeDocument(s.indexFile, index)
}
