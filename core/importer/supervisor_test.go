package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"DiscBox/core/source"
	"DiscBox/model"
	"DiscBox/repository"

	"github.com/google/uuid"
)

type fakeResolver struct {
	entries []source.Entry
	err     error
}

func (f *fakeResolver) Resolve(ctx context.Context, url string) ([]source.Entry, error) {
	return f.entries, f.err
}

type fakeFetcher struct {
	mu        sync.Mutex
	errs      map[string]error // per-URL fetch failures
	onFetch   func(url string) // called before returning, outside any lock
	block     chan struct{}    // when set, Fetch waits for this or ctx
	writeFile bool             // when set, Fetch writes basePath+".mp3"
	fetched   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceURL, basePath string) (source.Result, error) {
	if f.onFetch != nil {
		f.onFetch(sourceURL)
	}
	if f.block != nil {
		select {
		case <-ctx.Done():
			return source.Result{}, ctx.Err()
		case <-f.block:
		}
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, sourceURL)
	err := f.errs[sourceURL]
	f.mu.Unlock()

	if err != nil {
		return source.Result{}, err
	}
	if f.writeFile {
		if err := os.WriteFile(basePath+".mp3", []byte("audio"), 0644); err != nil {
			return source.Result{}, err
		}
	}
	return source.Result{
		Title:    "Resolved " + sourceURL,
		Filename: filepath.Base(basePath) + ".mp3",
		Duration: 180,
	}, nil
}

type testEnv struct {
	albums     *repository.FSAlbumRepository
	supervisor *Supervisor
	album      *model.Album
	musicDir   string
}

func newTestEnv(t *testing.T, resolver Resolver, fetcher Fetcher) *testEnv {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	store, err := repository.NewStore(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	artists := repository.NewFSArtistRepository(store)
	albums := repository.NewFSAlbumRepository(store)

	artist := &model.Artist{ID: uuid.NewString(), Name: "Artist"}
	if err := artists.CreateArtist(ctx, artist); err != nil {
		t.Fatalf("failed to create artist: %v", err)
	}
	album := &model.Album{ID: uuid.NewString(), ArtistID: artist.ID, Title: "Album"}
	if err := albums.CreateAlbum(ctx, album); err != nil {
		t.Fatalf("failed to create album: %v", err)
	}

	musicDir := filepath.Join(dir, "music")
	if err := os.MkdirAll(musicDir, 0755); err != nil {
		t.Fatalf("failed to create music dir: %v", err)
	}

	return &testEnv{
		albums:     albums,
		supervisor: NewSupervisor(albums, resolver, fetcher, musicDir),
		album:      album,
		musicDir:   musicDir,
	}
}

// addPlaceholder persists the initializing track the request handler would
// have written before submitting.
func (e *testEnv) addPlaceholder(t *testing.T, number int) string {
	t.Helper()
	id := uuid.NewString()
	err := e.albums.UpdateAlbum(context.Background(), e.album.ID, func(a *model.Album) error {
		a.Tracks = append(a.Tracks, &model.Track{
			ID:          id,
			Title:       "Initializing Import...",
			TrackNumber: number,
			Status:      model.StatusInitializing,
			Processing:  true,
		})
		return nil
	})
	if err != nil {
		t.Fatalf("failed to add placeholder: %v", err)
	}
	return id
}

func waitForJob(t *testing.T, s *Supervisor, id string) Status {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		status, ok := s.JobStatus(id)
		if !ok {
			t.Fatalf("job %s unknown", id)
		}
		switch status.State {
		case StateDone, StateFailed, StateCanceled:
			return status
		}
		select {
		case <-deadline:
			t.Fatalf("job %s did not finish, state %s", id, status.State)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (e *testEnv) loadAlbum(t *testing.T) *model.Album {
	t.Helper()
	album, err := e.albums.GetAlbumByID(context.Background(), e.album.ID)
	if err != nil {
		t.Fatalf("failed to load album: %v", err)
	}
	return album
}

func TestImportExpandsPlaylist(t *testing.T) {
	resolver := &fakeResolver{entries: []source.Entry{
		{Title: "One", URL: "u1"},
		{Title: "Two", URL: "u2"},
		{Title: "Three", URL: "u3"},
	}}
	fetcher := &fakeFetcher{}
	env := newTestEnv(t, resolver, fetcher)

	placeholderID := env.addPlaceholder(t, 1)
	status, err := env.supervisor.Submit(env.album.ID, "playlist-url", placeholderID, 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	final := waitForJob(t, env.supervisor, status.ID)

	if final.State != StateDone {
		t.Fatalf("expected done, got %s (%s)", final.State, final.Error)
	}
	if final.Total != 3 || final.Completed != 3 || final.Failed != 0 {
		t.Fatalf("unexpected counters: %+v", final)
	}

	album := env.loadAlbum(t)
	if len(album.Tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(album.Tracks))
	}
	for i, track := range album.Tracks {
		if track.TrackNumber != i+1 {
			t.Errorf("track %d has number %d", i, track.TrackNumber)
		}
		if track.Status != model.StatusReady {
			t.Errorf("track %d not ready: %s", i, track.Status)
		}
		if track.Processing {
			t.Errorf("track %d still flagged processing", i)
		}
		if track.Filename == nil {
			t.Errorf("track %d has no filename", i)
		}
		if track.ID == placeholderID {
			t.Errorf("placeholder survived expansion")
		}
	}
	// Downloads happen strictly in source order.
	want := []string{"u1", "u2", "u3"}
	for i := range want {
		if fetcher.fetched[i] != want[i] {
			t.Fatalf("expected fetch order %v, got %v", want, fetcher.fetched)
		}
	}
}

func TestImportSingleItemFailureDoesNotHaltBatch(t *testing.T) {
	resolver := &fakeResolver{entries: []source.Entry{
		{Title: "One", URL: "u1"},
		{Title: "Two", URL: "u2"},
		{Title: "Three", URL: "u3"},
	}}
	fetcher := &fakeFetcher{errs: map[string]error{"u2": errors.New("extraction failed")}}
	env := newTestEnv(t, resolver, fetcher)

	placeholderID := env.addPlaceholder(t, 1)
	status, _ := env.supervisor.Submit(env.album.ID, "playlist-url", placeholderID, 1)
	final := waitForJob(t, env.supervisor, status.ID)

	if final.State != StateDone {
		t.Fatalf("expected done, got %s", final.State)
	}
	if final.Completed != 2 || final.Failed != 1 {
		t.Fatalf("unexpected counters: %+v", final)
	}

	album := env.loadAlbum(t)
	if len(album.Tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(album.Tracks))
	}
	for _, track := range album.Tracks {
		if !track.Terminal() {
			t.Errorf("track %s not terminal: %s", track.ID, track.Status)
		}
		if track.Processing {
			t.Errorf("track %s still flagged processing", track.ID)
		}
	}
	failed := album.Tracks[1]
	if failed.Status != model.StatusError || failed.Filename != nil {
		t.Fatalf("expected track 2 in error state without filename: %+v", failed)
	}
}

func TestImportResolutionFailureCleansUpPlaceholder(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("unsupported url")}
	env := newTestEnv(t, resolver, &fakeFetcher{})

	placeholderID := env.addPlaceholder(t, 1)
	status, _ := env.supervisor.Submit(env.album.ID, "bad-url", placeholderID, 1)
	final := waitForJob(t, env.supervisor, status.ID)

	if final.State != StateFailed {
		t.Fatalf("expected failed, got %s", final.State)
	}
	if album := env.loadAlbum(t); len(album.Tracks) != 0 {
		t.Fatalf("expected placeholder cleanup, got %+v", album.Tracks)
	}
}

func TestImportZeroEntriesFails(t *testing.T) {
	resolver := &fakeResolver{entries: []source.Entry{}}
	env := newTestEnv(t, resolver, &fakeFetcher{})

	placeholderID := env.addPlaceholder(t, 1)
	status, _ := env.supervisor.Submit(env.album.ID, "empty-url", placeholderID, 1)
	final := waitForJob(t, env.supervisor, status.ID)

	if final.State != StateFailed {
		t.Fatalf("expected failed, got %s", final.State)
	}
	if album := env.loadAlbum(t); len(album.Tracks) != 0 {
		t.Fatalf("expected placeholder cleanup, got %+v", album.Tracks)
	}
}

func TestImportDeletedTrackDoesNotReappear(t *testing.T) {
	resolver := &fakeResolver{entries: []source.Entry{
		{Title: "One", URL: "u1"},
		{Title: "Two", URL: "u2"},
	}}
	fetcher := &fakeFetcher{}
	env := newTestEnv(t, resolver, fetcher)

	// Delete the second waiting track while the first one downloads.
	fetcher.onFetch = func(url string) {
		if url != "u1" {
			return
		}
		err := env.albums.UpdateAlbum(context.Background(), env.album.ID, func(a *model.Album) error {
			for _, track := range a.Tracks {
				if track.OriginalURL == "u2" {
					a.RemoveTrack(track.ID)
					break
				}
			}
			return nil
		})
		if err != nil {
			t.Errorf("failed to delete track: %v", err)
		}
	}

	placeholderID := env.addPlaceholder(t, 1)
	status, _ := env.supervisor.Submit(env.album.ID, "playlist-url", placeholderID, 1)
	final := waitForJob(t, env.supervisor, status.ID)

	if final.State != StateDone {
		t.Fatalf("expected done, got %s", final.State)
	}
	if final.Skipped != 1 || final.Completed+final.Failed+final.Skipped != final.Total {
		t.Fatalf("counters do not account for the skipped item: %+v", final)
	}
	album := env.loadAlbum(t)
	if len(album.Tracks) != 1 {
		t.Fatalf("deleted track reappeared: %+v", album.Tracks)
	}
	if album.Tracks[0].OriginalURL != "u1" || album.Tracks[0].Status != model.StatusReady {
		t.Fatalf("unexpected surviving track: %+v", album.Tracks[0])
	}
}

func TestImportDeletedMidFetchRemovesMediaFile(t *testing.T) {
	resolver := &fakeResolver{entries: []source.Entry{
		{Title: "One", URL: "u1"},
		{Title: "Two", URL: "u2"},
	}}
	fetcher := &fakeFetcher{writeFile: true}
	env := newTestEnv(t, resolver, fetcher)

	// Delete the track while its own download is in progress, so the media
	// file exists by the time the final write finds the track gone.
	fetcher.onFetch = func(url string) {
		if url != "u2" {
			return
		}
		err := env.albums.UpdateAlbum(context.Background(), env.album.ID, func(a *model.Album) error {
			for _, track := range a.Tracks {
				if track.OriginalURL == "u2" {
					a.RemoveTrack(track.ID)
					break
				}
			}
			return nil
		})
		if err != nil {
			t.Errorf("failed to delete track: %v", err)
		}
	}

	placeholderID := env.addPlaceholder(t, 1)
	status, _ := env.supervisor.Submit(env.album.ID, "playlist-url", placeholderID, 1)
	final := waitForJob(t, env.supervisor, status.ID)

	if final.State != StateDone {
		t.Fatalf("expected done, got %s", final.State)
	}
	if final.Completed != 1 || final.Skipped != 1 {
		t.Fatalf("unexpected counters: %+v", final)
	}

	// Only the surviving track's media file may remain.
	files, err := os.ReadDir(env.musicDir)
	if err != nil {
		t.Fatalf("failed to list music dir: %v", err)
	}
	if len(files) != 1 {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name())
		}
		t.Fatalf("expected 1 media file, got %v", names)
	}
	album := env.loadAlbum(t)
	if len(album.Tracks) != 1 || album.Tracks[0].Filename == nil {
		t.Fatalf("unexpected surviving track: %+v", album.Tracks)
	}
	if *album.Tracks[0].Filename != files[0].Name() {
		t.Fatalf("remaining file %s does not belong to the surviving track %s",
			files[0].Name(), *album.Tracks[0].Filename)
	}
}

func TestFinishedJobsArePruned(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("unsupported url")}
	env := newTestEnv(t, resolver, &fakeFetcher{})
	env.supervisor.maxFinished = 1

	var ids []string
	for i := 0; i < 3; i++ {
		status, err := env.supervisor.Submit(env.album.ID, "bad-url", uuid.NewString(), 1)
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		waitForJob(t, env.supervisor, status.ID)
		ids = append(ids, status.ID)
	}

	if _, ok := env.supervisor.JobStatus(ids[0]); ok {
		t.Fatal("oldest finished job was not evicted")
	}
	if _, ok := env.supervisor.JobStatus(ids[2]); !ok {
		t.Fatal("newest job missing from the registry")
	}
	if got := len(env.supervisor.Jobs()); got != 2 {
		t.Fatalf("expected 2 retained jobs, got %d", got)
	}
}

func TestImportCancelMarksRemainingTracks(t *testing.T) {
	resolver := &fakeResolver{entries: []source.Entry{
		{Title: "One", URL: "u1"},
		{Title: "Two", URL: "u2"},
		{Title: "Three", URL: "u3"},
	}}
	fetcher := &fakeFetcher{block: make(chan struct{})}
	env := newTestEnv(t, resolver, fetcher)

	started := make(chan struct{}, 3)
	fetcher.onFetch = func(url string) { started <- struct{}{} }

	placeholderID := env.addPlaceholder(t, 1)
	status, _ := env.supervisor.Submit(env.album.ID, "playlist-url", placeholderID, 1)

	<-started // first fetch is underway
	if !env.supervisor.Cancel(status.ID) {
		t.Fatal("cancel reported unknown job")
	}

	final := waitForJob(t, env.supervisor, status.ID)
	if final.State != StateCanceled {
		t.Fatalf("expected canceled, got %s", final.State)
	}

	album := env.loadAlbum(t)
	if len(album.Tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(album.Tracks))
	}
	for _, track := range album.Tracks {
		if !track.Terminal() {
			t.Errorf("track %s left stuck in %s", track.ID, track.Status)
		}
		if track.Processing {
			t.Errorf("track %s still flagged processing", track.ID)
		}
	}
}

func TestSubmitAfterShutdownFails(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{}, &fakeFetcher{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := env.supervisor.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if _, err := env.supervisor.Submit(env.album.ID, "url", "placeholder", 1); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestReaderNeverSeesProcessingWithFilename(t *testing.T) {
	resolver := &fakeResolver{entries: []source.Entry{
		{Title: "One", URL: "u1"},
		{Title: "Two", URL: "u2"},
	}}
	fetcher := &fakeFetcher{}
	env := newTestEnv(t, resolver, fetcher)

	// Concurrent reader checking the invariant on every observable state.
	stop := make(chan struct{})
	violations := make(chan string, 1)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			album, err := env.albums.GetAlbumByID(context.Background(), env.album.ID)
			if err != nil {
				continue
			}
			for _, track := range album.Tracks {
				if track.Processing && track.Filename != nil {
					select {
					case violations <- track.ID:
					default:
					}
				}
			}
		}
	}()

	placeholderID := env.addPlaceholder(t, 1)
	status, _ := env.supervisor.Submit(env.album.ID, "playlist-url", placeholderID, 1)
	waitForJob(t, env.supervisor, status.ID)
	close(stop)

	select {
	case id := <-violations:
		t.Fatalf("reader observed processing track %s with a filename", id)
	default:
	}
}
