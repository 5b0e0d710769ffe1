package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"DiscBox/core/source"
	"DiscBox/logger"
	"DiscBox/model"
	"DiscBox/repository"

	"github.com/google/uuid"
)

// ErrShuttingDown is returned by Submit after Shutdown has started.
var ErrShuttingDown = errors.New("importer is shutting down")

// Resolver expands one URL into its entries without downloading anything.
type Resolver interface {
	Resolve(ctx context.Context, url string) ([]source.Entry, error)
}

// Fetcher downloads and encodes one entry to basePath+".mp3".
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL, basePath string) (source.Result, error)
}

// Supervisor owns every import job: one goroutine per submitted import,
// registered with a cancellable handle so jobs can be listed, canceled and
// waited for on shutdown.
type Supervisor struct {
	albums   repository.AlbumRepository
	resolver Resolver
	fetcher  Fetcher
	musicDir string

	mu          sync.Mutex
	jobs        map[string]*Job
	maxFinished int
	closed      bool
	wg          sync.WaitGroup
}

// defaultMaxFinished bounds how many terminal jobs the registry retains for
// status queries before the oldest are evicted.
const defaultMaxFinished = 100

// NewSupervisor creates a new import supervisor.
func NewSupervisor(albums repository.AlbumRepository, resolver Resolver, fetcher Fetcher, musicDir string) *Supervisor {
	return &Supervisor{
		albums:      albums,
		resolver:    resolver,
		fetcher:     fetcher,
		musicDir:    musicDir,
		jobs:        make(map[string]*Job),
		maxFinished: defaultMaxFinished,
	}
}

// Submit registers an import job for the album and starts it in the
// background. placeholderID is the initializing track the request handler
// already persisted; startNumber is the first track number to assign.
func (s *Supervisor) Submit(albumID, sourceURL, placeholderID string, startNumber int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Status{}, ErrShuttingDown
	}
	s.pruneFinishedLocked()

	job := newJob(albumID, sourceURL, placeholderID, startNumber)
	s.jobs[job.id] = job
	s.wg.Add(1)
	go s.run(job)

	logger.Info("import job submitted",
		logger.String("jobId", job.id),
		logger.String("albumId", albumID),
		logger.String("url", sourceURL))
	return job.Status(), nil
}

// JobStatus returns the snapshot of one job.
func (s *Supervisor) JobStatus(id string) (Status, bool) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return job.Status(), true
}

// Jobs returns snapshots of every known job, newest first.
func (s *Supervisor) Jobs() []Status {
	s.mu.Lock()
	statuses := make([]Status, 0, len(s.jobs))
	for _, job := range s.jobs {
		statuses = append(statuses, job.Status())
	}
	s.mu.Unlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].CreatedAt.After(statuses[j].CreatedAt)
	})
	return statuses
}

// Cancel requests cancellation of one job. Returns false if the job is
// unknown. Canceling an already finished job has no effect.
func (s *Supervisor) Cancel(id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	job.cancel()
	return true
}

// pruneFinishedLocked evicts the oldest terminal jobs once the registry
// holds more than maxFinished of them. Running jobs are never evicted.
// Caller holds s.mu.
func (s *Supervisor) pruneFinishedLocked() {
	finished := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		switch job.Status().State {
		case StateDone, StateFailed, StateCanceled:
			finished = append(finished, job)
		}
	}
	if len(finished) <= s.maxFinished {
		return
	}

	sort.Slice(finished, func(i, j int) bool {
		return finished[i].Status().CreatedAt.Before(finished[j].Status().CreatedAt)
	})
	for _, job := range finished[:len(finished)-s.maxFinished] {
		delete(s.jobs, job.id)
	}
}

// Shutdown stops accepting new jobs, cancels the running ones and waits for
// them to finish or for ctx to expire.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	for _, job := range jobs {
		job.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// queuedItem is one expanded entry awaiting download. The persisted waiting
// tracks are the durable queue; this slice only carries their ids and source
// references through the loop.
type queuedItem struct {
	trackID string
	title   string
	url     string
}

// run drives one job to a terminal state.
func (s *Supervisor) run(job *Job) {
	defer s.wg.Done()
	defer job.cancel()

	job.setRunning()

	entries, err := s.resolver.Resolve(job.ctx, job.sourceURL)
	if err == nil && len(entries) == 0 {
		err = errors.New("no playable entries resolved")
	}
	if err != nil {
		// Resolution failed: clean up the placeholder so no stuck
		// initializing track is left behind.
		s.removePlaceholder(job)
		job.finish(StateFailed, err.Error())
		logger.Error("import resolution failed",
			logger.String("jobId", job.id),
			logger.String("url", job.sourceURL),
			logger.ErrorField(err))
		return
	}

	queue, err := s.expand(job, entries)
	if err != nil {
		job.finish(StateFailed, err.Error())
		logger.Error("import expansion failed",
			logger.String("jobId", job.id),
			logger.String("albumId", job.albumID),
			logger.ErrorField(err))
		return
	}
	job.setTotal(len(queue))

	for i, item := range queue {
		if job.ctx.Err() != nil {
			s.abandonRemaining(job, queue[i:])
			job.finish(StateCanceled, "")
			logger.Warn("import job canceled",
				logger.String("jobId", job.id),
				logger.Int("remaining", len(queue)-i))
			return
		}
		if err := s.runItem(job, item); err != nil {
			// The album document itself is gone; nothing left to write to.
			job.finish(StateFailed, err.Error())
			logger.Warn("import aborted, album vanished",
				logger.String("jobId", job.id),
				logger.String("albumId", job.albumID))
			return
		}
	}

	job.finish(StateDone, "")
	status := job.Status()
	logger.Info("import job finished",
		logger.String("jobId", job.id),
		logger.Int("completed", status.Completed),
		logger.Int("failed", status.Failed))
}

// expand replaces the initializing placeholder with one waiting track per
// resolved entry, numbered from the submitted start value, in one persisted
// batch.
func (s *Supervisor) expand(job *Job, entries []source.Entry) ([]queuedItem, error) {
	queue := make([]queuedItem, 0, len(entries))

	err := s.albums.UpdateAlbum(job.ctx, job.albumID, func(album *model.Album) error {
		album.RemoveTrack(job.placeholderID)

		number := job.startNumber
		for _, entry := range entries {
			title := entry.Title
			if title == "" {
				title = "Unknown Title"
			}
			track := &model.Track{
				ID:          uuid.NewString(),
				Title:       title,
				TrackNumber: number,
				Status:      model.StatusWaiting,
				Processing:  true,
				OriginalURL: entry.URL,
			}
			album.Tracks = append(album.Tracks, track)
			queue = append(queue, queuedItem{trackID: track.ID, title: title, url: entry.URL})
			number++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return queue, nil
}

// runItem downloads one queued entry and records the terminal state on its
// track. A track deleted by the user while the job is in flight is skipped
// silently and never recreated. Only a vanished album is returned as an
// error; a failed download records an error track and the batch continues.
func (s *Supervisor) runItem(job *Job, item queuedItem) error {
	skipped := false
	err := s.albums.UpdateAlbum(job.ctx, job.albumID, func(album *model.Album) error {
		track := album.TrackByID(item.trackID)
		if track == nil {
			skipped = true
			return repository.ErrSkipSave
		}
		track.Status = model.StatusDownloading
		return nil
	})
	if err != nil {
		return err
	}
	if skipped {
		job.itemSkipped()
		logger.Info("skipping deleted track",
			logger.String("jobId", job.id),
			logger.String("trackId", item.trackID))
		return nil
	}

	// Media files are named after a fresh identifier, never the track id,
	// so a re-imported track can never collide with an existing file.
	base := strings.ReplaceAll(uuid.NewString(), "-", "")
	result, fetchErr := s.fetcher.Fetch(job.ctx, item.url, filepath.Join(s.musicDir, base))
	if fetchErr != nil {
		logger.Error("fetch failed",
			logger.String("jobId", job.id),
			logger.String("trackId", item.trackID),
			logger.String("url", item.url),
			logger.ErrorField(fetchErr))
	}

	// The final write must land even when the job context was canceled
	// mid-download, so it runs on its own context.
	skipped = false
	err = s.albums.UpdateAlbum(context.Background(), job.albumID, func(album *model.Album) error {
		track := album.TrackByID(item.trackID)
		if track == nil {
			skipped = true
			return repository.ErrSkipSave
		}
		if fetchErr != nil {
			track.Status = model.StatusError
			track.Processing = false
			job.itemFailed()
			return nil
		}
		filename := result.Filename
		track.Title = result.Title
		track.Filename = &filename
		track.Duration = result.Duration
		track.Status = model.StatusReady
		track.Processing = false
		job.itemCompleted()
		return nil
	})
	if skipped {
		// The track was deleted mid-fetch: nothing owns the downloaded
		// media file anymore, so drop it.
		job.itemSkipped()
		if fetchErr == nil && result.Filename != "" {
			orphan := filepath.Join(s.musicDir, result.Filename)
			if rmErr := os.Remove(orphan); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn("failed to remove orphaned media file",
					logger.String("jobId", job.id),
					logger.String("filename", result.Filename),
					logger.ErrorField(rmErr))
			}
		}
		logger.Info("discarded media for deleted track",
			logger.String("jobId", job.id),
			logger.String("trackId", item.trackID))
	}
	return err
}

// abandonRemaining marks the not-yet-downloaded queue tail as failed so a
// canceled job leaves no track stuck in waiting.
func (s *Supervisor) abandonRemaining(job *Job, rest []queuedItem) {
	err := s.albums.UpdateAlbum(context.Background(), job.albumID, func(album *model.Album) error {
		touched := false
		for _, item := range rest {
			if track := album.TrackByID(item.trackID); track != nil && !track.Terminal() {
				track.Status = model.StatusError
				track.Processing = false
				touched = true
			}
		}
		if !touched {
			return repository.ErrSkipSave
		}
		return nil
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Error("failed to mark abandoned tracks",
			logger.String("jobId", job.id),
			logger.ErrorField(err))
	}
}

// removePlaceholder drops the initializing placeholder, best effort.
func (s *Supervisor) removePlaceholder(job *Job) {
	err := s.albums.UpdateAlbum(context.Background(), job.albumID, func(album *model.Album) error {
		if !album.RemoveTrack(job.placeholderID) {
			return repository.ErrSkipSave
		}
		return nil
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Error("failed to clean up import placeholder",
			logger.String("jobId", job.id),
			logger.String("trackId", job.placeholderID),
			logger.ErrorField(err))
	}
}
