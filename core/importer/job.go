package importer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of an import job:
// submitted -> running -> done | failed | canceled.
type State string

const (
	StateSubmitted State = "submitted"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Status is a point-in-time snapshot of a job, safe to hand to callers.
type Status struct {
	ID         string     `json:"id"`
	AlbumID    string     `json:"album_id"`
	SourceURL  string     `json:"source_url"`
	State      State      `json:"state"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Job tracks one import request from submission to a terminal state. All
// mutable fields are guarded; the orchestrator goroutine is the only writer.
type Job struct {
	id            string
	albumID       string
	sourceURL     string
	placeholderID string
	startNumber   int

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	total      int
	completed  int
	failed     int
	skipped    int
	errMsg     string
	createdAt  time.Time
	finishedAt *time.Time
}

func newJob(albumID, sourceURL, placeholderID string, startNumber int) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	return &Job{
		id:            uuid.NewString(),
		albumID:       albumID,
		sourceURL:     sourceURL,
		placeholderID: placeholderID,
		startNumber:   startNumber,
		ctx:           ctx,
		cancel:        cancel,
		state:         StateSubmitted,
		createdAt:     time.Now(),
	}
}

// Status returns a snapshot of the job.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Status{
		ID:         j.id,
		AlbumID:    j.albumID,
		SourceURL:  j.sourceURL,
		State:      j.state,
		Total:      j.total,
		Completed:  j.completed,
		Failed:     j.failed,
		Skipped:    j.skipped,
		Error:      j.errMsg,
		CreatedAt:  j.createdAt,
		FinishedAt: j.finishedAt,
	}
}

func (j *Job) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateRunning
}

func (j *Job) setTotal(total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.total = total
}

func (j *Job) itemCompleted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.completed++
}

func (j *Job) itemFailed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failed++
}

// itemSkipped counts an item whose track was deleted while the job was in
// flight, so completed+failed+skipped still accounts for every queued item.
func (j *Job) itemSkipped() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.skipped++
}

// finish moves the job to a terminal state.
func (j *Job) finish(state State, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
	j.errMsg = errMsg
	now := time.Now()
	j.finishedAt = &now
}
