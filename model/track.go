package model

// TrackStatus is the lifecycle state of a track. Import-derived tracks move
// initializing -> waiting -> downloading -> ready | error; ready and error
// are terminal. Directly uploaded tracks are created ready.
type TrackStatus string

const (
	StatusInitializing TrackStatus = "initializing"
	StatusWaiting      TrackStatus = "waiting"
	StatusDownloading  TrackStatus = "downloading"
	StatusReady        TrackStatus = "ready"
	StatusError        TrackStatus = "error"
)

// Track is one track embedded in an album document. Filename is nil until
// the track has a media file on disk. Processing is a presence flag: true
// while an import job for the track is in flight, absent once the track is
// terminal.
type Track struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	TrackNumber int         `json:"track_number"`
	Filename    *string     `json:"filename"`
	Duration    float32     `json:"duration,omitempty"`
	Status      TrackStatus `json:"status"`
	Processing  bool        `json:"processing,omitempty"`
	OriginalURL string      `json:"original_url,omitempty"`
}

// InFlight reports whether the track represents import work not yet complete.
func (t *Track) InFlight() bool {
	return t.Processing && t.Filename == nil
}

// Terminal reports whether the track reached a final state.
func (t *Track) Terminal() bool {
	return t.Status == StatusReady || t.Status == StatusError
}
