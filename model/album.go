package model

import (
	"sort"
	"time"
)

// Album is one album document under data/albums/<id>.json. ArtistID is the
// foreign key to the owning artist; tracks are embedded in the document and
// kept sorted ascending by track number.
type Album struct {
	ID         string    `json:"id"`
	ArtistID   string    `json:"artist_id"`
	ArtistName string    `json:"artist_name,omitempty"`
	Title      string    `json:"title"`
	Year       string    `json:"year,omitempty"`
	Type       string    `json:"type,omitempty"` // Album, EP, Single
	CoverImage string    `json:"cover_image,omitempty"`
	Tracks     []*Track  `json:"tracks"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TrackByID returns the track with the given id, or nil.
func (a *Album) TrackByID(id string) *Track {
	for _, t := range a.Tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// RemoveTrack removes the track with the given id and reports whether it was
// present.
func (a *Album) RemoveTrack(id string) bool {
	for i, t := range a.Tracks {
		if t.ID == id {
			a.Tracks = append(a.Tracks[:i], a.Tracks[i+1:]...)
			return true
		}
	}
	return false
}

// SortTracks sorts tracks ascending by track number. The sort is stable:
// track numbers are not required to be unique and ties keep their relative
// order.
func (a *Album) SortTracks() {
	sort.SliceStable(a.Tracks, func(i, j int) bool {
		return a.Tracks[i].TrackNumber < a.Tracks[j].TrackNumber
	})
}

// NextTrackNumber returns the default number for a newly appended track.
func (a *Album) NextTrackNumber() int {
	return len(a.Tracks) + 1
}
