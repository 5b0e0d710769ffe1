package model

import "time"

// Artist is one catalog artist, stored as a single JSON document under
// data/artists/<id>.json. Albums reference the artist by id; the artist
// document itself carries no album list.
type Artist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Genre       string    `json:"genre,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ArtistSummary is the denormalized index entry for one artist. The index is
// a derived cache: it can be rebuilt in full from the artist documents at
// any time.
type ArtistSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Genre       string `json:"genre,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	AlbumCount  int    `json:"album_count"`
}

// Summary derives the index entry for the artist.
func (a *Artist) Summary(albumCount int) *ArtistSummary {
	return &ArtistSummary{
		ID:          a.ID,
		Name:        a.Name,
		Genre:       a.Genre,
		Description: a.Description,
		Image:       a.Image,
		AlbumCount:  albumCount,
	}
}
