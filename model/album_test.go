package model

import "testing"

func TestAlbumTracks(t *testing.T) {
	t.Run("SortTracksIsStable", func(t *testing.T) {
		album := &Album{Tracks: []*Track{
			{ID: "c", TrackNumber: 2},
			{ID: "a", TrackNumber: 1},
			{ID: "b", TrackNumber: 2},
		}}
		album.SortTracks()

		got := []string{album.Tracks[0].ID, album.Tracks[1].ID, album.Tracks[2].ID}
		want := []string{"a", "c", "b"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected order %v, got %v", want, got)
			}
		}
	})

	t.Run("RemoveTrack", func(t *testing.T) {
		album := &Album{Tracks: []*Track{{ID: "a"}, {ID: "b"}}}

		if !album.RemoveTrack("a") {
			t.Fatal("expected RemoveTrack to report removal")
		}
		if album.RemoveTrack("a") {
			t.Fatal("expected second RemoveTrack to be a no-op")
		}
		if len(album.Tracks) != 1 || album.Tracks[0].ID != "b" {
			t.Fatalf("unexpected tracks after removal: %+v", album.Tracks)
		}
	})

	t.Run("TrackByID", func(t *testing.T) {
		album := &Album{Tracks: []*Track{{ID: "a", Title: "One"}}}
		if got := album.TrackByID("a"); got == nil || got.Title != "One" {
			t.Fatalf("expected track One, got %+v", got)
		}
		if got := album.TrackByID("missing"); got != nil {
			t.Fatalf("expected nil for missing id, got %+v", got)
		}
	})

	t.Run("NextTrackNumber", func(t *testing.T) {
		album := &Album{Tracks: []*Track{{ID: "a"}, {ID: "b"}}}
		if n := album.NextTrackNumber(); n != 3 {
			t.Fatalf("expected next track number 3, got %d", n)
		}
	})
}

func TestTrackState(t *testing.T) {
	filename := "abc.mp3"

	t.Run("InFlight", func(t *testing.T) {
		track := &Track{Processing: true}
		if !track.InFlight() {
			t.Fatal("processing track without filename should be in flight")
		}
		track.Filename = &filename
		if track.InFlight() {
			t.Fatal("track with filename should not be in flight")
		}
	})

	t.Run("Terminal", func(t *testing.T) {
		for status, want := range map[TrackStatus]bool{
			StatusInitializing: false,
			StatusWaiting:      false,
			StatusDownloading:  false,
			StatusReady:        true,
			StatusError:        true,
		} {
			track := &Track{Status: status}
			if track.Terminal() != want {
				t.Errorf("Terminal() for %q = %v, want %v", status, track.Terminal(), want)
			}
		}
	})
}
