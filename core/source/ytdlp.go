package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"DiscBox/core/audio"
	"DiscBox/logger"

	"github.com/wader/goutubedl"
)

// Entry is one resolved playlist item (or the single item of a plain URL).
// URL is the reference used to fetch the media later.
type Entry struct {
	Title string
	URL   string
}

// Result is the outcome of fetching and encoding one entry.
type Result struct {
	Title    string  // Title reported by the source at download time
	Filename string  // Stored media file name (relative to the music dir)
	Duration float32 // Seconds, 0 when probing failed
}

// Client resolves and fetches media through yt-dlp.
type Client struct {
	transcoder *audio.Transcoder
}

// NewClient creates a yt-dlp client. An empty ytdlpPath uses the binary
// from PATH.
func NewClient(ytdlpPath string, transcoder *audio.Transcoder) *Client {
	if ytdlpPath != "" {
		goutubedl.Path = ytdlpPath
	}
	return &Client{transcoder: transcoder}
}

// Resolve expands a URL into its entries without downloading anything.
// Playlists are resolved flat, so entries are listed without per-entry
// extraction and a broken entry cannot fail the whole call; anything that is
// not a playlist yields a single entry. Unresolvable playlist items are
// skipped, not fatal.
func (c *Client) Resolve(ctx context.Context, rawURL string) ([]Entry, error) {
	result, err := goutubedl.New(ctx, rawURL, goutubedl.Options{
		Type: goutubedl.TypePlaylist,
	})
	if err != nil {
		single, singleErr := goutubedl.New(ctx, rawURL, goutubedl.Options{
			Type: goutubedl.TypeSingle,
		})
		if singleErr != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", rawURL, singleErr)
		}
		url := single.Info.WebpageURL
		if url == "" {
			url = rawURL
		}
		return []Entry{{Title: single.Info.Title, URL: url}}, nil
	}

	info := result.Info
	entries := make([]Entry, 0, len(info.Entries))
	for _, item := range info.Entries {
		url := item.URL
		if url == "" {
			url = item.WebpageURL
		}
		if url == "" {
			logger.Warn("skipping unresolvable playlist entry",
				logger.String("playlist", rawURL),
				logger.String("title", item.Title))
			continue
		}
		entries = append(entries, Entry{Title: item.Title, URL: url})
	}
	return entries, nil
}

// Fetch downloads the best available audio for sourceURL, encodes it to mp3
// at basePath+".mp3" and returns the source-reported title and the stored
// file name. basePath must not collide with any existing media file; callers
// derive it from a fresh identifier, never from a track id.
func (c *Client) Fetch(ctx context.Context, sourceURL, basePath string) (Result, error) {
	dl, err := goutubedl.New(ctx, sourceURL, goutubedl.Options{
		Type: goutubedl.TypeSingle,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve %s: %w", sourceURL, err)
	}

	stream, err := dl.Download(ctx, "bestaudio")
	if err != nil {
		return Result{}, fmt.Errorf("failed to download %s: %w", sourceURL, err)
	}
	defer stream.Close()

	tmpPath := basePath + ".tmp"
	outPath := basePath + ".mp3"

	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp media file: %w", err)
	}
	if _, err := io.Copy(tmpFile, stream); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to save media stream: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("failed to close temp media file: %w", err)
	}
	defer os.Remove(tmpPath)

	if err := c.transcoder.ToMP3(tmpPath, outPath); err != nil {
		os.Remove(outPath)
		return Result{}, err
	}

	duration, err := c.transcoder.Duration(outPath)
	if err != nil {
		logger.Warn("could not probe duration", logger.String("file", outPath), logger.ErrorField(err))
		duration = 0
	}

	title := dl.Info.Title
	if title == "" {
		title = "Unknown Title"
	}

	return Result{
		Title:    title,
		Filename: filepath.Base(outPath),
		Duration: duration,
	}, nil
}
