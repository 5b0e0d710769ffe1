package audio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Transcoder normalizes fetched media into mp3 using ffmpeg.
type Transcoder struct {
	ffmpegPath string
	bitrate    string
}

// NewTranscoder creates a new Transcoder. An empty ffmpegPath uses the
// ffmpeg binary from PATH.
func NewTranscoder(ffmpegPath, bitrate string) *Transcoder {
	return &Transcoder{ffmpegPath: ffmpegPath, bitrate: bitrate}
}

// ToMP3 extracts the audio stream of inputFile into an mp3 at outputFile.
func (t *Transcoder) ToMP3(inputFile, outputFile string) error {
	cmd := ffmpeg.Input(inputFile).Output(outputFile, ffmpeg.KwArgs{
		"map":      "0:a",
		"c:a":      "libmp3lame",
		"b:a":      t.bitrate,
		"loglevel": "error",
	}).OverWriteOutput().ErrorToStdOut()

	if t.ffmpegPath != "" && t.ffmpegPath != "ffmpeg" {
		cmd.SetFfmpegPath(t.ffmpegPath)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg transcode failed for %s: %w", inputFile, err)
	}
	return nil
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration uses ffprobe to get the duration of an audio file in seconds.
func (t *Transcoder) Duration(inputFile string) (float32, error) {
	ffprobePath := "ffprobe"
	if t.ffmpegPath != "" {
		ffprobePath = strings.Replace(t.ffmpegPath, "ffmpeg", "ffprobe", 1)
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.Command(ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", inputFile, err)
	}

	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s", inputFile)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string %q for %s: %w", probeData.Format.Duration, inputFile, err)
	}

	return float32(duration), nil
}
