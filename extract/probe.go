// Package extract invokes the external probing and thumbnailing tools
// against video files and validates their output.
package extract

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"

	"github.com/erikbos/flux-server/database/model"
)

// Extractor is the tool-invocation surface the index builder depends
// on. Tests substitute a stub.
type Extractor interface {
	// Probe returns the validated metadata of a video file, or nil if
	// the file is not a probeable video.
	Probe(ctx context.Context, path string) *Metadata
	// Thumbnail writes a single still frame of src to dst, taken at
	// the given offset into the video.
	Thumbnail(ctx context.Context, src, dst string, seek time.Duration) error
}

// Options holds configuration options.
type Options struct {
	FFprobePath string
	FFmpegPath  string
	// Timeout bounds a single tool invocation.
	Timeout time.Duration
}

// Tools runs ffprobe and ffmpeg.
type Tools struct {
	ffprobePath string
	ffmpegPath  string
	timeout     time.Duration
}

func New(o *Options) *Tools {
	timeout := o.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Tools{
		ffprobePath: o.FFprobePath,
		ffmpegPath:  o.FFmpegPath,
		timeout:     timeout,
	}
}

// Metadata is the validated probe result of one video file.
type Metadata struct {
	Size           string
	Duration       float64
	Streams        int
	FormatName     string
	FormatLongName string
	BitRate        string
	// rawDuration preserves the prober's own rendering.
	rawDuration string
}

// Filtered returns the subset of the probe document that is persisted
// per track.
func (m *Metadata) Filtered() model.TrackMeta {
	return model.TrackMeta{
		Duration:       m.rawDuration,
		FormatName:     m.FormatName,
		FormatLongName: m.FormatLongName,
		BitRate:        m.BitRate,
		Size:           m.Size,
	}
}

// FilteredJSON returns Filtered as the JSON blob stored on a track.
func (m *Metadata) FilteredJSON() string {
	data, err := json.Marshal(m.Filtered())
	if err != nil {
		return "{}"
	}
	return string(data)
}

type probeOutput struct {
	Format probeFormat `json:"format"`
}

type probeFormat struct {
	Size           string `json:"size"`
	Duration       string `json:"duration"`
	NbStreams      int    `json:"nb_streams"`
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	BitRate        string `json:"bit_rate"`
}

// Probe invokes ffprobe on path. Any failure, a non-zero exit, a
// malformed document or missing required fields, yields nil. A nil
// result means "not a valid video file", it is not an error.
func (t *Tools) Probe(ctx context.Context, path string) *Metadata {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path)
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	return parseProbeOutput(out)
}

// parseProbeOutput validates a raw ffprobe document. The document must
// carry format.size, a parseable format.duration and an integer
// format.nb_streams of at least 1.
func parseProbeOutput(out []byte) *Metadata {
	var doc probeOutput
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil
	}
	f := doc.Format
	if f.Size == "" || f.Duration == "" || f.NbStreams < 1 {
		return nil
	}
	duration, err := strconv.ParseFloat(f.Duration, 64)
	if err != nil {
		return nil
	}
	return &Metadata{
		Size:           f.Size,
		Duration:       duration,
		Streams:        f.NbStreams,
		FormatName:     f.FormatName,
		FormatLongName: f.FormatLongName,
		BitRate:        f.BitRate,
		rawDuration:    f.Duration,
	}
}

// ThumbnailSeek computes the default still-frame offset, 10% into the
// probed duration.
func (m *Metadata) ThumbnailSeek() time.Duration {
	return time.Duration(m.Duration/10) * time.Second
}
