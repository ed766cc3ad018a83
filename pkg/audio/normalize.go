package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultFFmpegBinary is the ffmpeg executable name resolved via PATH when
// no explicit binary is configured.
const DefaultFFmpegBinary = "ffmpeg"

// Normalizer converts raw recordings to canonical 16 kHz mono PCM. It shells
// out to ffmpeg and keeps intermediate files in a private temp directory per
// call; segmenting happens afterwards in memory via [Split].
type Normalizer struct {
	ffmpeg  string
	tempDir string
}

// Option is a functional option for configuring a Normalizer.
type Option func(*Normalizer)

// WithFFmpegBinary overrides the ffmpeg executable path.
func WithFFmpegBinary(path string) Option {
	return func(n *Normalizer) {
		n.ffmpeg = path
	}
}

// WithTempDir sets the parent directory for per-call scratch directories.
// Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(n *Normalizer) {
		n.tempDir = dir
	}
}

// NewNormalizer creates a Normalizer with the given options applied.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		ffmpeg:  DefaultFFmpegBinary,
		tempDir: os.TempDir(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize validates the recording's MIME type against the allow-list and
// converts it to canonical PCM. Disallowed types fail with
// [ErrUnsupportedFormat] before any subprocess is launched; ffmpeg failures
// are reported as [ErrConversionFailed] with no partial output.
//
// Recordings that are already canonical WAV are passed through without
// spawning ffmpeg.
func (n *Normalizer) Normalize(ctx context.Context, rec Recording) (PCM, error) {
	ext, err := Extension(rec.MIMEType)
	if err != nil {
		return PCM{}, err
	}

	// Fast path: already a canonical 16 kHz mono PCM WAV.
	if ext == ".wav" {
		if pcm, err := DecodeWAV(rec.Data); err == nil &&
			pcm.SampleRate == SampleRate && pcm.Channels == Channels {
			return pcm, nil
		}
	}

	dir, err := os.MkdirTemp(n.tempDir, "sonara-audio-*")
	if err != nil {
		return PCM{}, fmt.Errorf("audio: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+ext)
	out := filepath.Join(dir, "normalized.wav")
	if err := os.WriteFile(in, rec.Data, 0o600); err != nil {
		return PCM{}, fmt.Errorf("audio: write input file: %w", err)
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", in,
		"-vn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		out,
	}
	cmd := exec.CommandContext(ctx, n.ffmpeg, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return PCM{}, fmt.Errorf("%w: ffmpeg: %v: %s",
			ErrConversionFailed, err, strings.TrimSpace(string(output)))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: read converted file: %v", ErrConversionFailed, err)
	}
	return DecodeWAV(data)
}

// Split divides pcm into consecutive segments of at most segmentDuration,
// preserving chronological order. Inputs at or below the threshold come back
// as a single segment. The split is a pure sample-offset computation — no
// re-encode, no ffmpeg.
func Split(pcm PCM, segmentDuration time.Duration) []PCM {
	if segmentDuration <= 0 || pcm.Duration() <= segmentDuration {
		return []PCM{pcm}
	}

	bytesPerSec := pcm.SampleRate * pcm.Channels * (BitsPerSample / 8)
	segBytes := int(segmentDuration.Seconds() * float64(bytesPerSec))
	// Keep segment boundaries on sample frames.
	frame := pcm.Channels * (BitsPerSample / 8)
	segBytes -= segBytes % frame
	if segBytes <= 0 {
		return []PCM{pcm}
	}

	var segs []PCM
	for off := 0; off < len(pcm.Data); off += segBytes {
		end := off + segBytes
		if end > len(pcm.Data) {
			end = len(pcm.Data)
		}
		segs = append(segs, PCM{
			Data:       pcm.Data[off:end],
			SampleRate: pcm.SampleRate,
			Channels:   pcm.Channels,
		})
	}
	return segs
}
