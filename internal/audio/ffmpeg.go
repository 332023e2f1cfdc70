package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrCorruptAudio is returned for files ffprobe cannot measure or that have no duration.
var ErrCorruptAudio = errors.New("audio file is empty or corrupt")

// Asset is a normalized recording ready for chunking.
type Asset struct {
	Path     string
	Duration float64
}

// Tool wraps the ffmpeg and ffprobe binaries.
type Tool struct {
	FFmpegBin  string
	FFprobeBin string
	Log        *logrus.Entry
}

func NewTool(ffmpeg, ffprobe string, log *logrus.Entry) *Tool {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &Tool{FFmpegBin: ffmpeg, FFprobeBin: ffprobe, Log: log}
}

// Duration returns the media duration in seconds.
func (t *Tool) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.FFprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nw=1:nk=1",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(stderr.String()))
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: parse duration %q: %w", filepath.Base(path), strings.TrimSpace(string(out)), err)
	}
	return d, nil
}

// Normalize converts in to a 16 kHz mono s16 WAV inside workDir.
func (t *Tool) Normalize(ctx context.Context, in, workDir string) (Asset, error) {
	d, err := t.Duration(ctx, in)
	if err != nil || d <= 0 {
		if err == nil {
			err = fmt.Errorf("duration %.3fs", d)
		}
		t.Log.WithField("path", in).WithField("error", err.Error()).Error("audio file is empty or corrupt")
		return Asset{}, fmt.Errorf("%w: %s: %v", ErrCorruptAudio, filepath.Base(in), err)
	}

	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	out := filepath.Join(workDir, base+"_16k_mono.wav")
	if msg, err := runCommand(ctx, t.FFmpegBin,
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-ar", "16000", "-ac", "1", "-sample_fmt", "s16",
		out, "-y",
	); err != nil {
		return Asset{}, fmt.Errorf("normalize %s: %w: %s", filepath.Base(in), err, strings.TrimSpace(string(msg)))
	}

	nd, err := t.Duration(ctx, out)
	if err != nil {
		return Asset{}, err
	}
	if nd <= 0 {
		return Asset{}, fmt.Errorf("%w: %s normalized to zero length", ErrCorruptAudio, filepath.Base(in))
	}
	return Asset{Path: out, Duration: nd}, nil
}

// Trim writes [start, start+length] of in to out as 16 kHz mono s16 WAV.
func (t *Tool) Trim(ctx context.Context, in string, start, length float64, out string) error {
	start = max(0, start)
	length = max(0, length)
	msg, err := runCommand(ctx, t.FFmpegBin,
		"-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", start), "-t", fmt.Sprintf("%.3f", length),
		"-i", in,
		"-ar", "16000", "-ac", "1", "-sample_fmt", "s16",
		out, "-y",
	)
	if err != nil {
		return fmt.Errorf("trim %s at %.3fs: %w: %s", filepath.Base(in), start, err, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Split materializes Plan(asset.Duration, n, buffer) as partN.wav files in dir.
// A chunk that fails to trim is logged and left out.
func (t *Tool) Split(ctx context.Context, asset Asset, n int, buffer float64, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}
	plan := Plan(asset.Duration, n, buffer)
	paths := make([]string, 0, len(plan))
	for _, c := range plan {
		out := filepath.Join(dir, fmt.Sprintf("part%d.wav", c.Index+1))
		if err := t.Trim(ctx, asset.Path, c.Start, c.Length, out); err != nil {
			t.Log.WithField("chunk", c.Index+1).WithField("error", err.Error()).Warn("chunk trim failed, skipping")
			continue
		}
		paths = append(paths, out)
	}
	return paths, nil
}

// EncodeBase64WAV re-encodes path as 16 kHz mono WAV and returns it base64-encoded.
func (t *Tool) EncodeBase64WAV(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}
	cmd := exec.CommandContext(ctx, t.FFmpegBin,
		"-nostdin", "-loglevel", "error",
		"-i", path,
		"-ac", "1", "-ar", "16000", "-f", "wav", "-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("encode %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(stderr.String()))
	}
	return base64.StdEncoding.EncodeToString(stdout.Bytes()), nil
}

// runCommand executes an external binary and captures combined output.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
