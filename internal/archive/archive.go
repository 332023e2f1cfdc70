// Package archive downloads a ZIP of call recordings and unpacks the audio files.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"call-audit-go/internal/apierr"
)

const errorSnippetLimit = 500

var audioExts = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".flac": true,
	".aac": true, ".ogg": true, ".wma": true,
}

// IsAudio reports whether name has one of the supported audio extensions.
func IsAudio(name string) bool {
	return audioExts[strings.ToLower(filepath.Ext(name))]
}

type Fetcher struct {
	HTTP *http.Client
	Log  *logrus.Entry
}

func NewFetcher(timeout time.Duration, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		HTTP: &http.Client{Timeout: timeout},
		Log:  log.WithField("component", "archive"),
	}
}

// Fetch downloads url into dir/input.zip, extracts it under dir/audios and
// returns the audio files in archive order.
func (f *Fetcher) Fetch(ctx context.Context, url, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	zipPath := filepath.Join(dir, "input.zip")
	if err := f.download(ctx, url, zipPath); err != nil {
		return nil, err
	}

	audioDir := filepath.Join(dir, "audios")
	files, err := extract(zipPath, audioDir)
	if err != nil {
		return nil, err
	}
	f.Log.WithField("files", len(files)).Debug("archive extracted")
	return files, nil
}

func (f *Fetcher) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("archive request: %w", err)
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("download archive: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetLimit))
		return apierr.NewStatusError(resp.StatusCode, body, errorSnippetLimit)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("download archive: %w", err)
	}
	return out.Close()
}

func extract(zipPath, dst string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(dst)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, zf := range zr.File {
		target := filepath.Join(root, zf.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive entry %q escapes extraction dir", zf.Name)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := writeEntry(zf, target); err != nil {
			return nil, err
		}
		if IsAudio(zf.Name) {
			files = append(files, target)
		}
	}
	return files, nil
}

func writeEntry(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", zf.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", zf.Name, err)
	}
	return out.Close()
}

var (
	dateTimePattern = regexp.MustCompile(`(2\d{3})_(\d{2})_(\d{2})_(\d{2})_(\d{2})_(\d{2})`)
	datePattern     = regexp.MustCompile(`(2\d{3})_(\d{2})_(\d{2})`)
)

// CallDate extracts YYYY-MM-DD from a name containing YYYY_MM_DD or
// YYYY_MM_DD_HH_MM_SS, or returns "".
func CallDate(name string) string {
	if m := dateTimePattern.FindStringSubmatch(name); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	if m := datePattern.FindStringSubmatch(name); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	return ""
}

// CallID is the file name without directory and extension.
func CallID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
