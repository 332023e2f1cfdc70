package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"call-audit-go/internal/apierr"
)

const errorSnippetLimit = 500

// Params are the decoding settings sent with every chunk of a job.
type Params struct {
	Model             string
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
	FrequencyPenalty  float64
}

type Segment struct {
	Text string `json:"text"`
}

// Response is the subset of the STT reply we read.
type Response struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

type Client struct {
	URL      string
	Params   Params
	Attempts int

	HTTP    *http.Client
	Limiter *rate.Limiter
	Log     *logrus.Entry
}

func NewClient(url string, p Params, attempts int, timeout time.Duration, limiter *rate.Limiter, log *logrus.Entry) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Client{
		URL:      url,
		Params:   p,
		Attempts: attempts,
		HTTP:     &http.Client{Timeout: timeout},
		Limiter:  limiter,
		Log:      log.WithField("component", "transcription"),
	}
}

// Transcribe uploads one WAV chunk. Attempts are made back to back with no
// sleep; the error of the final attempt is returned when none succeed.
func (c *Client) Transcribe(ctx context.Context, wavPath string) (Response, error) {
	attempts := max(1, c.Attempts)
	n := 0
	op := func() (Response, error) {
		n++
		res, err := c.post(ctx, wavPath)
		if err != nil {
			if ctx.Err() != nil {
				return res, backoff.Permanent(err)
			}
			c.Log.WithField("attempt", fmt.Sprintf("%d/%d", n, attempts)).
				WithField("file", filepath.Base(wavPath)).
				WithField("error", err.Error()).
				Debug("stt attempt failed")
		}
		return res, err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(attempts-1)), ctx)
	return backoff.RetryWithData(op, b)
}

func (c *Client) post(ctx context.Context, wavPath string) (Response, error) {
	body, contentType, err := c.buildForm(wavPath)
	if err != nil {
		return Response{}, backoff.Permanent(err)
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, body)
	if err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read stt response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return Response{}, apierr.NewStatusError(resp.StatusCode, raw, errorSnippetLimit)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("decode stt response: %w", err)
	}
	return out, nil
}

func (c *Client) buildForm(wavPath string) (io.Reader, string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, "", fmt.Errorf("open chunk: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := []struct{ k, v string }{
		{"model", c.Params.Model},
		{"temperature", formatFloat(c.Params.Temperature)},
		{"top_p", formatFloat(c.Params.TopP)},
		{"response_format", "json"},
		{"repetition_penalty", formatFloat(c.Params.RepetitionPenalty)},
		{"frequency_penalty", formatFloat(c.Params.FrequencyPenalty)},
	}
	for _, fld := range fields {
		if err := w.WriteField(fld.k, fld.v); err != nil {
			return nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(wavPath)))
	h.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy chunk: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ExtractText returns the top-level text, or the non-empty segment texts
// joined by spaces, with whitespace runs collapsed.
func ExtractText(r Response) string {
	t := strings.TrimSpace(r.Text)
	if t == "" {
		parts := make([]string, 0, len(r.Segments))
		for _, s := range r.Segments {
			if st := strings.TrimSpace(s.Text); st != "" {
				parts = append(parts, st)
			}
		}
		t = strings.Join(parts, " ")
	}
	return strings.Join(strings.Fields(t), " ")
}
