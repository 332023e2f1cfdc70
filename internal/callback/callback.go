package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"call-audit-go/internal/apierr"
	"call-audit-go/internal/types"
)

const errorSnippetLimit = 500

// Client delivers job results. Delivery problems are logged and never
// change the outcome of the job.
type Client struct {
	HTTP *http.Client
	Log  *logrus.Entry
}

func NewClient(timeout time.Duration, log *logrus.Entry) *Client {
	return &Client{
		HTTP: &http.Client{Timeout: timeout},
		Log:  log.WithField("component", "callback"),
	}
}

func (c *Client) Post(ctx context.Context, url string, payload types.ResultPayload, startedAt time.Time) {
	log := c.Log.WithField("url", url).WithField("opportunity_id", payload.OpportunityID)
	defer func() {
		log.WithField("seconds", fmt.Sprintf("%.2f", time.Since(startedAt).Seconds())).Info("Total time")
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		log.WithField("error", err.Error()).Error("callback payload encode failed")
		return
	}
	log.WithField("calls", len(payload.Calls)).Info("transcription ended")
	log.Debug(string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.WithField("error", err.Error()).Error("callback error")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		log.WithField("error", err.Error()).Error("callback error")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		log.WithField("status", resp.StatusCode).Info("callback result")
		return
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetLimit))
	log.WithField("status", resp.StatusCode).
		WithField("body", apierr.Truncate(string(raw), errorSnippetLimit)).
		Error("callback result")
}
