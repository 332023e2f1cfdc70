package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"call-audit-go/internal/apierr"
)

const errorSnippetLimit = 400

type Role string

const RoleUser Role = "user"

type PartType string

const (
	PartText       PartType = "text"
	PartInputAudio PartType = "input_audio"
)

// Params are the decoding settings of one QA request.
type Params struct {
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
	FrequencyPenalty  float64
	MaxTokens         int
}

// AudioEncoder turns a call recording into base64 16 kHz mono WAV.
type AudioEncoder interface {
	EncodeBase64WAV(ctx context.Context, path string) (string, error)
}

type Client struct {
	URL    string
	Model  string
	APIKey string

	HTTP    *http.Client
	Encoder AudioEncoder
	Limiter *rate.Limiter
	Log     *logrus.Entry
}

func NewClient(url, model, apiKey string, timeout time.Duration, enc AudioEncoder, limiter *rate.Limiter, log *logrus.Entry) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Client{
		URL:     url,
		Model:   model,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
		Encoder: enc,
		Limiter: limiter,
		Log:     log.WithField("component", "qa"),
	}
}

type inputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

type messagePart struct {
	Type       PartType    `json:"type"`
	Text       *string     `json:"text,omitempty"`
	InputAudio *inputAudio `json:"input_audio,omitempty"`
}

type chatMessage struct {
	Role    Role          `json:"role"`
	Content []messagePart `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Temperature         float64       `json:"temperature"`
	TopP                float64       `json:"top_p"`
	RepetitionPenalty   float64       `json:"repetition_penalty"`
	FrequencyPenalty    float64       `json:"frequency_penalty"`
	MaxCompletionTokens int           `json:"max_completion_tokens"`
	MaxTokens           int           `json:"max_tokens"`
	Messages            []chatMessage `json:"messages"`
}

// Ask sends the whole recording plus one instruction as a single user turn.
// A reply the backend could not answer (non-200, bad JSON, empty content)
// yields "" with a nil error; only encoding and transport failures are errors.
func (c *Client) Ask(ctx context.Context, wavPath, prompt string, p Params) (string, error) {
	audio, err := c.Encoder.EncodeBase64WAV(ctx, wavPath)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(c.buildRequest(audio, prompt, p))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	c.Log.Debug("analyzing QA prompt")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read qa response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.Log.WithField("status", resp.StatusCode).
			WithField("body", apierr.Truncate(string(raw), errorSnippetLimit)).
			Error("qa chat error")
		return "", nil
	}

	var comp completionResponse
	if err := json.Unmarshal(raw, &comp); err != nil {
		c.Log.WithField("error", err.Error()).
			WithField("body", apierr.Truncate(string(raw), errorSnippetLimit)).
			Error("qa chat JSON parse error")
		return "", nil
	}
	if len(comp.Choices) == 0 {
		return "", nil
	}
	return decodeContent(comp.Choices[0].Message).Answer(), nil
}

func (c *Client) buildRequest(audio, prompt string, p Params) chatRequest {
	return chatRequest{
		Model:               c.Model,
		Temperature:         p.Temperature,
		TopP:                p.TopP,
		RepetitionPenalty:   p.RepetitionPenalty,
		FrequencyPenalty:    p.FrequencyPenalty,
		MaxCompletionTokens: p.MaxTokens,
		MaxTokens:           p.MaxTokens,
		Messages: []chatMessage{{
			Role: RoleUser,
			Content: []messagePart{
				{Type: PartInputAudio, InputAudio: &inputAudio{Data: audio, Format: "wav"}},
				{Type: PartText, Text: &prompt},
			},
		}},
	}
}
