package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

// Config holds every runtime setting of the service. Values come from the
// process environment, optionally seeded from a .env file.
type Config struct {
	Port string

	// STT backend
	TranscribeURL     string
	ModelID           string
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
	FrequencyPenalty  float64
	Retries           int

	// QA backend
	ChatURL     string
	ChatModelID string
	APIKey      string
	PromptsFile string

	// Chunking
	NChunks   int
	BufferSec float64

	// Timeouts and retry pacing
	HTTPTimeout    time.Duration
	CallTimeout    time.Duration
	BackoffBase    time.Duration
	ArchiveTimeout time.Duration
	BackendRPS     float64

	// Health gate
	HealthURL            string
	HealthMethod         string
	HealthExpectedStatus int
	HealthTimeout        time.Duration
	HealthBackoff        time.Duration
	HealthSchedule       string

	// Job policy
	MaxAudioSeconds float64
	MaxJobAttempts  int

	ReportDir  string
	FFmpegBin  string
	FFprobeBin string
}

// Load reads .env (if present) and the environment into a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load() // loads .env
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using lookup for every key.
func FromEnv(lookup func(string) string) (*Config, error) {
	r := reader{lookup: lookup}
	cfg := &Config{
		Port: r.str("PORT", "8080"),

		TranscribeURL:     r.str("TRANSCRIBE_URL", "http://localhost:8000/v1/audio/transcriptions"),
		ModelID:           r.str("MODEL_ID", "mistralai/Voxtral-Small-24B-2507"),
		Temperature:       r.float("TEMPERATURE", 0.0),
		TopP:              r.float("TOP_P", 0.1),
		RepetitionPenalty: r.float("REPETITIONS_PENALTY", 1.15),
		FrequencyPenalty:  r.float("FREQUENCY_PENALTY", 0.4),
		Retries:           r.int("RETRIES", 2),

		ChatURL:     r.str("CHAT_API_URL", "http://localhost:8000/v1/chat/completions"),
		APIKey:      r.str("API_KEY", ""),
		PromptsFile: r.str("PROMPTS_FILE", ""),

		NChunks:   r.int("N_CHUNKS", 4),
		BufferSec: r.float("BUFFER_SEC", 2.0),

		HTTPTimeout:    r.seconds("HTTP_TIMEOUT_SEC", 300),
		CallTimeout:    r.seconds("CALL_TIMEOUT_SEC", 300),
		BackoffBase:    r.seconds("BACKOFF_BASE_SEC", 1),
		ArchiveTimeout: r.seconds("ARCHIVE_TIMEOUT_SEC", 120),
		BackendRPS:     r.float("BACKEND_RPS", 0),

		HealthURL:            r.str("HEALTH_CHECK_URL", "http://localhost:8000/health"),
		HealthMethod:         strings.ToUpper(r.str("HEALTH_CHECK_METHOD", "GET")),
		HealthExpectedStatus: r.int("HEALTH_CHECK_EXPECTED_STATUS", 200),
		HealthTimeout:        r.seconds("HEALTH_CHECK_TIMEOUT_SEC", 5),
		HealthBackoff:        r.seconds("HEALTH_BACKOFF_SEC", 420),
		HealthSchedule:       r.str("HEALTH_CHECK_SCHEDULE", "@every 1m"),

		MaxAudioSeconds: r.float("MAX_AUDIO_SEC", 2400),
		MaxJobAttempts:  r.int("MAX_JOB_ATTEMPTS", 0),

		ReportDir:  r.str("REPORT_DIR", ""),
		FFmpegBin:  r.str("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin: r.str("FFPROBE_BIN", "ffprobe"),
	}
	cfg.ChatModelID = r.str("CHAT_MODEL_ID", cfg.ModelID)

	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	for key, v := range map[string]string{
		"TRANSCRIBE_URL":   c.TranscribeURL,
		"CHAT_API_URL":     c.ChatURL,
		"HEALTH_CHECK_URL": c.HealthURL,
	} {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			errs = append(errs, fmt.Errorf("%s must be an http(s) URL, got %q", key, v))
		}
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("RETRIES must be >= 0"))
	}
	if c.BufferSec < 0 {
		errs = append(errs, fmt.Errorf("BUFFER_SEC must be >= 0"))
	}
	if c.MaxAudioSeconds <= 0 {
		errs = append(errs, fmt.Errorf("MAX_AUDIO_SEC must be > 0"))
	}
	if c.MaxJobAttempts < 0 {
		errs = append(errs, fmt.Errorf("MAX_JOB_ATTEMPTS must be >= 0"))
	}
	return errors.Join(errs...)
}

// STTAttempts is the number of immediate attempts the STT client makes per chunk.
func (c *Config) STTAttempts() int {
	if c.Retries < 1 {
		return 1
	}
	return c.Retries
}

// BackendLimiter paces outbound STT and QA requests. BACKEND_RPS <= 0 means unlimited.
func (c *Config) BackendLimiter() *rate.Limiter {
	if c.BackendRPS <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(c.BackendRPS), 1)
}

type reader struct {
	lookup func(string) string
	errs   []error
}

func (r *reader) str(k, def string) string {
	if v := strings.TrimSpace(r.lookup(k)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(k string, def int) int {
	v := strings.TrimSpace(r.lookup(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return n
}

func (r *reader) float(k string, def float64) float64 {
	v := strings.TrimSpace(r.lookup(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return f
}

func (r *reader) seconds(k string, def float64) time.Duration {
	return time.Duration(r.float(k, def) * float64(time.Second))
}
