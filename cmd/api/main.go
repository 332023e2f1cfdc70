package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-audit-go/internal/archive"
	"call-audit-go/internal/audio"
	"call-audit-go/internal/callback"
	"call-audit-go/internal/config"
	"call-audit-go/internal/extractor"
	"call-audit-go/internal/health"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/pipeline"
	"call-audit-go/internal/processor"
	"call-audit-go/internal/report"
	"call-audit-go/internal/retry"
	"call-audit-go/internal/scheduler"
	"call-audit-go/internal/server"
	"call-audit-go/internal/transcription"
)

func main() {
	log := logger.New()
	log.WithField("service", "call-audit-go").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	prompts, err := extractor.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load prompts")
	}
	log.WithField("groups", len(prompts.Groups)).Info("prompt set loaded")

	m := metrics.NewMetrics()
	tool := audio.NewTool(cfg.FFmpegBin, cfg.FFprobeBin, log.Entry)
	limiter := cfg.BackendLimiter()

	stt := transcription.NewClient(cfg.TranscribeURL, transcription.Params{
		Model:             cfg.ModelID,
		Temperature:       cfg.Temperature,
		TopP:              cfg.TopP,
		RepetitionPenalty: cfg.RepetitionPenalty,
		FrequencyPenalty:  cfg.FrequencyPenalty,
	}, cfg.STTAttempts(), cfg.HTTPTimeout, limiter, log.Entry)
	qa := extractor.NewClient(cfg.ChatURL, cfg.ChatModelID, cfg.APIKey, cfg.HTTPTimeout, tool, limiter, log.Entry)

	proc := &processor.Processor{
		Audio:   tool,
		STT:     stt,
		QA:      qa,
		Prompts: prompts,
		Opts: processor.Options{
			NChunks:           cfg.NChunks,
			BufferSec:         cfg.BufferSec,
			RepetitionPenalty: cfg.RepetitionPenalty,
			FrequencyPenalty:  cfg.FrequencyPenalty,
			Retry: retry.Policy{
				Retries:     cfg.Retries,
				Timeout:     cfg.CallTimeout,
				BackoffBase: cfg.BackoffBase,
			},
		},
		Metrics: m,
		Log:     log.WithField("component", "processor"),
	}
	pipe := &pipeline.Pipeline{
		Calls:    proc,
		Callback: callback.NewClient(cfg.HTTPTimeout, log.Entry),
		Report:   report.NewWriter(cfg.ReportDir, log.Entry),
		Log:      log.WithField("component", "pipeline"),
	}

	state := &health.State{}
	probe := health.NewProbe(cfg.HealthURL, cfg.HealthMethod, cfg.HealthExpectedStatus, cfg.HealthTimeout, state, log.Entry)
	monitor := health.NewMonitor(probe, log.Entry)
	if err := monitor.Start(cfg.HealthSchedule); err != nil {
		log.WithError(err).Fatal("invalid health schedule")
	}

	sched := scheduler.New(
		archive.NewFetcher(cfg.ArchiveTimeout, log.Entry),
		tool,
		probe,
		health.Backoff{Delay: cfg.HealthBackoff},
		pipe,
		scheduler.Options{MaxAudioSeconds: cfg.MaxAudioSeconds, MaxJobAttempts: cfg.MaxJobAttempts},
		m,
		log.Entry,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := sched.Run(ctx); err != nil {
			log.WithError(err).Error("worker stopped")
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     server.NewHandler(sched, state, m, log).Routes(),
		ReadTimeout: 15 * time.Second,
		// submitters wait for the whole job, so responses are not time-boxed
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-sigChan
	log.Info("shutting down server...")
	sched.Shutdown()
	cancel()
	<-workerDone
	monitor.Stop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("error closing server")
	}
	log.Info("server stopped")
}
