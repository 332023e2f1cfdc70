package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"call-audit-go/internal/archive"
	"call-audit-go/internal/audio"
	"call-audit-go/internal/extractor"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/retry"
	"call-audit-go/internal/transcription"
	"call-audit-go/internal/types"
)

type AudioTool interface {
	Normalize(ctx context.Context, in, workDir string) (audio.Asset, error)
	Split(ctx context.Context, asset audio.Asset, n int, buffer float64, dir string) ([]string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (transcription.Response, error)
}

type Asker interface {
	Ask(ctx context.Context, wavPath, prompt string, p extractor.Params) (string, error)
}

type Options struct {
	NChunks           int
	BufferSec         float64
	RepetitionPenalty float64
	FrequencyPenalty  float64
	Retry             retry.Policy
}

// Processor turns one recording into a CallRecord. Steps run strictly in
// sequence; chunk and prompt failures only thin out the result.
type Processor struct {
	Audio   AudioTool
	STT     Transcriber
	QA      Asker
	Prompts *extractor.PromptSet
	Opts    Options
	Metrics *metrics.Metrics
	Log     *logrus.Entry
}

func (p *Processor) ProcessCall(ctx context.Context, path, workDir string) (types.CallRecord, error) {
	callID := archive.CallID(path)
	log := p.Log.WithField("call_id", callID)

	asset, err := p.Audio.Normalize(ctx, path, workDir)
	if err != nil {
		return types.CallRecord{}, fmt.Errorf("normalize %s: %w", filepath.Base(path), err)
	}

	n := audio.ChunkCount(asset.Duration, p.Opts.NChunks)
	log.WithField("duration_sec", fmt.Sprintf("%.2f", asset.Duration)).WithField("chunks", n).Info("processing call")

	transcript, err := p.transcribe(ctx, log, asset, n, filepath.Join(workDir, callID+"_chunks"))
	if err != nil {
		return types.CallRecord{}, err
	}
	evidence := p.evaluate(ctx, log, asset.Path)
	if err := ctx.Err(); err != nil {
		return types.CallRecord{}, err
	}

	if p.Metrics != nil {
		p.Metrics.IncrementProcessedCalls()
	}
	return types.CallRecord{
		CallID:     callID,
		CallDate:   archive.CallDate(callID),
		Duration:   asset.Duration,
		Evidence:   evidence,
		Transcript: transcript,
	}, nil
}

// transcribe returns the chunk texts joined by single spaces. Chunks that
// cannot be cut or transcribed are skipped.
func (p *Processor) transcribe(ctx context.Context, log *logrus.Entry, asset audio.Asset, n int, dir string) (string, error) {
	parts, err := p.Audio.Split(ctx, asset, n, p.Opts.BufferSec, dir)
	if err != nil {
		return "", err
	}

	var (
		texts []string
		ok    int
	)
	for i, part := range parts {
		res, err := retry.Run(ctx, log.WithField("chunk", i+1), p.Opts.Retry, func(actx context.Context) (transcription.Response, error) {
			return p.STT.Transcribe(actx, part)
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.WithField("chunk", i+1).WithField("error", err.Error()).Warn("chunk transcription failed, skipping")
			continue
		}
		ok++
		if text := transcription.ExtractText(res); text != "" {
			texts = append(texts, text)
		}
	}

	planned := len(audio.Plan(asset.Duration, n, p.Opts.BufferSec))
	if dropped := planned - ok; dropped > 0 && p.Metrics != nil {
		p.Metrics.AddDroppedChunks(dropped)
	}
	return strings.Join(texts, " "), nil
}

// evaluate runs every prompt group against the whole recording, in order.
func (p *Processor) evaluate(ctx context.Context, log *logrus.Entry, wavPath string) []types.EvidenceEntry {
	evidence := []types.EvidenceEntry{}
	for _, g := range p.Prompts.Groups {
		params := g.Params(p.Opts.RepetitionPenalty, p.Opts.FrequencyPenalty)
		glog := log.WithField("group", g.Key)

		var answers []string
		for i, prompt := range g.Parts {
			if ctx.Err() != nil {
				return evidence
			}
			ans, ok := retry.Optional(ctx, glog.WithField("part", i+1), p.Opts.Retry, func(actx context.Context) (string, error) {
				return p.QA.Ask(actx, wavPath, prompt, params)
			})
			if ok && ans != "" {
				answers = append(answers, ans)
			}
		}
		if text := strings.Join(answers, " "); text != "" {
			evidence = append(evidence, types.EvidenceEntry{Label: g.Label, Text: text})
		}
	}
	return evidence
}
