package lenz

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/linglenz/internal/capture"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
	"github.com/colonyops/linglenz/internal/metrics"
)

// Transcriber turns an audio clip into text. It returns correction.ErrNoSpeech
// when the clip holds no speech.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error)
}

// Pipeline consumes capture segments: silent ones are dropped, the rest are
// transcribed and submitted to the analyzer as audio entries. Segments are
// handled concurrently and never retained after handling.
type Pipeline struct {
	transcriber Transcriber
	analyzer    *Analyzer
	language    string
	threshold   float64
	metrics     *metrics.Metrics
	log         zerolog.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

// NewPipeline creates a pipeline feeding analyzer. Segments with an RMS level
// below silenceThreshold are skipped without transcription.
func NewPipeline(
	ctx context.Context,
	transcriber Transcriber,
	analyzer *Analyzer,
	language string,
	silenceThreshold float64,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		analyzer:    analyzer,
		language:    language,
		threshold:   silenceThreshold,
		metrics:     m,
		log:         log,
		ctx:         ctx,
	}
}

// HandleSegment is the capture controller's segment callback. It returns
// immediately; the next segment does not wait for this one.
func (p *Pipeline) HandleSegment(seg capture.Segment) {
	if level := capture.RMS(seg.Data); level < p.threshold {
		p.metrics.RecordSegment("silent")
		p.log.Debug().Int("seq", seg.Seq).Float64("rms", level).Msg("skipping silent segment")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.process(seg)
	}()
}

// Wait blocks until every handed-off segment has been processed.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) process(seg capture.Segment) {
	text, err := p.transcriber.Transcribe(p.ctx, seg.WAV(), capture.WAVMimeType, p.language)
	switch {
	case errors.Is(err, correction.ErrNoSpeech):
		p.metrics.RecordSegment("no_speech")
		return
	case err != nil:
		p.metrics.RecordSegment("transcribe_failed")
		p.log.Warn().Err(err).Int("seq", seg.Seq).Msg("transcription failed")
		return
	}

	if _, err := p.analyzer.Submit(p.ctx, text, mistake.SourceAudio); err != nil {
		p.metrics.RecordSegment("rejected")
		p.log.Debug().Err(err).Int("seq", seg.Seq).Msg("transcript not submitted")
		return
	}
	p.metrics.RecordSegment("submitted")
}
