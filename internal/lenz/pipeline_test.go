package lenz

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/linglenz/internal/capture"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
)

func tone(samples int, amplitude int16) []byte {
	buf := make([]byte, samples*2)
	for i := range samples {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func segment(seq int, pcm []byte) capture.Segment {
	return capture.Segment{Seq: seq, Data: pcm, Format: capture.Format{SampleRate: 16000, Channels: 1}}
}

func TestPipeline_SubmitsTranscripts(t *testing.T) {
	a, _ := testAnalyzer(t, newChecker(succeed(goesResult)), newMockEntries())
	tr := &fakeTranscriber{text: "He go to school"}
	p := NewPipeline(context.Background(), tr, a, "Spanish", 0.01, nil, zerolog.Nop())

	p.HandleSegment(segment(1, tone(1600, 8000)))
	p.Wait()

	assert.Equal(t, int32(1), tr.calls.Load())
	entries := a.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, mistake.SourceAudio, entries[0].Source)
	assert.Equal(t, "He go to school", entries[0].Original)
}

func TestPipeline_SkipsSilence(t *testing.T) {
	a, _ := testAnalyzer(t, newChecker(succeed(goesResult)), newMockEntries())
	tr := &fakeTranscriber{text: "ignored"}
	p := NewPipeline(context.Background(), tr, a, "Spanish", 0.01, nil, zerolog.Nop())

	p.HandleSegment(segment(1, make([]byte, 3200)))
	p.Wait()

	assert.Zero(t, tr.calls.Load())
	assert.Empty(t, a.Entries())
}

func TestPipeline_NoSpeechAndFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"no speech", correction.ErrNoSpeech},
		{"transcription failure", errors.New("upstream unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := testAnalyzer(t, newChecker(succeed(goesResult)), newMockEntries())
			tr := &fakeTranscriber{err: tt.err}
			p := NewPipeline(context.Background(), tr, a, "Spanish", 0.01, nil, zerolog.Nop())

			p.HandleSegment(segment(1, tone(1600, 8000)))
			p.Wait()

			assert.Equal(t, int32(1), tr.calls.Load())
			assert.Empty(t, a.Entries())
		})
	}
}

func TestPipeline_RejectedAfterStop(t *testing.T) {
	a, _ := testAnalyzer(t, newChecker(succeed(goesResult)), newMockEntries())
	tr := &fakeTranscriber{text: "late words"}
	p := NewPipeline(context.Background(), tr, a, "Spanish", 0.01, nil, zerolog.Nop())

	a.Stop()
	p.HandleSegment(segment(1, tone(1600, 8000)))
	p.Wait()

	assert.Empty(t, a.Entries())
}
