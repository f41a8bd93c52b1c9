package correction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/linglenz/internal/metrics"
)

func TestGateway_FirstModelSucceeds(t *testing.T) {
	a := newFake("flash", fakeReply{raw: validRaw})
	b := newFake("lite", fakeReply{raw: validRaw})
	g := NewGateway([]Backend{a, b})

	res, err := g.Check(context.Background(), Request{Sentence: "He go to school", Language: "Spanish"})
	require.NoError(t, err)

	assert.Equal(t, Result{
		IsCorrect:         false,
		CorrectedSentence: "He goes to school",
		Explanation:       "subject-verb agreement",
		Categories:        []string{"Grammar"},
	}, res)
	assert.Equal(t, 1, a.Calls())
	assert.Equal(t, 0, b.Calls())
	assert.Contains(t, a.prompts[0], "Target Language: Spanish.")
}

func TestGateway_FallbackLeavesNoTrace(t *testing.T) {
	other := `{"is_correct":true,"corrected_sentence":"She reads","explanation":"fine","categories":["Style","Grammar"]}`

	tests := []struct {
		name  string
		first fakeReply
	}{
		{"transport", fakeReply{err: errors.New("connection reset")}},
		{"backend logic", fakeReply{err: &Error{Kind: KindBackendLogic, Message: "RESOURCE_EXHAUSTED"}}},
		{"malformed", fakeReply{raw: "I think the sentence is fine."}},
		{"partial json", fakeReply{raw: `{"is_correct":false,"categories":["Partial"]}`}},
		{"reported error", fakeReply{raw: `{"error":"model overloaded"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newFake("flash", tt.first)
			b := newFake("lite", fakeReply{raw: other})
			g := NewGateway([]Backend{a, b})

			res, err := g.Check(context.Background(), Request{Sentence: "She reads"})
			require.NoError(t, err)

			want, err := ParseResult(other)
			require.NoError(t, err)
			assert.Equal(t, want, res)
		})
	}
}

func TestGateway_AllBackendsUnavailable(t *testing.T) {
	a := newFake("flash", fakeReply{err: errors.New("timeout")})
	b := newFake("lite", fakeReply{raw: "nope"})
	c := newFake("pro", fakeReply{err: &Error{Kind: KindBackendLogic, Message: "quota"}})
	m := metrics.New("test")
	g := NewGateway([]Backend{a, b, c}, WithMetrics(m))

	_, err := g.Check(context.Background(), Request{Sentence: "He go"})
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrAllBackendsUnavailable)
	assert.ErrorIs(t, err, ErrBackendLogic, "carries the last error")

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "pro", ce.Last().Model)
	assert.Equal(t, KindBackendLogic, KindOf(err))

	for _, f := range []*fakeBackend{a, b, c} {
		assert.Equal(t, 1, f.Calls(), f.name)
	}
}

func TestGateway_InvalidInputMakesNoCall(t *testing.T) {
	a := newFake("flash", fakeReply{raw: validRaw})
	g := NewGateway([]Backend{a})

	for _, s := range []string{"", "   ", "\n\t"} {
		_, err := g.Check(context.Background(), Request{Sentence: s})
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Equal(t, 0, a.Calls())
}

func TestGateway_DefaultLanguage(t *testing.T) {
	a := newFake("flash", fakeReply{raw: validRaw})
	g := NewGateway([]Backend{a}, WithDefaultLanguage("German"))

	_, err := g.Check(context.Background(), Request{Sentence: "  Ich gehen  "})
	require.NoError(t, err)

	assert.Contains(t, a.prompts[0], "Target Language: German.")
	assert.Contains(t, a.prompts[0], `"Ich gehen"`, "sentence is trimmed")
}

func TestGateway_PerModelTimeout(t *testing.T) {
	a := newFake("flash", fakeReply{block: true})
	b := newFake("lite", fakeReply{raw: validRaw})
	g := NewGateway([]Backend{a, b}, WithPerModelTimeout(20*time.Millisecond))

	start := time.Now()
	res, err := g.Check(context.Background(), Request{Sentence: "He go to school"})
	require.NoError(t, err)

	assert.Equal(t, "He goes to school", res.CorrectedSentence)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGateway_CancelledContextStopsWaterfall(t *testing.T) {
	a := newFake("flash", fakeReply{raw: validRaw})
	g := NewGateway([]Backend{a})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Check(ctx, Request{Sentence: "He go"})
	require.ErrorIs(t, err, ErrAllBackendsUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.Calls())
}

func TestGateway_Cache(t *testing.T) {
	a := newFake("flash", fakeReply{raw: validRaw})
	g := NewGateway([]Backend{a}, WithCache(8, time.Minute))

	first, err := g.Check(context.Background(), Request{Sentence: "He go to school", Language: "English"})
	require.NoError(t, err)
	first.Categories[0] = "mutated"

	second, err := g.Check(context.Background(), Request{Sentence: "He go to school ", Language: "English"})
	require.NoError(t, err)

	assert.Equal(t, 1, a.Calls())
	assert.Equal(t, []string{"Grammar"}, second.Categories)

	_, err = g.Check(context.Background(), Request{Sentence: "He go to school", Language: "French"})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Calls(), "language is part of the cache key")
}

func TestGateway_Models(t *testing.T) {
	g := NewGateway([]Backend{newFake("a"), newFake("b")})
	assert.Equal(t, []string{"a", "b"}, g.Models())
}
