package correction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrNoSpeech is returned when an audio segment holds no recognizable speech.
var ErrNoSpeech = errors.New("no speech recognized")

// noSpeechMarker is what the model is asked to answer for silent audio.
const noSpeechMarker = "[NO_SPEECH]"

const transcribePrompt = `Transcribe the speech in this audio exactly as spoken, without correcting any mistakes. The speaker is practising %s.
Return only the transcript as plain text. If there is no intelligible speech, return %s.`

// GeminiTranscriber turns audio segments into text with a Gemini model.
type GeminiTranscriber struct {
	client *genai.Client
	model  string
}

// NewGeminiTranscriber creates a transcriber using model.
func NewGeminiTranscriber(client *genai.Client, model string) *GeminiTranscriber {
	return &GeminiTranscriber{client: client, model: model}
}

// Transcribe returns the text spoken in audio, or ErrNoSpeech.
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoSpeech
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(fmt.Sprintf(transcribePrompt, language, noSpeechMarker)),
			genai.NewPartFromBytes(audio, mimeType),
		}, genai.RoleUser),
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", geminiError(t.model, err))
	}

	return cleanTranscript(resp.Text())
}

func cleanTranscript(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"")
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, noSpeechMarker) {
		return "", ErrNoSpeech
	}
	return text, nil
}
