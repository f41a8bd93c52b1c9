// Package correction turns utterances into structured grammar corrections.
//
// A Gateway tries an ordered list of Backends until one returns a response
// that parses into a complete Result. The HTTP Client speaks the same
// request/response contract to a remote check-sentence service.
package correction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Request is the correction request contract.
type Request struct {
	Sentence string `json:"sentence"`
	Language string `json:"language,omitempty"`
}

// Result is a parsed correction. It is never partially populated.
type Result struct {
	IsCorrect         bool     `json:"is_correct"`
	CorrectedSentence string   `json:"corrected_sentence"`
	Explanation       string   `json:"explanation"`
	Categories        []string `json:"categories"`
}

// Clone returns a copy that shares no memory with r.
func (r Result) Clone() Result {
	r.Categories = append([]string{}, r.Categories...)
	return r
}

// ErrorResponse is the backend-reported error shape.
type ErrorResponse struct {
	Error    string `json:"error"`
	Kind     Kind   `json:"kind,omitempty"`
	LastKind Kind   `json:"last_kind,omitempty"`
}

// wireResult distinguishes absent fields from zero values.
type wireResult struct {
	IsCorrect         *bool     `json:"is_correct"`
	CorrectedSentence *string   `json:"corrected_sentence"`
	Explanation       *string   `json:"explanation"`
	Categories        *[]string `json:"categories"`
	Error             *string   `json:"error"`
}

// StripFences removes markdown code fences a model may wrap around JSON.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseResult parses a raw model or service response. All four result fields
// must be present. A response carrying an "error" field yields a
// KindBackendLogic error; anything else that does not fit yields
// KindMalformedResponse.
func ParseResult(raw string) (Result, error) {
	body := StripFences(raw)
	if body == "" {
		return Result{}, &Error{Kind: KindMalformedResponse, Message: "empty response"}
	}

	var w wireResult
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(&w); err != nil {
		return Result{}, &Error{Kind: KindMalformedResponse, Message: "response is not a JSON object", Err: err}
	}
	if dec.More() {
		return Result{}, &Error{Kind: KindMalformedResponse, Message: "trailing data after JSON object"}
	}

	if w.Error != nil {
		return Result{}, &Error{Kind: KindBackendLogic, Message: *w.Error}
	}

	var missing []string
	if w.IsCorrect == nil {
		missing = append(missing, "is_correct")
	}
	if w.CorrectedSentence == nil {
		missing = append(missing, "corrected_sentence")
	}
	if w.Explanation == nil {
		missing = append(missing, "explanation")
	}
	if w.Categories == nil {
		missing = append(missing, "categories")
	}
	if len(missing) > 0 {
		return Result{}, &Error{
			Kind:    KindMalformedResponse,
			Message: fmt.Sprintf("missing fields: %s", strings.Join(missing, ", ")),
		}
	}

	cats := *w.Categories
	if cats == nil {
		cats = []string{}
	}

	return Result{
		IsCorrect:         *w.IsCorrect,
		CorrectedSentence: *w.CorrectedSentence,
		Explanation:       *w.Explanation,
		Categories:        append([]string{}, cats...),
	}, nil
}
