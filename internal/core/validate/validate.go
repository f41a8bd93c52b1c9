// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hay-kot/criterio"
)

// Sentence validates an utterance is non-empty UTF-8 text after trimming
// whitespace.
func Sentence(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("sentence must be valid text")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("sentence is required")
	}
	return nil
}

// ID validates an opaque identifier: non-empty, no whitespace or control runes.
func ID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("id must not contain whitespace")
		}
	}
	return nil
}

// IDField returns a criterio validator for identifiers.
func IDField(field, id string) error {
	return criterio.Run(field, id, ID)
}

// SentenceField returns a criterio validator for utterances.
func SentenceField(field, text string) error {
	return criterio.Run(field, text, Sentence)
}
