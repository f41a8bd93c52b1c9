package correction

import "fmt"

const promptTemplate = `Act as a strict language tutor. Analyze this sentence: %q.
Target Language: %s.

Return ONLY a JSON object (no markdown) with exactly these fields: { "is_correct": boolean, "corrected_sentence": string, "explanation": string, "categories": string[] }`

// Prompt builds the instruction sent to a correction model.
func Prompt(sentence, language string) string {
	return fmt.Sprintf(promptTemplate, sentence, language)
}
