package prompt

import (
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// TokenEstimator estimates token usage of text content.
type TokenEstimator func(text string) int

// RuneEstimator counts runes; used when no tokenizer is available.
func RuneEstimator(text string) int { return utf8.RuneCountInString(text) }

// NewTikTokenEstimator returns a TokenEstimator backed by tiktoken-go for the given model.
// Models tiktoken does not know (e.g. llama3 on Groq) use the cl100k_base encoding.
// If no encoding can be loaded, the rune estimator is returned with the error.
func NewTikTokenEstimator(model string) (TokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return RuneEstimator, err
		}
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}
