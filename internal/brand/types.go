// Package brand implements brand mention detection and ranking extraction
// over free-form model responses. Matching is case- and diacritic-insensitive
// and tolerates spelling drift through token-set fuzzy scoring.
package brand

import "errors"

// ErrInvalidInput marks malformed brand or prompt data. It is surfaced
// immediately and never retried.
var ErrInvalidInput = errors.New("invalid input")

// MatchMethod identifies how a mention was found.
type MatchMethod string

const (
	MethodExact MatchMethod = "exact"
	MethodFuzzy MatchMethod = "fuzzy"
)

// Brand is a tracked brand: a canonical name plus alias variants.
type Brand struct {
	Name     string   `json:"name"`
	Variants []string `json:"variants,omitempty"`
}

// Match is a single detected mention of a brand inside a response.
// Start and End are byte offsets into the original text; exact matches
// always score 100.
type Match struct {
	Brand       string      `json:"brand"`
	MatchedText string      `json:"matched_text"`
	Start       int         `json:"start"`
	End         int         `json:"end"`
	Score       int         `json:"score"` // 0-100
	Method      MatchMethod `json:"method"`
	Context     string      `json:"context,omitempty"` // surrounding text window
}
