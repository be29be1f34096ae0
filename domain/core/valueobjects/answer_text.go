package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"stackit/domain/config"
	pkgerrors "stackit/pkg/errors"
)

// AnswerText is the body of an answer. The text is kept exactly as the caller
// typed it; surrounding whitespace only matters for the emptiness check.
type AnswerText struct {
	value string
}

// NewAnswerText validates answer text using the default configuration
func NewAnswerText(text string) (AnswerText, error) {
	return NewAnswerTextWithConfig(text, config.DefaultDomainConfig())
}

// NewAnswerTextWithConfig validates answer text against cfg
func NewAnswerTextWithConfig(text string, cfg *config.DomainConfig) (AnswerText, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if strings.TrimSpace(text) == "" {
		return AnswerText{}, pkgerrors.NewEmptyInputError("answer")
	}

	if cfg.MaxAnswerLength > 0 && utf8.RuneCountInString(text) > cfg.MaxAnswerLength {
		return AnswerText{}, pkgerrors.NewValidationError(
			fmt.Sprintf("answer exceeds maximum length of %d characters", cfg.MaxAnswerLength))
	}

	return AnswerText{value: text}, nil
}

// String returns the answer text
func (t AnswerText) String() string {
	return t.value
}

// IsEmpty checks if the text is the zero value
func (t AnswerText) IsEmpty() bool {
	return t.value == ""
}

// Summary returns a truncated, single-line preview of the text
func (t AnswerText) Summary(maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	line := strings.Join(strings.Fields(t.value), " ")
	if utf8.RuneCountInString(line) <= maxLength {
		return line
	}
	if maxLength <= 3 {
		return string([]rune(line)[:maxLength])
	}

	runes := []rune(line)
	return string(runes[:maxLength-3]) + "..."
}
