package valueobjects

import (
	"encoding/json"
	"strings"
	"testing"

	"stackit/domain/config"
	pkgerrors "stackit/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerIDAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A AnswerID `json:"a"`
		B AnswerID `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "abc-1"}`), &payload))

	assert.Equal(t, "42", payload.A.String())
	assert.Equal(t, "abc-1", payload.B.String())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 42, "b": "abc-1"}`, string(out))
}

func TestAnswerIDRejectsObjects(t *testing.T) {
	var id AnswerID
	assert.Error(t, json.Unmarshal([]byte(`{"nested": true}`), &id))
}

func TestNullIDIsZero(t *testing.T) {
	var id QuestionID
	require.NoError(t, json.Unmarshal([]byte(`null`), &id))
	assert.True(t, id.IsZero())
}

func TestNewQuestionIDTrims(t *testing.T) {
	id, err := NewQuestionID("  7 ")
	require.NoError(t, err)
	assert.Equal(t, "7", id.String())

	_, err = NewQuestionID("   ")
	assert.Error(t, err)
}

func TestLocalIDsAreDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewLocalID()
		require.False(t, seen[id.String()])
		require.True(t, IsLocalID(id.String()))
		seen[id.String()] = true
	}
	assert.False(t, IsLocalID("42"))
}

func TestAnswerTextValidation(t *testing.T) {
	_, err := NewAnswerText(" \n\t ")
	assert.True(t, pkgerrors.IsEmptyInput(err))

	text, err := NewAnswerText("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "  hello  ", text.String())

	cfg := config.DefaultDomainConfig()
	cfg.MaxAnswerLength = 5
	_, err = NewAnswerTextWithConfig("toolong", cfg)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAnswerTextSummary(t *testing.T) {
	text, err := NewAnswerText("Use `CONCAT(FirstName, ' ', LastName)`.\nIt works.")
	require.NoError(t, err)

	summary := text.Summary(20)
	assert.Len(t, []rune(summary), 20)
	assert.True(t, strings.HasSuffix(summary, "..."))
	assert.NotContains(t, summary, "\n")
}
