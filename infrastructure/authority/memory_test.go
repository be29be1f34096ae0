package authority

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackit/domain/core/valueobjects"
	pkgerrors "stackit/pkg/errors"
)

func TestVotedByUserIsPerCredential(t *testing.T) {
	m := NewSeededMemoryAuthority()
	ctx := context.Background()
	qid := valueobjects.MustQuestionID("sample")
	aid := valueobjects.MustAnswerID("1")

	require.NoError(t, m.CastVote(ctx, qid, aid, "alice"))

	mine, err := m.QuestionFor(ctx, qid, "alice")
	require.NoError(t, err)
	assert.True(t, mine.Answers[0].VotedByUser)
	assert.Equal(t, 2, mine.Answers[0].Votes)

	theirs, err := m.QuestionFor(ctx, qid, "bob")
	require.NoError(t, err)
	assert.False(t, theirs.Answers[0].VotedByUser)

	anonymous, err := m.FetchQuestion(ctx, qid)
	require.NoError(t, err)
	assert.False(t, anonymous.Answers[0].VotedByUser)
}

func TestSeededQuestionsAreIndependent(t *testing.T) {
	m := NewSeededMemoryAuthority()
	ctx := context.Background()

	require.NoError(t, m.CastVote(ctx, valueobjects.MustQuestionID("1"), valueobjects.MustAnswerID("1"), "alice"))

	other, err := m.FetchQuestion(ctx, valueobjects.MustQuestionID("sample"))
	require.NoError(t, err)
	assert.Equal(t, 1, other.Answers[0].Votes)
}

func TestCreateAnswerRejectsBlankText(t *testing.T) {
	m := NewSeededMemoryAuthority()

	_, err := m.CreateAnswer(context.Background(), valueobjects.MustQuestionID("1"), "   ", "alice")
	assert.True(t, pkgerrors.IsEmptyInput(err))

	_, err = m.CreateAnswer(context.Background(), valueobjects.MustQuestionID("nope"), "text", "alice")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestFetchedRecordsAreCopies(t *testing.T) {
	m := NewSeededMemoryAuthority()
	ctx := context.Background()
	qid := valueobjects.MustQuestionID("1")

	record, err := m.FetchQuestion(ctx, qid)
	require.NoError(t, err)
	record.Answers[0].Votes = 100

	again, err := m.FetchQuestion(ctx, qid)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Answers[0].Votes)
}

func TestCancelledContext(t *testing.T) {
	m := NewSeededMemoryAuthority()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.FetchQuestion(ctx, valueobjects.MustQuestionID("1"))
	assert.ErrorIs(t, err, context.Canceled)
}
