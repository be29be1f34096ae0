package authority_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackit/domain/core/valueobjects"
	"stackit/infrastructure/authority"
	"stackit/interfaces/http/authoritystub"
	pkgerrors "stackit/pkg/errors"
)

func newStubClient(t *testing.T) *authority.HTTPClient {
	t.Helper()
	server := httptest.NewServer(authoritystub.NewRouter(authority.NewSeededMemoryAuthority(), nil))
	t.Cleanup(server.Close)
	return newClient(t, server.URL, authority.BreakerConfig{})
}

func newClient(t *testing.T, baseURL string, breaker authority.BreakerConfig) *authority.HTTPClient {
	t.Helper()
	client, err := authority.NewHTTPClient(authority.ClientConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Breaker: breaker,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestFetchQuestion(t *testing.T) {
	client := newStubClient(t)

	record, err := client.FetchQuestion(context.Background(), valueobjects.MustQuestionID("sample"))
	require.NoError(t, err)
	assert.Equal(t, "sample", record.ID.String())
	require.Len(t, record.Answers, 2)
	assert.Equal(t, "1", record.Answers[0].ID.String())
	assert.Equal(t, 1, record.Answers[0].Votes)
	assert.False(t, record.Answers[0].VotedByUser)
}

func TestFetchUnknownQuestion(t *testing.T) {
	client := newStubClient(t)

	_, err := client.FetchQuestion(context.Background(), valueobjects.MustQuestionID("missing"))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCastVote(t *testing.T) {
	client := newStubClient(t)
	ctx := context.Background()
	qid := valueobjects.MustQuestionID("1")
	aid := valueobjects.MustAnswerID("2")

	err := client.CastVote(ctx, qid, aid, "")
	assert.True(t, pkgerrors.IsUnauthorized(err))

	require.NoError(t, client.CastVote(ctx, qid, aid, "alice"))
	err = client.CastVote(ctx, qid, aid, "alice")
	assert.True(t, pkgerrors.IsConflict(err))

	err = client.CastVote(ctx, qid, valueobjects.MustAnswerID("99"), "alice")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNotFoundNamesTheMissingResource(t *testing.T) {
	client := newStubClient(t)
	ctx := context.Background()

	err := client.CastVote(ctx, valueobjects.MustQuestionID("1"), valueobjects.MustAnswerID("99"), "alice")
	require.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, "answer not found", pkgerrors.GetAppError(err).Message)

	_, err = client.CreateAnswer(ctx, valueobjects.MustQuestionID("missing"), "hello", "alice")
	require.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, "question not found", pkgerrors.GetAppError(err).Message)

	_, err = client.FetchQuestion(ctx, valueobjects.MustQuestionID("missing"))
	require.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, "question not found", pkgerrors.GetAppError(err).Message)
}

func TestCreateAnswerAssignsID(t *testing.T) {
	client := newStubClient(t)
	ctx := context.Background()
	qid := valueobjects.MustQuestionID("sample")

	record, err := client.CreateAnswer(ctx, qid, "  Use CONCAT_WS.  ", "alice")
	require.NoError(t, err)
	assert.Equal(t, "3", record.ID.String())
	assert.Equal(t, "  Use CONCAT_WS.  ", record.Text)
	assert.Equal(t, 0, record.Votes)

	_, err = client.CreateAnswer(ctx, qid, "text", "")
	assert.True(t, pkgerrors.IsUnauthorized(err))

	question, err := client.FetchQuestion(ctx, qid)
	require.NoError(t, err)
	assert.Len(t, question.Answers, 3)
}

func TestMalformedResponseIsExternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": {`))
	}))
	defer server.Close()

	client := newClient(t, server.URL, authority.BreakerConfig{})
	_, err := client.FetchQuestion(context.Background(), valueobjects.MustQuestionID("1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
}

func TestCreateAnswerWithoutIDIsExternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"text": "hi", "votes": 0}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL, authority.BreakerConfig{})
	_, err := client.CreateAnswer(context.Background(), valueobjects.MustQuestionID("1"), "hi", "alice")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
}

func TestDeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newClient(t, server.URL, authority.BreakerConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchQuestion(ctx, valueobjects.MustQuestionID("1"))
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeTimeout))
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := authority.DefaultBreakerConfig("test")
	breaker.MinRequests = 2
	breaker.FailureThreshold = 0.5
	client := newClient(t, server.URL, breaker)
	ctx := context.Background()
	qid := valueobjects.MustQuestionID("1")

	for i := 0; i < 2; i++ {
		_, err := client.FetchQuestion(ctx, qid)
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	}

	_, err := client.FetchQuestion(ctx, qid)
	assert.True(t, pkgerrors.IsUnavailable(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	breaker := authority.DefaultBreakerConfig("test")
	breaker.MinRequests = 1
	client := newClient(t, server.URL, breaker)

	for i := 0; i < 5; i++ {
		_, err := client.FetchQuestion(context.Background(), valueobjects.MustQuestionID("1"))
		assert.True(t, pkgerrors.IsNotFound(err))
	}
}

func TestNewHTTPClientRejectsRelativeURL(t *testing.T) {
	_, err := authority.NewHTTPClient(authority.ClientConfig{BaseURL: "/api"}, nil)
	assert.Error(t, err)
}
