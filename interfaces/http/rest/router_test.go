package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stackit/application/board"
	"stackit/application/commands/bus"
	commandhandlers "stackit/application/commands/handlers"
	"stackit/application/ports"
	"stackit/application/queries"
	querybus "stackit/application/queries/bus"
	"stackit/domain/core/valueobjects"
	"stackit/domain/events"
	"stackit/infrastructure/authority"
	"stackit/infrastructure/config"
	"stackit/infrastructure/identity"
	"stackit/interfaces/http/rest/handlers"
	"stackit/pkg/auth"
	pkgerrors "stackit/pkg/errors"
	"stackit/pkg/observability"
)

// rejectingAuthority fails every answer submission
type rejectingAuthority struct {
	*authority.MemoryAuthority
}

func (rejectingAuthority) CreateAnswer(ctx context.Context, questionID valueobjects.QuestionID, text string, credential string) (*ports.AnswerRecord, error) {
	return nil, pkgerrors.NewExternalError("authority", errors.New("server returned 500"))
}

type gateway struct {
	server   *httptest.Server
	store    *authority.MemoryAuthority
	registry *board.Registry
}

func newGateway(t *testing.T, authorityFor func(*authority.MemoryAuthority) ports.Authority, perMinute int) *gateway {
	t.Helper()
	return newGatewayWithOrigins(t, authorityFor, perMinute, []string{"*"})
}

func newGatewayWithOrigins(t *testing.T, authorityFor func(*authority.MemoryAuthority) ports.Authority, perMinute int, origins []string) *gateway {
	t.Helper()
	store := authority.NewSeededMemoryAuthority()
	var upstream ports.Authority = store
	if authorityFor != nil {
		upstream = authorityFor(store)
	}

	registry := board.NewRegistry(func() (*board.Board, board.MutableIdentity) {
		id := identity.NewSession(nil)
		return board.New(upstream, id, board.Options{}), id
	}, 0, nil)
	t.Cleanup(registry.Close)

	commandBus := bus.NewCommandBus()
	require.NoError(t, commandhandlers.NewBoardHandlers(registry, nil).Register(commandBus))
	queryBus := querybus.NewQueryBus()
	require.NoError(t, queryBus.Register(queries.GetBoardQuery{}, queries.NewGetBoardHandler(registry)))

	limiter := auth.NewSlidingWindowLimiter(perMinute, time.Minute)
	limiters := Limiters{
		IP:        auth.NewIPRateLimiter(limiter),
		Session:   auth.NewSessionRateLimiter(limiter),
		PerMinute: perMinute,
	}
	cfg := &config.Config{Environment: "test", CORSAllowedOrigins: origins}

	handler := NewRouter(commandBus, queryBus, registry, limiters, observability.NewMetrics(), cfg, zap.NewNop()).Setup()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &gateway{server: server, store: store, registry: registry}
}

func (g *gateway) call(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, g.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func data[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var envelope struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope), string(raw))
	require.True(t, envelope.Success, string(raw))
	return envelope.Data
}

func errorType(t *testing.T, raw []byte) string {
	t.Helper()
	var resp pkgerrors.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))
	return resp.Type
}

// openBoard creates a session and waits for question 1 to load
func (g *gateway) openBoard(t *testing.T) string {
	t.Helper()
	status, raw := g.call(t, http.MethodPost, "/api/v1/boards", "", nil)
	require.Equal(t, http.StatusCreated, status, string(raw))
	session := data[handlers.CreateSessionResponse](t, raw).Session
	require.NotEmpty(t, session)

	status, raw = g.call(t, http.MethodPut, "/api/v1/boards/"+session+"/question/1", "", nil)
	require.Equal(t, http.StatusAccepted, status, string(raw))

	require.Eventually(t, func() bool {
		_, raw := g.call(t, http.MethodGet, "/api/v1/boards/"+session, "", nil)
		return data[board.Snapshot](t, raw).Status == board.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
	return session
}

func TestLoadQuestionThroughGateway(t *testing.T) {
	g := newGateway(t, nil, 100)
	session := g.openBoard(t)

	status, raw := g.call(t, http.MethodGet, "/api/v1/boards/"+session, "", nil)
	require.Equal(t, http.StatusOK, status)
	snap := data[board.Snapshot](t, raw)
	assert.Equal(t, "1", snap.QuestionID)
	assert.Len(t, snap.Answers, 2)
	assert.True(t, snap.Settled)
}

func TestVoteThroughGateway(t *testing.T) {
	g := newGateway(t, nil, 100)
	session := g.openBoard(t)
	path := "/api/v1/boards/" + session + "/answers/2/vote"

	status, raw := g.call(t, http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(pkgerrors.ErrorTypeUnauthorized), errorType(t, raw))

	for i := 0; i < 2; i++ {
		status, raw = g.call(t, http.MethodPost, path, "alice", nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		answer, ok := data[board.Snapshot](t, raw).Find("2")
		require.True(t, ok)
		assert.Equal(t, 1, answer.Votes)
		assert.True(t, answer.VotedByUser)
	}

	require.Eventually(t, func() bool {
		q, err := g.store.QuestionFor(context.Background(), valueobjects.MustQuestionID("1"), "alice")
		return err == nil && q.Answers[1].VotedByUser
	}, 2*time.Second, 10*time.Millisecond)

	status, raw = g.call(t, http.MethodPost, "/api/v1/boards/"+session+"/answers/99/vote", "alice", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(pkgerrors.ErrorTypeNotFound), errorType(t, raw))
}

func TestSubmitAnswerThroughGateway(t *testing.T) {
	g := newGateway(t, nil, 100)
	session := g.openBoard(t)
	path := "/api/v1/boards/" + session + "/answers"

	status, raw := g.call(t, http.MethodPost, path, "", handlers.TextRequest{Text: "hi"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw = g.call(t, http.MethodPost, path, "alice", handlers.TextRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(pkgerrors.ErrorTypeEmptyInput), errorType(t, raw))

	status, raw = g.call(t, http.MethodPost, path+"?wait=true", "alice", handlers.TextRequest{Text: "Use CONCAT_WS."})
	require.Equal(t, http.StatusCreated, status, string(raw))
	resp := data[handlers.SubmitAnswerResponse](t, raw)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, "3", resp.Answer.ID)
	assert.True(t, valueobjects.IsLocalID(resp.LocalID))
	require.Len(t, resp.Snapshot.Answers, 3)
	assert.Equal(t, "3", resp.Snapshot.Answers[2].ID)
	assert.False(t, resp.Snapshot.Answers[2].Pending)
}

func TestFailedSubmissionLeavesNotice(t *testing.T) {
	g := newGateway(t, func(m *authority.MemoryAuthority) ports.Authority {
		return rejectingAuthority{m}
	}, 100)
	session := g.openBoard(t)

	status, raw := g.call(t, http.MethodPost, "/api/v1/boards/"+session+"/answers?wait=true", "alice", handlers.TextRequest{Text: "answer"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, string(pkgerrors.ErrorTypeSubmissionFailed), errorType(t, raw))

	status, raw = g.call(t, http.MethodGet, "/api/v1/boards/"+session, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, data[board.Snapshot](t, raw).Answers, 2)

	_, raw = g.call(t, http.MethodGet, "/api/v1/boards/"+session+"/notices", "", nil)
	notices := data[handlers.NoticesResponse](t, raw).Notices
	require.Len(t, notices, 1)
	assert.Equal(t, board.NoticeSubmissionFailed, notices[0].Kind)

	_, raw = g.call(t, http.MethodGet, "/api/v1/boards/"+session+"/notices", "", nil)
	assert.Empty(t, data[handlers.NoticesResponse](t, raw).Notices)
}

func TestDraftAndRefresh(t *testing.T) {
	g := newGateway(t, nil, 100)
	session := g.openBoard(t)

	status, raw := g.call(t, http.MethodPut, "/api/v1/boards/"+session+"/draft", "", handlers.TextRequest{Text: "half written"})
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, "half written", data[board.Snapshot](t, raw).Draft)

	_, err := g.store.CreateAnswer(context.Background(), valueobjects.MustQuestionID("1"), "from elsewhere", "bob")
	require.NoError(t, err)

	status, raw = g.call(t, http.MethodPost, "/api/v1/boards/"+session+"/refresh", "", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	resp := data[handlers.RefreshResponse](t, raw)
	assert.True(t, resp.Applied)
	assert.Len(t, resp.Snapshot.Answers, 3)
	assert.Equal(t, "half written", resp.Snapshot.Draft)
}

func TestUnknownAndClosedSessions(t *testing.T) {
	g := newGateway(t, nil, 100)

	status, raw := g.call(t, http.MethodGet, "/api/v1/boards/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(pkgerrors.ErrorTypeNotFound), errorType(t, raw))

	session := g.openBoard(t)
	status, _ = g.call(t, http.MethodDelete, "/api/v1/boards/"+session, "", nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, 0, g.registry.Len())

	status, _ = g.call(t, http.MethodGet, "/api/v1/boards/"+session, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMutationsAreRateLimited(t *testing.T) {
	g := newGateway(t, nil, 3)

	// creating the session uses one request of the caller's budget
	status, raw := g.call(t, http.MethodPost, "/api/v1/boards", "", nil)
	require.Equal(t, http.StatusCreated, status)
	session := data[handlers.CreateSessionResponse](t, raw).Session

	for i := 0; i < 2; i++ {
		status, _ = g.call(t, http.MethodPut, "/api/v1/boards/"+session+"/question/1", "", nil)
		require.Equal(t, http.StatusAccepted, status)
	}

	status, raw = g.call(t, http.MethodPut, "/api/v1/boards/"+session+"/question/1", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, string(pkgerrors.ErrorTypeRateLimit), errorType(t, raw))

	status, _ = g.call(t, http.MethodGet, "/api/v1/boards/"+session, "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestStreamPushesSnapshots(t *testing.T) {
	g := newGateway(t, nil, 100)
	session := g.openBoard(t)

	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/api/v1/boards/" + session + "/stream?token=alice"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg handlers.StreamMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, handlers.StreamTypeSnapshot, msg.Type)
	assert.Len(t, msg.Snapshot.Answers, 2)

	status, _ := g.call(t, http.MethodPost, "/api/v1/boards/"+session+"/answers/1/vote", "alice", nil)
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, events.TypeAnswerVoted, msg.Type)
	answer, ok := msg.Snapshot.Find("1")
	require.True(t, ok)
	assert.Equal(t, 2, answer.Votes)
}

func (g *gateway) streamURL(session string) string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http") + "/api/v1/boards/" + session + "/stream?token=alice"
}

func TestStreamClosesWithBoard(t *testing.T) {
	g := newGateway(t, nil, 100)
	session := g.openBoard(t)

	ws, _, err := websocket.DefaultDialer.Dial(g.streamURL(session), nil)
	require.NoError(t, err)
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg handlers.StreamMessage
	require.NoError(t, ws.ReadJSON(&msg))

	status, _ := g.call(t, http.MethodDelete, "/api/v1/boards/"+session, "", nil)
	require.Equal(t, http.StatusNoContent, status)

	_, _, err = ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
}

func TestStreamChecksOrigin(t *testing.T) {
	g := newGatewayWithOrigins(t, nil, 100, []string{"https://stackit.example"})
	session := g.openBoard(t)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(g.streamURL(session), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://stackit.example")
	ws, _, err := websocket.DefaultDialer.Dial(g.streamURL(session), header)
	require.NoError(t, err)
	ws.Close()
}

func TestHealthAndMetrics(t *testing.T) {
	g := newGateway(t, nil, 100)

	status, raw := g.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, string(raw))

	status, _ = g.call(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, raw = g.call(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "stackit_http_requests_total")
}
