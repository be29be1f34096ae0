package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"stackit/application/ports"
	"stackit/domain/core/valueobjects"
	pkgerrors "stackit/pkg/errors"
	"stackit/pkg/observability"
)

const maxBodyBytes = 1 << 20

// ClientConfig configures the HTTP authority client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Breaker BreakerConfig
	Tracing bool
}

// BreakerConfig holds configuration for the circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ReadyToTrip trips once FailureThreshold of at least MinRequests fail
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the circuit breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// HTTPClient talks to the authority over its REST API
type HTTPClient struct {
	baseURL *url.URL
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	tracer  *observability.Tracer
	logger  *zap.Logger
}

// NewHTTPClient creates an authority client
func NewHTTPClient(cfg ClientConfig, logger *zap.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid authority base URL %q", cfg.BaseURL)
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = DefaultBreakerConfig("authority")
	}

	client := &http.Client{Timeout: cfg.Timeout}
	var tracer *observability.Tracer
	if cfg.Tracing {
		client = xray.Client(client)
		tracer = observability.NewTracer("stackit")
	}

	return &HTTPClient{
		baseURL: base,
		client:  client,
		breaker: newBreaker(cfg.Breaker, logger),
		tracer:  tracer,
		logger:  logger,
	}, nil
}

func newBreaker(config BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip if we have enough requests to make a decision
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			// the authority answered; the request was wrong, not the service
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < 500
			}
			return false
		},
	})
}

// FetchQuestion implements ports.Authority
func (c *HTTPClient) FetchQuestion(ctx context.Context, id valueobjects.QuestionID) (*ports.QuestionRecord, error) {
	var record ports.QuestionRecord
	path := "/question/" + url.PathEscape(id.String())
	if err := c.do(ctx, "fetch_question", "question", http.MethodGet, path, nil, "", &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// CastVote implements ports.Authority
func (c *HTTPClient) CastVote(ctx context.Context, questionID valueobjects.QuestionID, answerID valueobjects.AnswerID, credential string) error {
	path := fmt.Sprintf("/question/%s/answers/%s/vote",
		url.PathEscape(questionID.String()), url.PathEscape(answerID.String()))
	return c.do(ctx, "cast_vote", "answer", http.MethodPost, path, nil, credential, nil)
}

// CreateAnswer implements ports.Authority
func (c *HTTPClient) CreateAnswer(ctx context.Context, questionID valueobjects.QuestionID, text string, credential string) (*ports.AnswerRecord, error) {
	var record ports.AnswerRecord
	path := fmt.Sprintf("/question/%s/answers", url.PathEscape(questionID.String()))
	body := ports.CreateAnswerRequest{Text: text}
	if err := c.do(ctx, "create_answer", "question", http.MethodPost, path, body, credential, &record); err != nil {
		return nil, err
	}
	if record.ID.IsZero() {
		return nil, pkgerrors.NewExternalError("authority", errors.New("confirmed answer has no id"))
	}
	return &record, nil
}

func (c *HTTPClient) do(ctx context.Context, name, resource, method, path string, body interface{}, credential string, out interface{}) error {
	call := func(ctx context.Context) error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.roundTrip(ctx, method, path, body, credential, out)
		})
		return err
	}

	var err error
	if c.tracer != nil {
		err = c.tracer.TraceFunction(ctx, "authority."+name, call)
	} else {
		err = call(ctx)
	}
	if err == nil {
		return nil
	}

	c.logger.Debug("authority request failed",
		zap.String("operation", name),
		zap.String("path", path),
		zap.Error(err))
	return classify(err, resource)
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, body interface{}, credential string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

// classify maps transport failures onto the error taxonomy. A 404 is
// reported against resource, the entity the route addresses.
func classify(err error, resource string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.NewTimeoutError("authority request").WithCause(err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return pkgerrors.NewUnavailableError("authority").WithCause(err)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		appErr := pkgerrors.NewExternalError("authority", err)
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			appErr = pkgerrors.NewUnauthorizedError("authority rejected the credential").WithCause(err)
		case http.StatusNotFound:
			appErr = pkgerrors.NewNotFoundError(resource).WithCause(err)
		case http.StatusConflict:
			appErr = pkgerrors.NewConflictError("already voted").WithCode("ALREADY_VOTED").WithCause(err)
		}
		return appErr
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return pkgerrors.NewNetworkError("authority unreachable", err)
	}
	return pkgerrors.NewExternalError("authority", err)
}
