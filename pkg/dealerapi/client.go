// Package dealerapi talks to the collaborator services behind the review page:
// the dealer service, the car catalog and the review-submission endpoint.
//
// Every response is decoded the same way into a Result: the payload plus the
// status code embedded in the body. Transport problems are errors; an embedded
// non-200 status is not.
package dealerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bestcars/dealer-review/internal/models"
	"github.com/bestcars/dealer-review/pkg/circuitbreaker"
	apperrors "github.com/bestcars/dealer-review/pkg/errors"
	"github.com/bestcars/dealer-review/pkg/httpclient"
	"github.com/bestcars/dealer-review/pkg/logger"
	"github.com/bestcars/dealer-review/pkg/metrics"
	"github.com/bestcars/dealer-review/pkg/tracing"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const (
	serviceName = "djangoapp"

	opGetDealer = "get_dealer"
	opGetCars   = "get_cars"
	opAddReview = "add_review"

	// maxResponseBytes caps how much of an upstream body is read
	maxResponseBytes = 4 << 20
)

var (
	// ErrTransport means the request never produced a response (network failure,
	// client timeout, open circuit). Such errors also match apperrors.ErrUnavailable.
	ErrTransport = errors.New("upstream transport failure")

	// ErrMalformedResponse means a response arrived but its body could not be decoded
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// StatusError reports a non-2xx HTTP status on an endpoint whose body is not trusted
// in that case.
type StatusError struct {
	Operation string
	Code      int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected HTTP status %d", e.Operation, e.Code)
}

// Result is the decoded outcome of a collaborator call: Ok(payload) when the
// embedded status is 200, Failed(status, message) otherwise. Status is 0 when
// the body carries no status field.
type Result[T any] struct {
	Payload    T
	Status     int
	Message    string
	HTTPStatus int
}

// OK reports whether the body carried status 200
func (r Result[T]) OK() bool {
	return r.Status == http.StatusOK
}

// envelope holds the fields every collaborator body may carry
type envelope struct {
	Status  json.RawMessage `json:"status"`
	Message string          `json:"message"`
}

// API is the set of collaborator calls the review page needs
type API interface {
	GetDealer(ctx context.Context, dealerID int) (*Result[[]models.Dealer], error)
	GetCarModels(ctx context.Context) (*Result[[]models.CarModel], error)
	AddReview(ctx context.Context, submission *models.ReviewSubmission) (*Result[struct{}], error)
}

// Client calls the collaborator services under a single base URL
type Client struct {
	baseURL      string
	httpClient   httpclient.Client
	readBreaker  *gobreaker.CircuitBreaker
	writeBreaker *gobreaker.CircuitBreaker
}

var _ API = (*Client)(nil)

// NewClient creates a client rooted at baseURL (for example "http://host/djangoapp/")
func NewClient(baseURL string, httpClient httpclient.Client) *Client {
	readCfg := circuitbreaker.DefaultConfig("dealer-service-read")
	readCfg.IsSuccessful = isBreakerSuccess
	writeCfg := circuitbreaker.DefaultConfig("dealer-service-write")
	writeCfg.IsSuccessful = isBreakerSuccess

	return &Client{
		baseURL:      normalizeBase(baseURL),
		httpClient:   httpClient,
		readBreaker:  circuitbreaker.NewCircuitBreaker(readCfg),
		writeBreaker: circuitbreaker.NewCircuitBreaker(writeCfg),
	}
}

// WithBaseURL returns a client for another base URL sharing transport and breakers.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.baseURL = normalizeBase(baseURL)
	return &clone
}

// BaseURL returns the base URL requests are resolved against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Available reports whether reads are currently let through by the breaker
func (c *Client) Available() bool {
	return c.readBreaker.State() != gobreaker.StateOpen
}

// GetDealer fetches GET {base}/dealer/{id}
func (c *Client) GetDealer(ctx context.Context, dealerID int) (*Result[[]models.Dealer], error) {
	target := c.baseURL + "/dealer/" + strconv.Itoa(dealerID)
	return call(ctx, c, c.readBreaker, opGetDealer, http.MethodGet, target, nil, true, func(body []byte) ([]models.Dealer, error) {
		var raw struct {
			Dealer json.RawMessage `json:"dealer"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, err
		}
		var dealers []models.Dealer
		err := decodeList(raw.Dealer, &dealers)
		return dealers, err
	})
}

// GetCarModels fetches GET {base}/get_cars
func (c *Client) GetCarModels(ctx context.Context) (*Result[[]models.CarModel], error) {
	target := c.baseURL + "/get_cars"
	return call(ctx, c, c.readBreaker, opGetCars, http.MethodGet, target, nil, true, func(body []byte) ([]models.CarModel, error) {
		var raw struct {
			CarModels json.RawMessage `json:"CarModels"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, err
		}
		var cars []models.CarModel
		err := decodeList(raw.CarModels, &cars)
		return cars, err
	})
}

// AddReview posts the review as JSON to {base}/add_review. The body is decoded
// whatever the HTTP status, since the endpoint reports rejections in the body.
func (c *Client) AddReview(ctx context.Context, submission *models.ReviewSubmission) (*Result[struct{}], error) {
	payload, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("failed to encode review: %w", err)
	}
	target := c.baseURL + "/add_review"
	return call(ctx, c, c.writeBreaker, opAddReview, http.MethodPost, target, payload, false, func([]byte) (struct{}, error) {
		return struct{}{}, nil
	})
}

func call[T any](
	ctx context.Context,
	c *Client,
	breaker *gobreaker.CircuitBreaker,
	operation, method, target string,
	body []byte,
	requireSuccessCode bool,
	decodePayload func([]byte) (T, error),
) (*Result[T], error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "dealerapi."+operation,
		attribute.String("http.request.method", method),
		attribute.String("url.full", target),
	)

	result, err := circuitbreaker.Execute(breaker, func() (*Result[T], error) {
		return doRequest(ctx, c, operation, method, target, body, requireSuccessCode, decodePayload)
	})
	if err != nil && circuitbreaker.IsRejected(err) {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if errors.Is(err, ErrTransport) {
		err = apperrors.UnavailableError(serviceName, err)
	}

	duration := metrics.MeasureDuration(start)
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case result.Status != 0 && !result.OK():
		status = "rejected"
	}
	metrics.UpstreamRequestDuration.WithLabelValues(operation, status).Observe(duration)
	metrics.UpstreamRequestTotal.WithLabelValues(operation, status).Inc()

	fields := []zap.Field{zap.String("method", method), zap.String("url", target)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	} else {
		fields = append(fields, zap.Int("http_status", result.HTTPStatus), zap.Int("body_status", result.Status))
		span.SetAttributes(attribute.Int("http.response.status_code", result.HTTPStatus))
	}
	logger.LogAPICall(ctx, serviceName, operation, status, duration, fields...)
	tracing.EndSpan(span, err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func doRequest[T any](
	ctx context.Context,
	c *Client,
	operation, method, target string,
	body []byte,
	requireSuccessCode bool,
	decodePayload func([]byte) (T, error),
) (*Result[T], error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.InjectHeaders(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", operation, ErrTransport, err)
	}
	defer resp.Body.Close()

	if requireSuccessCode && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return nil, &StatusError{Operation: operation, Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", operation, ErrTransport, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", operation, ErrMalformedResponse, err)
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", operation, ErrMalformedResponse, err)
	}

	return &Result[T]{
		Payload:    payload,
		Status:     parseStatus(env.Status),
		Message:    env.Message,
		HTTPStatus: resp.StatusCode,
	}, nil
}

// parseStatus accepts the status as a JSON number or numeric string; anything
// else counts as absent.
func parseStatus(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return 0
}

// decodeList decodes a JSON array into out. Absent, null or non-array values
// decode as an empty list.
func decodeList[T any](raw json.RawMessage, out *[]T) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		*out = nil
		return nil
	}
	return json.Unmarshal(raw, out)
}

// isBreakerSuccess counts only unreachable or failing upstreams against the breaker
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code < http.StatusInternalServerError
	}
	return !errors.Is(err, ErrTransport)
}

func normalizeBase(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
