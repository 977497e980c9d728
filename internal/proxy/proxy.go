// Package proxy forwards chat traffic to the external AI service and
// synthesizes a fallback response when the service cannot be reached.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/skybound-ai/gateway/internal/model"
	"github.com/skybound-ai/gateway/pkg/logger"
	"github.com/skybound-ai/gateway/pkg/metrics"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 10 << 20

// Fallback reasons.
const (
	ReasonTransport   = "transport"
	ReasonTimeout     = "timeout"
	ReasonInvalidBody = "invalid_body"
)

var errNotJSON = errors.New("upstream response is not JSON")

// Config holds forwarder settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retries is how many extra attempts an idempotent request gets after a
	// transport failure.
	Retries    int
	HTTPClient *http.Client
}

// Request describes one call to the AI service.
type Request struct {
	Method string
	// Path is appended to the base URL and may carry a query string.
	Path string
	// Route is a low-cardinality name for metrics and spans.
	Route string
	Body  []byte
	// ConversationID is echoed in the fallback payload; empty means a
	// placeholder is generated.
	ConversationID string
}

// Result is either the upstream response (Fallback == nil) or a synthesized
// fallback (Fallback != nil, StatusCode 503).
type Result struct {
	StatusCode int
	Body       []byte
	Fallback   *model.UnavailableResponse
	Reason     string
	Err        error
}

// Degraded reports whether the result is a synthesized fallback.
func (r *Result) Degraded() bool {
	return r.Fallback != nil
}

// Forwarder relays requests to the AI service.
type Forwarder struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	retries int
	logger  *logger.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// New creates a forwarder for the AI service at cfg.BaseURL.
func New(cfg Config, log *logger.Logger) *Forwarder {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &Forwarder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		timeout: cfg.Timeout,
		retries: retries,
		logger:  log,
		tracer:  otel.Tracer("github.com/skybound-ai/gateway/internal/proxy"),
		now:     time.Now,
	}
}

// Forward sends req to the AI service. It never returns an error: transport
// failures, timeouts and non-JSON bodies all become a fallback Result.
func (f *Forwarder) Forward(ctx context.Context, req Request) *Result {
	route := req.Route
	if route == "" {
		route = req.Path
	}

	ctx, span := f.tracer.Start(ctx, "ai_service "+req.Method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("ai.route", route),
		),
	)
	defer span.End()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	status, body, err := f.do(ctx, req)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		reason := classify(ctx, err)
		metrics.RecordUpstream(route, reason, elapsed)
		metrics.RecordFallback(route, reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)

		f.logger.Warn("AI service unavailable, returning fallback",
			zap.String("method", req.Method),
			zap.String("route", route),
			zap.String("reason", reason),
			zap.Error(err),
		)

		return &Result{
			StatusCode: http.StatusServiceUnavailable,
			Fallback:   model.NewUnavailableResponse(req.ConversationID, f.now()),
			Reason:     reason,
			Err:        err,
		}
	}

	metrics.RecordUpstream(route, "ok", elapsed)
	span.SetAttributes(attribute.Int("http.status_code", status))

	return &Result{
		StatusCode: status,
		Body:       body,
	}
}

func (f *Forwarder) do(ctx context.Context, req Request) (int, []byte, error) {
	url := f.baseURL + req.Path

	attempts := backoff.BackOff(&backoff.StopBackOff{})
	if req.Method == http.MethodGet && f.retries > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 100 * time.Millisecond
		eb.MaxInterval = 2 * time.Second
		attempts = backoff.WithMaxRetries(eb, uint64(f.retries))
	}

	var resp *http.Response
	err := backoff.Retry(func() error {
		var body io.Reader
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			body = bytes.NewReader(req.Body)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

		r, err := f.client.Do(httpReq)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, backoff.WithContext(attempts, ctx))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(data) {
		return 0, nil, errNotJSON
	}

	return resp.StatusCode, data, nil
}

func classify(ctx context.Context, err error) string {
	if errors.Is(err, errNotJSON) {
		return ReasonInvalidBody
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransport
}
