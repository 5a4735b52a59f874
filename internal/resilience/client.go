package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vitorrgg/app-freteclick/internal/obs"
)

type operationKey struct{}

// WithOperation names the outbound call for latency metrics.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}

// HTTPClient performs single-attempt outbound calls guarded by a breaker and
// a per-call timeout. Transport errors and 5xx responses count as failures.
type HTTPClient struct {
	Client   *http.Client
	Breaker  *Breaker
	Timeout  time.Duration
	Upstream string
}

// NewHTTPClient builds a client whose transport emits OpenTelemetry spans.
func NewHTTPClient(upstream string, timeout time.Duration, breaker *Breaker) HTTPClient {
	return HTTPClient{
		Client:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Breaker:  breaker,
		Timeout:  timeout,
		Upstream: upstream,
	}
}

// Do sends req. The returned response body stays readable after Do returns;
// the per-call timeout is released when the body is closed.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
		obs.ObserveUpstream(cl.Upstream, operationFrom(ctx), "open", 0)
		return nil, ErrOpenCircuit
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if cl.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cl.Timeout)
	}
	start := time.Now()
	resp, err := cl.Client.Do(req.WithContext(callCtx))
	elapsed := obs.DurationMillis(time.Since(start))

	success := err == nil && resp.StatusCode < http.StatusInternalServerError
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, success)
	}
	result := "ok"
	if !success {
		result = "error"
	}
	obs.ObserveUpstream(cl.Upstream, operationFrom(ctx), result, elapsed)

	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
