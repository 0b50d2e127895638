package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"time"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/repository"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"
	"StockForecaster/pkg/retry"
)

// Validator is implemented by response types that carry an application-level
// status. A failing Validate counts as a failed attempt.
type Validator interface {
	Validate() error
}

// Client applies one retry policy to every call against a single upstream service.
type Client struct {
	service string
	http    *xhttp.Client
	policy  retry.Policy
	log     *logger.Logger
	metrics repository.Metrics
}

type Option func(*Client)

func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New wraps httpClient for service. service names the upstream in errors, logs and metrics.
func New(service string, httpClient *xhttp.Client, opts ...Option) *Client {
	c := &Client{
		service: service,
		http:    httpClient,
		policy:  retry.Default(),
		log:     logger.Nop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logger.String("service", service))
	return c
}

// Do sends the request and decodes a 2xx JSON body into dest, retrying per policy.
// After the last attempt fails it returns *errs.ExternalAPIError.
func (c *Client) Do(ctx context.Context, opts *xhttp.RequestOptions, dest interface{}) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordUpstreamLatency(c.service, time.Since(start).Seconds())
	}()

	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		out := freshTarget(dest)
		if err := c.http.SendAndParse(ctx, opts, out); err != nil {
			return c.attemptFailed(opts, attempt, err)
		}
		if v, ok := out.(Validator); ok {
			if err := v.Validate(); err != nil {
				return c.attemptFailed(opts, attempt, err)
			}
		}
		commit(dest, out)
		c.metrics.RecordUpstreamAttempt(c.service, "success")
		return nil
	})
	if err != nil {
		return c.exhausted(opts, err)
	}
	return nil
}

// freshTarget returns a zero value of dest's pointee so a rejected attempt
// leaves nothing behind for the next one. Non-pointer targets are used as is.
func freshTarget(dest interface{}) interface{} {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return dest
	}
	return reflect.New(v.Elem().Type()).Interface()
}

// commit copies an accepted attempt into dest.
func commit(dest, out interface{}) {
	if dest == out {
		return
	}
	reflect.ValueOf(dest).Elem().Set(reflect.ValueOf(out).Elem())
}

// Open sends the request and returns the live response once a 2xx status is
// received, retrying per policy. The caller must close the body.
func (c *Client) Open(ctx context.Context, opts *xhttp.RequestOptions) (*http.Response, error) {
	var resp *http.Response
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		r, err := c.http.SendRequest(ctx, opts)
		if err != nil {
			return c.attemptFailed(opts, attempt, err)
		}
		if err := xhttp.CheckStatus(r); err != nil {
			_ = r.Body.Close()
			return c.attemptFailed(opts, attempt, err)
		}
		c.metrics.RecordUpstreamAttempt(c.service, "success")
		resp = r
		return nil
	})
	if err != nil {
		return nil, c.exhausted(opts, err)
	}
	return resp, nil
}

func (c *Client) attemptFailed(opts *xhttp.RequestOptions, attempt int, err error) error {
	c.metrics.RecordUpstreamAttempt(c.service, "error")
	c.log.Warn("upstream attempt failed",
		logger.String("method", opts.Method),
		logger.String("path", pathOf(opts.URL)),
		logger.Int("attempt", attempt),
		logger.Int("status", statusOf(err)),
		logger.Error(err),
	)
	return err
}

func (c *Client) exhausted(opts *xhttp.RequestOptions, err error) error {
	status := statusOf(err)
	c.log.Error("upstream request failed",
		logger.String("method", opts.Method),
		logger.String("path", pathOf(opts.URL)),
		logger.Int("status", status),
		logger.Error(err),
	)
	var ext *errs.ExternalAPIError
	if errors.As(err, &ext) {
		return ext
	}
	return errs.NewExternalAPIError(c.service, err.Error(), status, err)
}

func statusOf(err error) int {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var ext *errs.ExternalAPIError
	if errors.As(err, &ext) {
		return ext.StatusCode
	}
	return 0
}

// pathOf keeps query strings (which may carry credentials) out of logs.
func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
