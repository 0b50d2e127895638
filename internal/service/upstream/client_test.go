package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"StockForecaster/internal/domain/errs"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instantPolicy() retry.Policy {
	return retry.New(retry.WithSleep(func(context.Context, time.Duration) error { return nil }))
}

type payload struct {
	Status string `json:"status"`
	Value  int    `json:"value"`
}

func (p *payload) Validate() error {
	if p.Status != "OK" {
		return errors.New("status " + p.Status)
	}
	return nil
}

func TestDoSucceedsAfterTwoFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "OK", "value": 7})
	}))
	defer srv.Close()

	c := New(errs.ServiceMarketData, xhttp.NewClient(), WithPolicy(instantPolicy()))

	var out payload
	err := c.Do(context.Background(), &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: srv.URL + "/x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 7, out.Value)
}

func TestDoReturnsTypedErrorAfterThreeAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	c := New(errs.ServiceCompletion, xhttp.NewClient(),
		WithPolicy(instantPolicy()),
		WithLogger(logger.NewWriter(&logs)),
	)

	err := c.Do(context.Background(), &xhttp.RequestOptions{Method: xhttp.MethodPost, URL: srv.URL + "/v1/chat?key=secret"}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	ext, ok := errs.IsExternal(err)
	require.True(t, ok)
	assert.Equal(t, errs.ServiceCompletion, ext.Service)
	assert.Equal(t, http.StatusBadRequest, ext.StatusCode)

	assert.Contains(t, logs.String(), `"service":"completion"`)
	assert.Contains(t, logs.String(), `"attempt":2`)
	assert.NotContains(t, logs.String(), "secret")
}

func TestDoRetriesWhenValidateFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, `{"status":"ERROR"}`)
	}))
	defer srv.Close()

	c := New(errs.ServiceMarketData, xhttp.NewClient(), WithPolicy(instantPolicy()))

	var out payload
	err := c.Do(context.Background(), &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: srv.URL}, &out)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	ext, ok := errs.IsExternal(err)
	require.True(t, ok)
	assert.Equal(t, 0, ext.StatusCode)
	assert.Contains(t, ext.Message, "status ERROR")
}

type listPayload struct {
	Status  string   `json:"status"`
	Results []string `json:"results"`
}

func (p *listPayload) Validate() error {
	if p.Status != "OK" {
		return errors.New("status " + p.Status)
	}
	return nil
}

func TestDoDiscardsRejectedAttemptData(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = io.WriteString(w, `{"status":"ERROR","results":["stale"]}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"OK"}`)
	}))
	defer srv.Close()

	c := New(errs.ServiceMarketData, xhttp.NewClient(), WithPolicy(instantPolicy()))

	var out listPayload
	err := c.Do(context.Background(), &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: srv.URL + "/x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "OK", out.Status)
	assert.Empty(t, out.Results)
}

func TestDoLeavesDestUntouchedWhenExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ERROR","results":["stale"]}`)
	}))
	defer srv.Close()

	c := New(errs.ServiceMarketData, xhttp.NewClient(), WithPolicy(instantPolicy()))

	out := listPayload{Results: []string{"keep"}}
	err := c.Do(context.Background(), &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: srv.URL + "/x"}, &out)
	require.Error(t, err)
	assert.Equal(t, []string{"keep"}, out.Results)
}

func TestOpenReturnsLiveBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "data: hello\n")
	}))
	defer srv.Close()

	c := New(errs.ServiceCompletion, xhttp.NewClient(), WithPolicy(instantPolicy()))
	resp, err := c.Open(context.Background(), &xhttp.RequestOptions{Method: xhttp.MethodPost, URL: srv.URL})
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "data: hello\n", string(b))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBearerHeaderSent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := New(errs.ServiceMarketData, xhttp.NewClient(xhttp.WithBearerToken("k")), WithPolicy(instantPolicy()))
	require.NoError(t, c.Do(context.Background(), &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: srv.URL}, nil))
	assert.Equal(t, "Bearer k", got)
}
