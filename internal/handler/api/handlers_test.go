package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/usecase"
	"StockForecaster/pkg/http/middleware"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "/api/v1"

type fakePredictor struct {
	err      error
	calls    []string
	reasons  []bool
	tf       models.Timeframe
	batchIDs []string
}

func (f *fakePredictor) Predict(ctx context.Context, ticker string, tf models.Timeframe, includeReasoning bool) (*models.PredictionResult, error) {
	f.calls = append(f.calls, ticker)
	f.reasons = append(f.reasons, includeReasoning)
	f.tf = tf
	if f.err != nil {
		return nil, f.err
	}
	return &models.PredictionResult{Ticker: ticker, Timeframe: tf, Direction: models.Bullish, Confidence: 7}, nil
}

func (f *fakePredictor) BatchPredict(ctx context.Context, tickers []string, tf models.Timeframe) *models.BatchPredictionResult {
	f.calls = append(f.calls, tickers...)
	preds := make([]models.PredictionResult, 0, len(tickers))
	for _, t := range tickers {
		preds = append(preds, models.PredictionResult{Ticker: t})
	}
	return models.NewBatchResult("job-123", preds)
}

type fakeAnalyzer struct {
	got       usecase.AnalyzeParams
	err       error
	tokens    []string
	streamErr error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, p usecase.AnalyzeParams) (*models.AnalysisResult, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnalysisResult{Ticker: p.Ticker, AnalysisType: p.Type, Summary: "ok", Recommendations: []string{}}, nil
}

func (f *fakeAnalyzer) StreamOptionsAnalysis(ctx context.Context, ticker string) (<-chan string, <-chan error, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	tokens := make(chan string, len(f.tokens))
	for _, t := range f.tokens {
		tokens <- t
	}
	close(tokens)
	errc := make(chan error, 1)
	if f.streamErr != nil {
		errc <- f.streamErr
	}
	close(errc)
	return tokens, errc, nil
}

type fakeHealth struct{ ready bool }

func (f fakeHealth) Liveness() usecase.Liveness {
	return usecase.Liveness{Status: "healthy", Version: "1.0.0", Service: "Stock Forecaster"}
}

func (f fakeHealth) Readiness(ctx context.Context) usecase.Readiness {
	return usecase.Readiness{Ready: f.ready, Services: map[string]usecase.ServiceStatus{
		errs.ServiceMarketData: {Healthy: f.ready, Message: "Connected"},
	}}
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newEcho(p Predictor, a Analyzer, h HealthChecker) *echo.Echo {
	e := echo.New()
	NewPredictionsHandler(logger.Nop(), prefix, p).RegisterRoutes(e)
	NewAnalysisHandler(logger.Nop(), prefix, a, []string{"http://localhost:3000"}).RegisterRoutes(e)
	NewHealthHandler(prefix, "1.0.0", h).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestPredictDefaultsAndNormalizesTicker(t *testing.T) {
	p := &fakePredictor{}
	e := newEcho(p, &fakeAnalyzer{}, fakeHealth{})

	rec, env := do(t, e, http.MethodPost, prefix+"/predictions/predict", `{"ticker":" aapl "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AAPL"}, p.calls)
	assert.Equal(t, []bool{true}, p.reasons)
	assert.Equal(t, models.Timeframe1D, p.tf)

	var res models.PredictionResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, models.Bullish, res.Direction)
}

func TestPredictHonorsIncludeReasoningFalse(t *testing.T) {
	p := &fakePredictor{}
	e := newEcho(p, &fakeAnalyzer{}, fakeHealth{})

	rec, _ := do(t, e, http.MethodPost, prefix+"/predictions/predict", `{"ticker":"MSFT","timeframe":"1w","include_reasoning":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bool{false}, p.reasons)
	assert.Equal(t, models.Timeframe1W, p.tf)
}

func TestPredictValidation(t *testing.T) {
	p := &fakePredictor{}
	e := newEcho(p, &fakeAnalyzer{}, fakeHealth{})

	rec, env := do(t, e, http.MethodPost, prefix+"/predictions/predict", `{"timeframe":"2d"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), `"field":"ticker"`)
	assert.Contains(t, string(env.Data), `"field":"timeframe"`)

	rec, env = do(t, e, http.MethodPost, prefix+"/predictions/predict", `{"ticker":"$$$"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_VALIDATION")
	assert.Empty(t, p.calls)
}

func TestPredictFailureIs400(t *testing.T) {
	cause := errors.New(`market_data API error: status 502: {"upstream":"internal body"}`)
	p := &fakePredictor{err: &errs.PredictionFailed{Ticker: "AAPL", Cause: cause}}
	e := newEcho(p, &fakeAnalyzer{}, fakeHealth{})

	rec, env := do(t, e, http.MethodPost, prefix+"/predictions/predict", `{"ticker":"AAPL"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_PREDICTION_FAILED")
	assert.Contains(t, string(env.Data), "Failed to generate prediction for AAPL")
	assert.NotContains(t, rec.Body.String(), "internal body")
}

func TestPredictUnexpectedErrorIsGeneric500(t *testing.T) {
	p := &fakePredictor{err: errors.New("secret upstream detail")}
	e := newEcho(p, &fakeAnalyzer{}, fakeHealth{})

	rec, env := do(t, e, http.MethodPost, prefix+"/predictions/predict", `{"ticker":"AAPL"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, string(env.Data), "Internal server error")
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestPredictByTicker(t *testing.T) {
	p := &fakePredictor{}
	e := newEcho(p, &fakeAnalyzer{}, fakeHealth{})

	rec, _ := do(t, e, http.MethodGet, prefix+"/predictions/predict/tsla?timeframe=1m&include_reasoning=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"TSLA"}, p.calls)
	assert.Equal(t, []bool{false}, p.reasons)
	assert.Equal(t, models.Timeframe1M, p.tf)

	rec, _ = do(t, e, http.MethodGet, prefix+"/predictions/predict/tsla?include_reasoning=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchPredict(t *testing.T) {
	p := &fakePredictor{}
	e := newEcho(p, &fakeAnalyzer{}, fakeHealth{})

	rec, env := do(t, e, http.MethodPost, prefix+"/predictions/batch-predict", `{"tickers":["aapl","msft"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AAPL", "MSFT"}, p.calls)

	var res models.BatchPredictionResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "job-123", res.JobID)
	assert.Equal(t, "completed", res.Status)
	assert.Len(t, res.Predictions, 2)
}

func TestBatchPredictLimits(t *testing.T) {
	e := newEcho(&fakePredictor{}, &fakeAnalyzer{}, fakeHealth{})

	rec, _ := do(t, e, http.MethodPost, prefix+"/predictions/batch-predict", `{"tickers":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	eleven := `{"tickers":["A","B","C","D","E","F","G","H","I","J","K"]}`
	rec, _ = do(t, e, http.MethodPost, prefix+"/predictions/batch-predict", eleven)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobStatus(t *testing.T) {
	e := newEcho(&fakePredictor{}, &fakeAnalyzer{}, fakeHealth{})

	rec, env := do(t, e, http.MethodGet, prefix+"/predictions/predictions/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var js JobStatus
	require.NoError(t, json.Unmarshal(env.Data, &js))
	assert.Equal(t, JobStatus{JobID: "abc", Status: "completed", Message: msgSynchronousJobs}, js)
}

func TestAnalyze(t *testing.T) {
	a := &fakeAnalyzer{}
	e := newEcho(&fakePredictor{}, a, fakeHealth{})

	rec, _ := do(t, e, http.MethodPost, prefix+"/analysis/analyze", `{"ticker":"nvda","analysis_type":"options","start_date":"2024-01-02"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NVDA", a.got.Ticker)
	assert.Equal(t, models.AnalysisOptions, a.got.Type)
	require.NotNil(t, a.got.Start)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *a.got.Start)
	require.NotNil(t, a.got.End)
	assert.True(t, a.got.End.After(*a.got.Start))

	rec, _ = do(t, e, http.MethodPost, prefix+"/analysis/analyze", `{"ticker":"NVDA","analysis_type":"options","end_date":"2024-03-31"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *a.got.Start)
}

func TestAnalyzeErrors(t *testing.T) {
	e := newEcho(&fakePredictor{}, &fakeAnalyzer{}, fakeHealth{})
	rec, _ := do(t, e, http.MethodPost, prefix+"/analysis/analyze", `{"ticker":"NVDA","analysis_type":"astrology"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPost, prefix+"/analysis/analyze", `{"ticker":"NVDA","analysis_type":"options","end_date":"01/02/2024"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPost, prefix+"/analysis/analyze", `{"ticker":"NVDA","analysis_type":"options","start_date":"2024-03-01","end_date":"2024-02-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e = newEcho(&fakePredictor{}, &fakeAnalyzer{err: errors.New("completion down")}, fakeHealth{})
	rec, _ = do(t, e, http.MethodPost, prefix+"/analysis/analyze", `{"ticker":"NVDA","analysis_type":"options"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthRoutes(t *testing.T) {
	e := newEcho(&fakePredictor{}, &fakeAnalyzer{}, fakeHealth{ready: true})

	rec, env := do(t, e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Welcome to Stock Forecaster")

	rec, env = do(t, e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, string(env.Data))

	for _, path := range []string{prefix + "/health", prefix + "/health/"} {
		rec, env = do(t, e, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"status":"healthy","version":"1.0.0","service":"Stock Forecaster"}`, string(env.Data))
	}

	rec, _ = do(t, e, http.MethodGet, prefix+"/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessNotReady(t *testing.T) {
	e := newEcho(&fakePredictor{}, &fakeAnalyzer{}, fakeHealth{ready: false})
	rec, env := do(t, e, http.MethodGet, prefix+"/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(env.Data), `"ready":false`)
}

func dialStream(t *testing.T, e *echo.Echo, ticker string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + prefix + "/analysis/stream/" + ticker
	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://localhost:3000"}})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamSendsFragmentsThenCloses(t *testing.T) {
	a := &fakeAnalyzer{tokens: []string{"Calls ", "lead"}}
	conn := dialStream(t, newEcho(&fakePredictor{}, a, fakeHealth{}), "tsla")

	var got []string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
			break
		}
		got = append(got, string(msg))
	}
	assert.Equal(t, []string{"Calls ", "lead"}, got)
}

func TestStreamReportsUpstreamFailureInCloseFrame(t *testing.T) {
	a := &fakeAnalyzer{tokens: []string{"partial"}, streamErr: errors.New("completion API error")}
	conn := dialStream(t, newEcho(&fakePredictor{}, a, fakeHealth{}), "TSLA")

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "partial", string(msg))

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), err)
}

func TestStreamRejectsBadTickerBeforeUpgrade(t *testing.T) {
	e := newEcho(&fakePredictor{}, &fakeAnalyzer{}, fakeHealth{})
	rec, _ := do(t, e, http.MethodGet, prefix+"/analysis/stream/$$$", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToAppError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToAppError(errs.NewValidationError("ticker", "bad")).Status)
	assert.Equal(t, http.StatusBadRequest, ToAppError(errs.NewDomainError("nope", nil)).Status)

	rl := ToAppError(&errs.RateLimitError{RetryAfter: 1500 * time.Millisecond})
	assert.Equal(t, http.StatusTooManyRequests, rl.Status)
	assert.Equal(t, 2, rl.Params["retry_after"])

	ext := ToAppError(errs.NewExternalAPIError(errs.ServiceMarketData, "timeout", 0, nil))
	assert.Equal(t, http.StatusInternalServerError, ext.Status)
	assert.Equal(t, "Internal server error", ext.Message)
}

type blockAll struct{}

func (blockAll) IsAllowed(string) bool { return false }
func (blockAll) RetryAfter(string) time.Duration { return 1500 * time.Millisecond }

type rateLimitCounter struct {
	metrics.Nop
	routes []string
}

func (r *rateLimitCounter) RecordRateLimited(route string) { r.routes = append(r.routes, route) }

func TestRateLimitedRejectionUsesErrorEnvelope(t *testing.T) {
	m := &rateLimitCounter{}
	e := newEcho(&fakePredictor{}, &fakeAnalyzer{}, fakeHealth{})
	e.Use(middleware.RateLimit(blockAll{}, RateLimited(logger.Nop(), m)))

	rec, env := do(t, e, http.MethodGet, prefix+"/predictions/predict/AAPL", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, http.StatusTooManyRequests, env.Status)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	var details []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &details))
	require.Len(t, details, 1)
	assert.Equal(t, "ERR_RATE_LIMITED", details[0]["code"])
	assert.Equal(t, map[string]interface{}{"retry_after": float64(2)}, details[0]["params"])
	assert.Equal(t, []string{prefix + "/predictions/predict/:ticker"}, m.routes)
}
