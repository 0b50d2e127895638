package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"StockForecaster/internal/domain/models"
)

// mockMarket serves a fixed quote and chain per ticker. Tickers in fail return errUpstream.
type mockMarket struct {
	mu     sync.Mutex
	price  map[string]float64
	chains map[string]*models.OptionsChain
	fail   map[string]bool
	calls  []string
}

var errUpstream = errors.New("upstream down")

func newMockMarket() *mockMarket {
	return &mockMarket{price: map[string]float64{}, chains: map[string]*models.OptionsChain{}, fail: map[string]bool{}}
}

func (m *mockMarket) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockMarket) GetCurrentPrice(ctx context.Context, ticker string) (*models.StockQuote, error) {
	m.record("quote:" + ticker)
	if m.fail[ticker] {
		return nil, errUpstream
	}
	return &models.StockQuote{Ticker: ticker, Price: m.price[ticker]}, nil
}

func (m *mockMarket) GetOptionsChain(ctx context.Context, ticker string, expiration *time.Time) (*models.OptionsChain, error) {
	m.record("chain:" + ticker)
	if m.fail[ticker] {
		return nil, errUpstream
	}
	if c, ok := m.chains[ticker]; ok {
		return c, nil
	}
	return &models.OptionsChain{Ticker: ticker, UnderlyingPrice: m.price[ticker]}, nil
}

func (m *mockMarket) GetHistoricalData(ctx context.Context, ticker string, start, end time.Time, timespan string) ([]map[string]any, error) {
	return []map[string]any{}, nil
}

func (m *mockMarket) GetOptionsActivity(ctx context.Context, ticker string) ([]map[string]any, error) {
	return []map[string]any{}, nil
}

// mockCompletion answers every prompt with reply, or err when set.
type mockCompletion struct {
	mu      sync.Mutex
	reply   map[string]any
	err     error
	tokens  []string
	prompts []string
}

func (m *mockCompletion) Complete(ctx context.Context, prompt, systemPrompt string) (*models.Completion, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &models.Completion{Content: m.reply, Model: "mock-model", Usage: models.TokenUsage{TotalTokens: 42}}, nil
}

func (m *mockCompletion) StreamComplete(ctx context.Context, prompt, systemPrompt string) (<-chan string, <-chan error) {
	tokens := make(chan string, len(m.tokens))
	errc := make(chan error, 1)
	for _, t := range m.tokens {
		tokens <- t
	}
	close(tokens)
	if m.err != nil {
		errc <- m.err
	}
	close(errc)
	return tokens, errc
}

func (m *mockCompletion) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

type mockPublisher struct {
	events []*models.PredictionEvent
	err    error
}

func (m *mockPublisher) PublishPrediction(ctx context.Context, ev *models.PredictionEvent) error {
	m.events = append(m.events, ev)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

// mockCache stores JSON so hits go through the same decode path as a real backend.
type mockCache struct {
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) bool {
	b, ok := m.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(b, dest) == nil
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) {
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	m.sets++
	m.data[key] = b
}

func (m *mockCache) Delete(ctx context.Context, key string) { delete(m.data, key) }

func (m *mockCache) MakeKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{prefix}, parts...), ":")
}

func (m *mockCache) Backend() string { return "mock" }

type countingMetrics struct {
	mu          sync.Mutex
	predictions map[string]int
	published   map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{predictions: map[string]int{}, published: map[string]int{}}
}

func (m *countingMetrics) RecordUpstreamAttempt(string, string) {}
func (m *countingMetrics) RecordUpstreamLatency(string, float64) {}
func (m *countingMetrics) RecordCache(string, string) {}
func (m *countingMetrics) RecordRateLimited(string) {}

func (m *countingMetrics) RecordPrediction(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[outcome]++
}

func (m *countingMetrics) RecordEventPublished(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[outcome]++
}
