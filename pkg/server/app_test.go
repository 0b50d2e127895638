package server

import (
	"context"
	"net"
	"testing"
	"time"

	"StockForecaster/internal/domain/models"
	icache "StockForecaster/internal/service/cache"
	pkgcache "StockForecaster/pkg/cache"
	"StockForecaster/pkg/config"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeTracker struct{ closed bool }

func (c *closeTracker) PublishPrediction(context.Context, *models.PredictionEvent) error { return nil }

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunShutsDownOnCancelAndClosesResources(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)

	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(freePort(t)), xhttp.WithMetrics("", 0, nil, nil))
	store := icache.NewStoreWithBackend(pkgcache.NewMemoryCache(), icache.BackendMemory, time.Hour, logger.Nop(), metrics.Nop{})
	pub := &closeTracker{}

	app := New(cfg, logger.Nop(), srv, store, pub)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, pub.closed)
}
