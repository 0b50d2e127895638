package usecase

import (
	"context"
	"sync"

	"StockForecaster/internal/domain/errs"
	dsvc "StockForecaster/internal/domain/service"
	"StockForecaster/pkg/logger"
)

const (
	probeTicker       = "AAPL"
	probePrompt       = "Test"
	probeSystemPrompt = "Reply with OK"
	statusHealthy     = "healthy"
	msgConnected      = "Connected"
)

type Liveness struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Service string `json:"service"`
}

type ServiceStatus struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

type Readiness struct {
	Ready    bool                     `json:"ready"`
	Services map[string]ServiceStatus `json:"services"`
}

type Health struct {
	market     dsvc.MarketData
	completion dsvc.Completion
	log        *logger.Logger
	version    string
	service    string
}

func NewHealth(market dsvc.MarketData, completion dsvc.Completion, log *logger.Logger, version, service string) *Health {
	return &Health{market: market, completion: completion, log: log, version: version, service: service}
}

func (h *Health) Liveness() Liveness {
	return Liveness{Status: statusHealthy, Version: h.version, Service: h.service}
}

// Readiness probes both upstreams concurrently with real calls.
func (h *Health) Readiness(ctx context.Context) Readiness {
	probes := map[string]func(context.Context) error{
		errs.ServiceMarketData: func(ctx context.Context) error {
			_, err := h.market.GetCurrentPrice(ctx, probeTicker)
			return err
		},
		errs.ServiceCompletion: func(ctx context.Context) error {
			_, err := h.completion.Complete(ctx, probePrompt, probeSystemPrompt)
			return err
		},
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = Readiness{Ready: true, Services: make(map[string]ServiceStatus, len(probes))}
	)
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe func(context.Context) error) {
			defer wg.Done()
			st := ServiceStatus{Healthy: true, Message: msgConnected}
			if err := probe(ctx); err != nil {
				h.log.Error("health check failed", logger.String("service", name), logger.Error(err))
				st = ServiceStatus{Healthy: false, Message: err.Error()}
			}
			mu.Lock()
			out.Services[name] = st
			if !st.Healthy {
				out.Ready = false
			}
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()
	return out
}
