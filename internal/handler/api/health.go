package api

import (
	"context"
	"net/http"

	"StockForecaster/internal/usecase"
	xhttp "StockForecaster/pkg/http"

	"github.com/labstack/echo/v4"
)

type HealthChecker interface {
	Liveness() usecase.Liveness
	Readiness(ctx context.Context) usecase.Readiness
}

type Welcome struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Docs    string `json:"docs"`
}

type HealthHandler struct {
	prefix  string
	version string
	health  HealthChecker
}

func NewHealthHandler(prefix, version string, h HealthChecker) *HealthHandler {
	return &HealthHandler{prefix: prefix, version: version, health: h}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Ping)

	g := e.Group(h.prefix + "/health")
	g.GET("", h.Liveness)
	g.GET("/", h.Liveness)
	g.GET("/ready", h.Readiness)
}

func (h *HealthHandler) Root(c echo.Context) error {
	return xhttp.SuccessResponse(c, Welcome{
		Message: "Welcome to Stock Forecaster",
		Version: h.version,
		Docs:    "/docs",
	})
}

func (h *HealthHandler) Ping(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "healthy"})
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.health.Liveness())
}

// Readiness answers 503 when any upstream probe fails.
func (h *HealthHandler) Readiness(c echo.Context) error {
	r := h.health.Readiness(c.Request().Context())
	if !r.Ready {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, r)
	}
	return xhttp.SuccessResponse(c, r)
}
