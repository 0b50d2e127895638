package api

import (
	"context"
	"net/http"
	"time"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/usecase"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type Analyzer interface {
	Analyze(ctx context.Context, p usecase.AnalyzeParams) (*models.AnalysisResult, error)
	StreamOptionsAnalysis(ctx context.Context, ticker string) (<-chan string, <-chan error, error)
}

const (
	streamWriteWait = 10 * time.Second
	// window used when only end_date is given
	analysisLookback = 30 * 24 * time.Hour
)

type AnalysisHandler struct {
	logger   *logger.Logger
	prefix   string
	analyzer Analyzer
	upgrader websocket.Upgrader
}

// NewAnalysisHandler mounts under prefix. Stream upgrades are accepted from
// origins, or from any origin when origins contains "*".
func NewAnalysisHandler(l *logger.Logger, prefix string, a Analyzer, origins []string) *AnalysisHandler {
	return &AnalysisHandler{
		logger:   l,
		prefix:   prefix,
		analyzer: a,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group(h.prefix + "/analysis")
	g.POST("/analyze", h.Analyze)
	g.GET("/stream/:ticker", h.Stream)
}

func (h *AnalysisHandler) Analyze(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker, err := models.NormalizeTicker(req.Ticker)
	if err != nil {
		return respondError(c, h.logger, "analyze", err)
	}

	p := usecase.AnalyzeParams{Ticker: ticker, Type: models.AnalysisType(req.AnalysisType)}
	if req.StartDate != "" || req.EndDate != "" {
		from, to, err := util.DateRange(req.StartDate, req.EndDate, time.Now().UTC(), analysisLookback)
		if err != nil {
			return respondError(c, h.logger, "analyze", errs.NewValidationError("start_date", err.Error()))
		}
		p.Start, p.End = &from, &to
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), p)
	if err != nil {
		return respondError(c, h.logger, "analyze", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Stream pushes options-analysis fragments as text frames and closes the
// socket when the model finishes. Failures before the upgrade are plain HTTP errors.
func (h *AnalysisHandler) Stream(c echo.Context) error {
	ticker, err := models.NormalizeTicker(c.Param("ticker"))
	if err != nil {
		return respondError(c, h.logger, "stream", err)
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	tokens, errc, err := h.analyzer.StreamOptionsAnalysis(ctx, ticker)
	if err != nil {
		return respondError(c, h.logger, "stream", err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", logger.String("ticker", ticker), logger.Error(err))
		return nil
	}
	defer conn.Close()

	sent := 0
	for tok := range tokens {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tok)); err != nil {
			h.logger.Warn("stream client gone", logger.String("ticker", ticker), logger.Int("sent", sent), logger.Error(err))
			cancel()
			return nil
		}
		sent++
	}

	code, reason := websocket.CloseNormalClosure, ""
	if err := <-errc; err != nil {
		h.logger.Error("analysis stream failed", logger.String("ticker", ticker), logger.Error(err))
		code, reason = websocket.CloseInternalServerErr, "analysis stream failed"
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
	h.logger.Info("analysis stream finished", logger.String("ticker", ticker), logger.Int("fragments", sent))
	return nil
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get(echo.HeaderOrigin)
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
