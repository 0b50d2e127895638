package api

import (
	"context"

	"StockForecaster/internal/domain/models"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/logger"

	"github.com/labstack/echo/v4"
)

type Predictor interface {
	Predict(ctx context.Context, ticker string, tf models.Timeframe, includeReasoning bool) (*models.PredictionResult, error)
	BatchPredict(ctx context.Context, tickers []string, tf models.Timeframe) *models.BatchPredictionResult
}

const msgSynchronousJobs = "Batch prediction jobs are currently executed synchronously"

type JobStatus struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type PredictionsHandler struct {
	logger    *logger.Logger
	prefix    string
	predictor Predictor
}

// NewPredictionsHandler mounts under prefix, e.g. "/api/v1".
func NewPredictionsHandler(l *logger.Logger, prefix string, p Predictor) *PredictionsHandler {
	return &PredictionsHandler{logger: l, prefix: prefix, predictor: p}
}

func (h *PredictionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group(h.prefix + "/predictions")
	g.POST("/predict", h.Predict)
	g.GET("/predict/:ticker", h.PredictByTicker)
	g.POST("/batch-predict", h.BatchPredict)
	g.GET("/predictions/:job_id", h.JobStatus)
}

func (h *PredictionsHandler) Predict(c echo.Context) error {
	req := &models.PredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	include := req.IncludeReasoning == nil || *req.IncludeReasoning
	return h.predict(c, req.Ticker, req.Timeframe, include)
}

func (h *PredictionsHandler) PredictByTicker(c echo.Context) error {
	req := &models.PredictionQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.predict(c, req.Ticker, req.Timeframe, req.IncludeReasoning == "true")
}

func (h *PredictionsHandler) predict(c echo.Context, rawTicker, rawTF string, includeReasoning bool) error {
	ticker, err := models.NormalizeTicker(rawTicker)
	if err != nil {
		return respondError(c, h.logger, "predict", err)
	}
	tf, err := models.ParseTimeframe(rawTF)
	if err != nil {
		return respondError(c, h.logger, "predict", err)
	}

	res, err := h.predictor.Predict(c.Request().Context(), ticker, tf, includeReasoning)
	if err != nil {
		return respondError(c, h.logger, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsHandler) BatchPredict(c echo.Context) error {
	req := &models.BatchPredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tickers, err := models.NormalizeTickers(req.Tickers)
	if err != nil {
		return respondError(c, h.logger, "batch_predict", err)
	}
	tf, err := models.ParseTimeframe(req.Timeframe)
	if err != nil {
		return respondError(c, h.logger, "batch_predict", err)
	}

	res := h.predictor.BatchPredict(c.Request().Context(), tickers, tf)
	h.logger.Info("batch prediction finished",
		logger.String("job_id", res.JobID),
		logger.Int("requested", len(tickers)),
		logger.Int("succeeded", len(res.Predictions)),
	)
	return xhttp.SuccessResponse(c, res)
}

// JobStatus reports every job as completed since batches run inline.
func (h *PredictionsHandler) JobStatus(c echo.Context) error {
	req := &models.JobStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, JobStatus{
		JobID:   req.JobID,
		Status:  models.BatchStatusCompleted,
		Message: msgSynchronousJobs,
	})
}
