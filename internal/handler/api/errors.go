package api

import (
	"errors"
	"math"
	"net/http"
	"time"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/repository"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/logger"

	"github.com/labstack/echo/v4"
)

const msgInternal = "Internal server error"

// ToAppError maps domain failures onto HTTP errors. Unclassified errors become
// a generic 500 so upstream details never reach the client.
func ToAppError(err error) *xhttp.AppError {
	var (
		appErr *xhttp.AppError
		pf     *errs.PredictionFailed
		ve     *errs.ValidationError
		rl     *errs.RateLimitError
		de     *errs.DomainError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &pf):
		return xhttp.NewAppError("ERR_PREDICTION_FAILED", "ticker", "Failed to generate prediction for "+pf.Ticker, http.StatusBadRequest).
			WithParam("ticker", pf.Ticker).
			WithError(err)
	case errors.As(err, &ve):
		return xhttp.NewAppError("ERR_VALIDATION", ve.Field, ve.Message, http.StatusBadRequest).WithError(err)
	case errors.As(err, &rl):
		return xhttp.TooManyRequestsError(rl.Error()).
			WithParam("retry_after", int(math.Ceil(rl.RetryAfter.Seconds()))).
			WithError(err)
	case errors.As(err, &de):
		return xhttp.BadRequestError(de.Message).WithParams(de.Details).WithError(err)
	}
	return xhttp.InternalError(msgInternal).WithError(err)
}

func respondError(c echo.Context, l *logger.Logger, op string, err error) error {
	appErr := ToAppError(err)
	fields := []logger.Field{
		logger.String("op", op),
		logger.Int("status", appErr.Status),
		logger.Error(err),
	}
	if appErr.Status >= http.StatusInternalServerError {
		l.Error("request failed", fields...)
	} else {
		l.Warn("request rejected", fields...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// RateLimited answers limiter rejections through ToAppError and counts them per route.
func RateLimited(l *logger.Logger, m repository.Metrics) func(c echo.Context, retryAfter time.Duration) error {
	return func(c echo.Context, retryAfter time.Duration) error {
		m.RecordRateLimited(c.Path())
		return respondError(c, l, "rate_limit", &errs.RateLimitError{RetryAfter: retryAfter})
	}
}
