// Package api serves the read-only query endpoints and the admin overrides.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/service/metrics"
	"SignalFlow/internal/usecase"
	xhttp "SignalFlow/pkg/http"
	xlogger "SignalFlow/pkg/logger"
)

const adminTokenHeader = "X-Admin-Token"

// SignalQueries is the read and override surface the handler needs.
type SignalQueries interface {
	ListPending() []models.PendingView
	ListConfirmed(ctx context.Context, limit int) []models.ConfirmedView
	ListRejected(ctx context.Context, limit int) []models.RejectedView
	ConfirmationMetrics() models.ConfirmationMetrics
	DailyStatus() models.DailyStatus
	MonitoredSignals(limit int) []*models.MonitoredSignal
	ExpiredSignals(limit int) []*models.MonitoredSignal
	MonitoringStats() models.MonitorStats
	Pairs(ctx context.Context, n int) (models.PairUniverse, error)
	Leader(ctx context.Context) (usecase.LeaderAnalysis, error)
	CacheStats() usecase.CacheStatsView
	ManualConfirm(ctx context.Context, id string) (models.ConfirmedView, error)
	ManualReject(ctx context.Context, id, reason string) (models.RejectedView, error)
}

// SignalsEchoHandler exposes SignalQueries over echo.
type SignalsEchoHandler struct {
	logger     *xlogger.Logger
	queries    SignalQueries
	adminToken string
}

func NewSignalsEchoHandler(logger *xlogger.Logger, queries SignalQueries, adminToken string) *SignalsEchoHandler {
	metrics.Register()
	return &SignalsEchoHandler{logger: logger.Component("api"), queries: queries, adminToken: adminToken}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals/pending", h.observe("pending", h.Pending))
	g.GET("/signals/confirmed", h.observe("confirmed", h.Confirmed))
	g.GET("/signals/rejected", h.observe("rejected", h.Rejected))
	g.GET("/confirmation/metrics", h.observe("confirmation_metrics", h.ConfirmationMetrics))
	g.GET("/daily/status", h.observe("daily_status", h.DailyStatus))
	g.GET("/monitor/active", h.observe("monitor_active", h.MonitorActive))
	g.GET("/monitor/expired", h.observe("monitor_expired", h.MonitorExpired))
	g.GET("/monitor/stats", h.observe("monitor_stats", h.MonitorStats))
	g.GET("/pairs", h.observe("pairs", h.Pairs))
	g.GET("/leader", h.observe("leader", h.Leader))
	g.GET("/cache/stats", h.observe("cache_stats", h.CacheStats))

	admin := g.Group("/signals", h.requireAdmin)
	admin.POST("/:id/confirm", h.observe("manual_confirm", h.Confirm))
	admin.POST("/:id/reject", h.observe("manual_reject", h.Reject))
}

func (h *SignalsEchoHandler) observe(endpoint string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()
		return next(c)
	}
}

// requireAdmin checks the admin header when a token is configured.
func (h *SignalsEchoHandler) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.adminToken == "" {
			return next(c)
		}
		got := c.Request().Header.Get(adminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
			h.logger.Warn("admin token rejected", xlogger.String("remote", c.RealIP()))
			return xhttp.ErrorResponse(c, xhttp.StatusError(http.StatusUnauthorized, "admin token is invalid"))
		}
		return next(c)
	}
}

func (h *SignalsEchoHandler) Pending(c echo.Context) error {
	rows := h.queries.ListPending()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsEchoHandler) Confirmed(c echo.Context) error {
	req := &models.ListSignalsRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.ErrorResponse(c, err)
	}
	rows := h.queries.ListConfirmed(c.Request().Context(), req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsEchoHandler) Rejected(c echo.Context) error {
	req := &models.ListSignalsRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.ErrorResponse(c, err)
	}
	rows := h.queries.ListRejected(c.Request().Context(), req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsEchoHandler) ConfirmationMetrics(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.queries.ConfirmationMetrics())
}

func (h *SignalsEchoHandler) DailyStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.queries.DailyStatus())
}

func (h *SignalsEchoHandler) MonitorActive(c echo.Context) error {
	req := &models.MonitorListRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.ErrorResponse(c, err)
	}
	rows := h.queries.MonitoredSignals(req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsEchoHandler) MonitorExpired(c echo.Context) error {
	req := &models.MonitorListRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.ErrorResponse(c, err)
	}
	rows := h.queries.ExpiredSignals(req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsEchoHandler) MonitorStats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.queries.MonitoringStats())
}

func (h *SignalsEchoHandler) Pairs(c echo.Context) error {
	req := &models.PairsRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.ErrorResponse(c, err)
	}
	res, err := h.queries.Pairs(c.Request().Context(), req.N)
	if err != nil {
		return h.fail(c, "pairs", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) Leader(c echo.Context) error {
	res, err := h.queries.Leader(c.Request().Context())
	if err != nil {
		return h.fail(c, "leader", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) CacheStats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.queries.CacheStats())
}

func (h *SignalsEchoHandler) Confirm(c echo.Context) error {
	req := &models.SignalIDRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.ErrorResponse(c, err)
	}
	res, err := h.queries.ManualConfirm(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "manual_confirm", err)
	}
	h.logger.Info("signal confirmed manually", xlogger.String("id", req.ID), xlogger.String("symbol", res.Symbol))
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) Reject(c echo.Context) error {
	req := &models.RejectSignalRequest{}
	if err := xhttp.Bind(c, req); err != nil {
		return xhttp.ErrorResponse(c, err)
	}
	res, err := h.queries.ManualReject(c.Request().Context(), req.ID, req.Reason)
	if err != nil {
		return h.fail(c, "manual_reject", err)
	}
	h.logger.Info("signal rejected manually", xlogger.String("id", req.ID), xlogger.String("reason", req.Reason))
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("request failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
	return xhttp.ErrorResponse(c, appErr)
}

// toAppError maps the domain error taxonomy to HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var verr *errs.ValidationError
	var dup *errs.DuplicateConfirmationError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return xhttp.StatusError(http.StatusNotFound, "signal not found").WithError(err)
	case errors.As(err, &verr):
		return xhttp.StatusError(http.StatusBadRequest, verr.Reason).OnField(verr.Field).WithError(err)
	case errors.Is(err, errs.ErrAlreadyTerminal):
		return xhttp.StatusError(http.StatusConflict, "signal already decided").WithError(err)
	case errors.As(err, &dup):
		return xhttp.StatusError(http.StatusConflict, dup.Error()).
			WithParam("symbol", dup.Symbol).
			WithParam("direction", dup.Direction).
			WithError(err)
	default:
		return xhttp.StatusError(http.StatusInternalServerError, "internal error").WithError(err)
	}
}
