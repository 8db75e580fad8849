package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	notifier "tradenotifier/internal/application/service/notifier"
	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const apiBasePath = "/api/v1"

var errRunInProgress = errors.New("a run is already in progress")

// Runner executes one notification run.
type Runner interface {
	Run(ctx context.Context) (notifier.Report, error)
}

// Handler exposes the run trigger for external schedulers.
type Handler struct {
	router *gin.Engine
	runner Runner
	store  interfaces.WatermarkStore
	logger *logrus.Entry
	// runTimeout bounds a triggered run; zero leaves it unbounded.
	runTimeout time.Duration
	// running guards against overlapping runs inside this process.
	running sync.Mutex
}

func NewHandler(runner Runner, store interfaces.WatermarkStore, runTimeout time.Duration, logger *logrus.Logger) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:     router,
		runner:     runner,
		store:      store,
		logger:     logger.WithField("component", "http"),
		runTimeout: runTimeout,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/healthz", h.health)

	api := h.router.Group(apiBasePath)
	{
		api.POST("/runs", h.triggerRun)
		api.GET("/watermark", h.getWatermark)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type runResponse struct {
	Report notifier.Report `json:"report"`
	Error  string          `json:"error,omitempty"`
}

func (h *Handler) triggerRun(c *gin.Context) {
	if !h.running.TryLock() {
		writeError(c, http.StatusConflict, errRunInProgress)
		return
	}
	defer h.running.Unlock()

	// A caller that disconnects must not abort a batch halfway through delivery.
	ctx := context.WithoutCancel(c.Request.Context())
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	report, err := h.runner.Run(ctx)
	if err != nil {
		h.logger.WithError(err).WithField("outcome", report.Outcome).Warn("triggered run failed")
		c.JSON(statusForRunError(err), runResponse{Report: report, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, runResponse{Report: report})
}

func statusForRunError(err error) int {
	var (
		fetchErr    *trades.FetchError
		deliveryErr *trades.DeliveryError
	)
	switch {
	case errors.As(err, &fetchErr), errors.As(err, &deliveryErr):
		return http.StatusBadGateway
	case errors.Is(err, trades.ErrBatchOutOfOrder):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type watermarkResponse struct {
	TradeID string `json:"trade_id,omitempty"`
	Present bool   `json:"present"`
}

func (h *Handler) getWatermark(c *gin.Context) {
	id, ok, err := h.store.Load(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, watermarkResponse{TradeID: id.String(), Present: ok})
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
