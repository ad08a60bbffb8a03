package handler

import (
	"net/http"
	"strconv"

	"hobbydork/internal/logger"
	"hobbydork/internal/payment/services"
	"hobbydork/internal/payment/storage"
	"hobbydork/internal/spotlight"
	"hobbydork/internal/utils"

	"github.com/gin-gonic/gin"
)

// AdminHandler is the ops surface of the payments service. It runs behind
// the internal network boundary, not the public API gateway.
type AdminHandler struct {
	stripeService *services.StripeService
	eventStore    storage.EventStore
	spotlights    *spotlight.Service
	listTopics    func() ([]string, error)
	logger        *logger.Logger
}

func NewAdminHandler(stripeService *services.StripeService, eventStore storage.EventStore,
	spotlights *spotlight.Service, listTopics func() ([]string, error), log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		stripeService: stripeService,
		eventStore:    eventStore,
		spotlights:    spotlights,
		listTopics:    listTopics,
		logger:        log,
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	admin := r.Group("/admin")
	{
		admin.GET("/account/:accountId", h.GetAccountInfo)
		admin.GET("/payouts/:accountId", h.GetPayouts)
		admin.GET("/webhook-events", h.ListWebhookEvents)
		admin.GET("/kafka/topics", h.ListKafkaTopics)
		admin.POST("/spotlights/expire", h.ExpireSpotlights)
	}
}

// Health reports event-store connectivity.
func (h *AdminHandler) Health(c *gin.Context) {
	if err := h.eventStore.HealthCheck(); err != nil {
		c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse("Event store unreachable", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("OK", nil))
}

// GetAccountInfo returns Connect account state for support tooling.
func (h *AdminHandler) GetAccountInfo(c *gin.Context) {
	accountID := c.Param("accountId")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request", "accountId is required"))
		return
	}

	info, err := h.stripeService.GetAccountInfo(accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch account", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Account info", info))
}

// GetPayouts returns balance and payout history for a Connect account.
func (h *AdminHandler) GetPayouts(c *gin.Context) {
	accountID := c.Param("accountId")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request", "accountId is required"))
		return
	}

	payouts, err := h.stripeService.GetPayouts(accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch payouts", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payouts", payouts))
}

// ListWebhookEvents shows the most recent entries of the idempotency
// ledger, for checking whether a given Stripe event ever arrived.
func (h *AdminHandler) ListWebhookEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := h.eventStore.RecentEvents(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list webhook events", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Webhook events", events))
}

// ListKafkaTopics shows the broker's topics, for verifying the notification
// topics were bootstrapped.
func (h *AdminHandler) ListKafkaTopics(c *gin.Context) {
	if h.listTopics == nil {
		c.JSON(http.StatusServiceUnavailable, utils.ErrorResponse("Kafka not configured", "no broker configured"))
		return
	}

	topics, err := h.listTopics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list topics", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Kafka topics", topics))
}

// ExpireSpotlights sweeps stores whose spotlight window has lapsed. Cron
// hits this endpoint; it is idempotent.
func (h *AdminHandler) ExpireSpotlights(c *gin.Context) {
	expired, err := h.spotlights.ExpireStale()
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to expire spotlights", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Spotlights expired", gin.H{"expired": expired}))
}
