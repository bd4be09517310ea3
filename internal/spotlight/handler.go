package spotlight

import (
	"errors"
	"io"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promostack/coupon-backend/pkg/response"
)

// StartRequest is the body for POST /spotlight/:channel/start. Both fields
// are optional.
type StartRequest struct {
	Category        string `json:"category"`
	IntervalSeconds int    `json:"interval_seconds" binding:"omitempty,gte=1"`
}

// Handler handles spotlight HTTP endpoints (admin only).
type Handler struct {
	registry        *Registry
	source          CouponSource
	hub             HubBroadcaster
	defaultInterval time.Duration
	logger          *zap.Logger
}

// NewHandler creates a spotlight handler.
func NewHandler(registry *Registry, source CouponSource, hub HubBroadcaster, defaultInterval time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		registry:        registry,
		source:          source,
		hub:             hub,
		defaultInterval: defaultInterval,
		logger:          logger,
	}
}

// Start handles POST /spotlight/:channel/start.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	interval := h.defaultInterval
	if req.IntervalSeconds > 0 {
		interval = time.Duration(req.IntervalSeconds) * time.Second
	}

	channel := c.Param("channel")
	if !h.registry.Start(channel, req.Category, h.source, h.hub, interval, h.logger) {
		response.Conflict(c, "spotlight already running for this channel")
		return
	}
	response.OK(c, gin.H{
		"channel":          channel,
		"room":             RoomKey(channel),
		"interval_seconds": int(interval.Seconds()),
	})
}

// Stop handles POST /spotlight/:channel/stop.
func (h *Handler) Stop(c *gin.Context) {
	channel := c.Param("channel")
	if !h.registry.Stop(channel) {
		response.NotFound(c, "no spotlight running for this channel")
		return
	}
	response.OK(c, gin.H{"channel": channel, "stopped": true})
}

// Reload handles POST /spotlight/:channel/reload.
func (h *Handler) Reload(c *gin.Context) {
	channel := c.Param("channel")
	if !h.registry.Reload(channel) {
		response.NotFound(c, "no spotlight running for this channel")
		return
	}
	response.OK(c, gin.H{"channel": channel, "reloaded": true})
}

// List handles GET /spotlight.
func (h *Handler) List(c *gin.Context) {
	channels := h.registry.Channels()
	sort.Strings(channels)
	response.OK(c, gin.H{"channels": channels})
}
