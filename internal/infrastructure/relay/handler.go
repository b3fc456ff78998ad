package relay

import (
	"errors"
	"net/http"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the relay endpoints consumed by polling clients:
// directory listing, mailbox poll and envelope send.
type Handler struct {
	relay  ports.RelayService
	logger *zap.SugaredLogger
}

func NewHandler(relay ports.RelayService, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		relay:  relay,
		logger: logger,
	}
}

func (h *Handler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/peers", h.ListPeers)
		api.GET("/poll/:peer_id", h.Poll)
		api.POST("/send", h.Send)
	}
	router.GET("/health", h.Health)
}

func (h *Handler) ListPeers(c *gin.Context) {
	peers, err := h.relay.ListPeers(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to list peers", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if peers == nil {
		peers = []domain.PeerID{}
	}
	c.JSON(http.StatusOK, gin.H{"peers": peers})
}

func (h *Handler) Poll(c *gin.Context) {
	peerID := domain.PeerID(c.Param("peer_id"))

	messages, err := h.relay.Poll(c.Request.Context(), peerID)
	if err != nil {
		if errors.Is(err, domain.ErrMissingRecipient) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorw("failed to poll mailbox", "peer_id", peerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if messages == nil {
		messages = []domain.Delivery{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) Send(c *gin.Context) {
	var env domain.Envelope
	if err := c.BindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := env.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.relay.Send(c.Request.Context(), env); err != nil {
		h.logger.Errorw("failed to accept envelope",
			"sender_id", env.SenderID,
			"recipient_id", env.RecipientID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
