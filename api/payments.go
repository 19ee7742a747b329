package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/velmostra/stagegate/internal/service/payments"
)

type PaymentHandler struct {
	service payments.PaymentUseCase
}

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type pollResponse struct {
	Paid        bool                 `json:"paid"`
	Reservation *reservationResponse `json:"reservation,omitempty"`
}

func NewPaymentHandler(service payments.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Register wires the buyer-facing checkout routes. The webhook endpoint is
// registered separately because the gateway calls it unauthenticated; its
// trust comes from the payload signature, not from the identity headers.
func (h *PaymentHandler) Register(reservations *gin.RouterGroup, paymentsGroup *gin.RouterGroup) {
	reservations.POST("/:id/checkout", h.checkout)
	paymentsGroup.GET("/confirm", h.confirm)
}

func (h *PaymentHandler) RegisterWebhook(router gin.IRoutes) {
	router.POST("/payments/webhook", h.webhook)
}

func (h *PaymentHandler) checkout(c *gin.Context) {
	checkout, err := h.service.OpenCheckout(c.Request.Context(), c.Param("id"), buyerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResponse{
		SessionID:   checkout.SessionID,
		RedirectURL: checkout.RedirectURL,
	})
}

func (h *PaymentHandler) confirm(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	result, err := h.service.ConfirmByPoll(c.Request.Context(), sessionID, buyerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := pollResponse{Paid: result.Paid}
	if result.Reservation != nil {
		r := toReservationResponse(result.Reservation)
		resp.Reservation = &r
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}

	if err := h.service.ConfirmByCallback(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
