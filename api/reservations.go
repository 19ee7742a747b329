package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/velmostra/stagegate/internal/domain"
	"github.com/velmostra/stagegate/internal/service/reservation"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
}

type createReservationRequest struct {
	EventID      string            `json:"event_id"`
	Quantity     int               `json:"quantity"`
	Attendees    []domain.Attendee `json:"attendees"`
	DiscountCode string            `json:"discount_code"`
}

type reservationResponse struct {
	ID             string            `json:"id"`
	TicketNumber   string            `json:"ticket_number"`
	EventID        string            `json:"event_id"`
	Quantity       int               `json:"quantity"`
	Attendees      []domain.Attendee `json:"attendees"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	DiscountCode   string            `json:"discount_code,omitempty"`
	DiscountCents  int64             `json:"discount_cents"`
	TotalCents     int64             `json:"total_cents"`
	Status         string            `json:"status"`
	ExpiresAt      string            `json:"expires_at,omitempty"`
}

func NewReservationHandler(service reservation.ReservationUseCase) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup, admin *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.DELETE("/:id", h.cancel)
	admin.GET("/", h.listAll)
}

func (h *ReservationHandler) create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.Create(c.Request.Context(), reservation.CreateInput{
		EventID:      req.EventID,
		BuyerID:      buyerID(c),
		Quantity:     req.Quantity,
		Attendees:    req.Attendees,
		DiscountCode: req.DiscountCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(created))
}

func (h *ReservationHandler) list(c *gin.Context) {
	list, err := h.service.ListByBuyer(c.Request.Context(), buyerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]reservationResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toReservationResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) listAll(c *gin.Context) {
	list, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]reservationResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toReservationResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReservationHandler) get(c *gin.Context) {
	owner := buyerID(c)
	if isAdmin(c) {
		owner = ""
	}
	found, err := h.service.Get(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(found))
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	cancelled, err := h.service.Cancel(c.Request.Context(), c.Param("id"), buyerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(cancelled))
}

func toReservationResponse(r *domain.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:             r.ID,
		TicketNumber:   r.TicketNumber,
		EventID:        r.EventID,
		Quantity:       r.Quantity,
		Attendees:      r.Attendees,
		UnitPriceCents: r.UnitPriceCents,
		DiscountCode:   r.DiscountCode,
		DiscountCents:  r.DiscountCents,
		TotalCents:     r.TotalCents,
		Status:         string(r.Status),
	}
	if r.ExpiresAt != nil {
		resp.ExpiresAt = r.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}
