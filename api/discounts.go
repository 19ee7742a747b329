package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/velmostra/stagegate/internal/domain"
	"github.com/velmostra/stagegate/internal/service/discount"
)

type DiscountHandler struct {
	service discount.DiscountUseCase
}

type validateDiscountRequest struct {
	Code          string `json:"code"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

type quoteResponse struct {
	Code          string  `json:"code"`
	Kind          string  `json:"kind"`
	Value         float64 `json:"value"`
	DiscountCents int64   `json:"discount_cents"`
	FinalCents    int64   `json:"final_cents"`
}

type discountRequest struct {
	Code        string     `json:"code"`
	Kind        string     `json:"kind"`
	Value       float64    `json:"value"`
	Active      bool       `json:"active"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidUntil  *time.Time `json:"valid_until"`
	Description string     `json:"description"`
}

type discountResponse struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Kind        string     `json:"kind"`
	Value       float64    `json:"value"`
	Active      bool       `json:"active"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	Description string     `json:"description,omitempty"`
	Redemptions int        `json:"redemptions"`
}

func NewDiscountHandler(service discount.DiscountUseCase) *DiscountHandler {
	return &DiscountHandler{service: service}
}

func (h *DiscountHandler) Register(router *gin.RouterGroup, admin *gin.RouterGroup) {
	router.POST("/validate", h.validate)
	admin.GET("/", h.list)
	admin.POST("/", h.create)
	admin.PUT("/:id", h.update)
	admin.DELETE("/:id", h.delete)
}

// validate quotes a discount for the authenticated buyer without consuming
// the single-use right.
func (h *DiscountHandler) validate(c *gin.Context) {
	var req validateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.service.Quote(c.Request.Context(), req.Code, buyerID(c), req.SubtotalCents)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteResponse{
		Code:          quote.Code,
		Kind:          string(quote.Kind),
		Value:         quote.Value,
		DiscountCents: quote.DiscountCents,
		FinalCents:    quote.FinalCents,
	})
}

func (h *DiscountHandler) list(c *gin.Context) {
	list, err := h.service.ListDiscounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]discountResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toDiscountResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DiscountHandler) create(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateDiscount(c.Request.Context(), discount.CreateDiscountInput{
		Code:        req.Code,
		Kind:        domain.DiscountKind(req.Kind),
		Value:       req.Value,
		Active:      req.Active,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDiscountResponse(created))
}

func (h *DiscountHandler) update(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.service.UpdateDiscount(c.Request.Context(), discount.UpdateDiscountInput{
		ID:          c.Param("id"),
		Kind:        domain.DiscountKind(req.Kind),
		Value:       req.Value,
		Active:      req.Active,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDiscountResponse(updated))
}

func (h *DiscountHandler) delete(c *gin.Context) {
	if err := h.service.DeleteDiscount(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func toDiscountResponse(d *domain.Discount) discountResponse {
	return discountResponse{
		ID:          d.ID,
		Code:        d.Code,
		Kind:        string(d.Kind),
		Value:       d.Value,
		Active:      d.Active,
		ValidFrom:   d.ValidFrom,
		ValidUntil:  d.ValidUntil,
		Description: d.Description,
		Redemptions: d.Redemptions,
	}
}
