package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/velmostra/stagegate/internal/domain"
	"github.com/velmostra/stagegate/internal/service/events"
)

type EventHandler struct {
	service events.EventUseCase
}

type eventRequest struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	OccursAt       time.Time `json:"occurs_at"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Capacity       int       `json:"capacity"`
	Active         bool      `json:"active"`
}

type eventResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	OccursAt       string `json:"occurs_at"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Capacity       int    `json:"capacity"`
	Available      int    `json:"available"`
	SoldOut        bool   `json:"sold_out"`
	Active         bool   `json:"active"`
}

func NewEventHandler(service events.EventUseCase) *EventHandler {
	return &EventHandler{service: service}
}

func (h *EventHandler) Register(router *gin.RouterGroup, admin *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	admin.POST("/", h.create)
	admin.PUT("/:id", h.update)
}

func (h *EventHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]eventResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toEventResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EventHandler) get(c *gin.Context) {
	event, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

func (h *EventHandler) create(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.service.CreateEvent(c.Request.Context(), events.EventInput{
		Title:          req.Title,
		Description:    req.Description,
		OccursAt:       req.OccursAt,
		UnitPriceCents: req.UnitPriceCents,
		Capacity:       req.Capacity,
		Active:         req.Active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEventResponse(event))
}

func (h *EventHandler) update(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.service.UpdateEvent(c.Request.Context(), c.Param("id"), events.EventInput{
		Title:          req.Title,
		Description:    req.Description,
		OccursAt:       req.OccursAt,
		UnitPriceCents: req.UnitPriceCents,
		Capacity:       req.Capacity,
		Active:         req.Active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

func toEventResponse(e *domain.Event) eventResponse {
	return eventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		OccursAt:       e.OccursAt.Format(time.RFC3339),
		UnitPriceCents: e.UnitPriceCents,
		Capacity:       e.Capacity,
		Available:      e.Available(),
		SoldOut:        e.SoldOut(),
		Active:         e.Active,
	}
}
