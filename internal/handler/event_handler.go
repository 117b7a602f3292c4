package handler

import (
	"net/http"
	"time"

	"festival-booking/internal/middleware"
	"festival-booking/internal/model"
	"festival-booking/internal/service"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	events    service.EventService
	inventory service.InventoryService
}

func NewEventHandler(events service.EventService, inventory service.InventoryService) *EventHandler {
	return &EventHandler{events: events, inventory: inventory}
}

func (h *EventHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("events", h.List)
	router.GET("events/countries", h.Countries)
	router.GET("events/:id", h.Get)
	router.GET("events/:id/status", h.Status)
	router.POST("events", h.Create)
	router.PUT("events/:id", h.Update)
	router.POST("events/:id/cancel", h.Cancel)
	router.POST("events/:id/reconcile", h.Reconcile)
	router.DELETE("events/:id", h.Delete)
}

// ListEventsQuery 列表查詢參數
type ListEventsQuery struct {
	Country string `form:"country"`
	Query   string `form:"q"`
}

// CreateEventRequest 建立活動請求
type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	Country     string    `json:"country"`
	Cuisines    []string  `json:"cuisines"`
	ImageURL    string    `json:"image_url"`
	Capacity    int       `json:"capacity"`
	StartAt     time.Time `json:"start_at" binding:"required"`
}

// UpdateEventRequest 更新活動請求，只帶要改的欄位
type UpdateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Venue       *string    `json:"venue"`
	Country     *string    `json:"country"`
	Cuisines    []string   `json:"cuisines"`
	ImageURL    *string    `json:"image_url"`
	Capacity    *int       `json:"capacity"`
	StartAt     *time.Time `json:"start_at"`
}

func (h *EventHandler) List(c *gin.Context) {
	var query ListEventsQuery
	if err := BindQuery(c, &query); err != nil {
		return
	}
	events, err := h.events.List(c, model.EventFilter{Country: query.Country, Query: query.Query})
	if err != nil {
		handleError(c, err, "ListEvents")
		return
	}
	handleSuccess(c, events, http.StatusOK)
}

func (h *EventHandler) Countries(c *gin.Context) {
	countries, err := h.events.Countries(c)
	if err != nil {
		handleError(c, err, "Countries")
		return
	}
	handleSuccess(c, countries, http.StatusOK)
}

func (h *EventHandler) Get(c *gin.Context) {
	detail, err := h.events.Get(c, c.Param("id"))
	if err != nil {
		handleError(c, err, "GetEvent")
		return
	}
	handleSuccess(c, detail, http.StatusOK)
}

// Status 輕量狀態查詢，走 Redis 快照
func (h *EventHandler) Status(c *gin.Context) {
	status, err := h.inventory.DisplayStatus(c, c.Param("id"))
	if err != nil {
		handleError(c, err, "EventStatus")
		return
	}
	handleSuccess(c, status, http.StatusOK)
}

func (h *EventHandler) Create(c *gin.Context) {
	var req CreateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	created, err := h.events.Create(c, model.CreateEventParams{
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		Country:     req.Country,
		Cuisines:    req.Cuisines,
		ImageURL:    req.ImageURL,
		OwnerRef:    middleware.CurrentUserRef(c),
		Capacity:    req.Capacity,
		StartAt:     req.StartAt,
	})
	if err != nil {
		handleError(c, err, "CreateEvent")
		return
	}
	handleSuccess(c, created, http.StatusCreated)
}

func (h *EventHandler) Update(c *gin.Context) {
	var req UpdateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	params := model.UpdateEventParams{
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		Country:     req.Country,
		Cuisines:    req.Cuisines,
		ImageURL:    req.ImageURL,
		Capacity:    req.Capacity,
		StartAt:     req.StartAt,
	}
	if params.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one field is required"})
		return
	}
	updated, err := h.events.Update(c, c.Param("id"), middleware.CurrentUserRef(c), params)
	if err != nil {
		handleError(c, err, "UpdateEvent")
		return
	}
	handleSuccess(c, updated, http.StatusOK)
}

func (h *EventHandler) Cancel(c *gin.Context) {
	cancelled, err := h.events.Cancel(c, c.Param("id"), middleware.CurrentUserRef(c))
	if err != nil {
		handleError(c, err, "CancelEvent")
		return
	}
	handleSuccess(c, cancelled, http.StatusOK)
}

func (h *EventHandler) Reconcile(c *gin.Context) {
	event, err := h.inventory.Reconcile(c, c.Param("id"))
	if err != nil {
		handleError(c, err, "ReconcileEvent")
		return
	}
	handleSuccess(c, event, http.StatusOK)
}

func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.inventory.DeleteEvent(c, c.Param("id"), middleware.CurrentUserRef(c)); err != nil {
		handleError(c, err, "DeleteEvent")
		return
	}
	handleSuccess(c, nil, http.StatusNoContent)
}
