package handler

import (
	"net/http"

	"festival-booking/internal/middleware"
	"festival-booking/internal/model"
	"festival-booking/internal/service"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	inventory service.InventoryService
}

func NewBookingHandler(inventory service.InventoryService) *BookingHandler {
	return &BookingHandler{inventory: inventory}
}

// RegisterRoutes limiter 只套在下訂上
func (h *BookingHandler) RegisterRoutes(router *gin.RouterGroup, limiter gin.HandlerFunc) {
	requireUser := middleware.RequireUserRef()

	router.POST("events/:id/bookings", requireUser, limiter, h.Create)
	router.GET("events/:id/bookings", h.ListForEvent)
	router.GET("bookings", requireUser, h.ListMine)
	router.POST("bookings/:id/cancel", requireUser, h.Cancel)
}

func toBookingResponses(bookings []*model.Booking) []model.BookingResponse {
	out := make([]model.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, model.NewBookingResponse(b))
	}
	return out
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req model.CreateBookingRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	booking, err := h.inventory.ApplyBooking(c, c.Param("id"), middleware.CurrentUserRef(c), req.Quantity)
	if err != nil {
		handleError(c, err, "CreateBooking")
		return
	}
	handleSuccess(c, model.NewBookingResponse(booking), http.StatusCreated)
}

func (h *BookingHandler) ListForEvent(c *gin.Context) {
	bookings, err := h.inventory.ListForEvent(c, c.Param("id"))
	if err != nil {
		handleError(c, err, "ListEventBookings")
		return
	}
	handleSuccess(c, toBookingResponses(bookings), http.StatusOK)
}

// ListMine 訂票紀錄，新的在前
func (h *BookingHandler) ListMine(c *gin.Context) {
	bookings, err := h.inventory.ListForUser(c, middleware.CurrentUserRef(c))
	if err != nil {
		handleError(c, err, "ListMyBookings")
		return
	}
	handleSuccess(c, toBookingResponses(bookings), http.StatusOK)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	booking, err := h.inventory.CancelBooking(c, c.Param("id"), middleware.CurrentUserRef(c))
	if err != nil {
		handleError(c, err, "CancelBooking")
		return
	}
	handleSuccess(c, model.NewBookingResponse(booking), http.StatusOK)
}
