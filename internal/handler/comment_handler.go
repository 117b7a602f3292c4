package handler

import (
	"net/http"

	"festival-booking/internal/middleware"
	"festival-booking/internal/model"
	"festival-booking/internal/service"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	comments service.CommentService
}

func NewCommentHandler(comments service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

func (h *CommentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("events/:id/comments", h.List)
	router.POST("events/:id/comments", h.Create)
}

func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.comments.ListForEvent(c, c.Param("id"))
	if err != nil {
		handleError(c, err, "ListComments")
		return
	}
	handleSuccess(c, comments, http.StatusOK)
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req model.CreateCommentRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	comment, err := h.comments.Post(c, c.Param("id"), middleware.CurrentUserRef(c), req.AuthorName, req.Text)
	if err != nil {
		handleError(c, err, "CreateComment")
		return
	}
	handleSuccess(c, comment, http.StatusCreated)
}
