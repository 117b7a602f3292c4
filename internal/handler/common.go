package handler

import (
	"errors"
	"net/http"

	apperrors "festival-booking/pkg/app_errors"
	"festival-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

// handleError 將 service 錯誤轉成 HTTP 回應；預期內的錯誤記 Warn，其餘記 Error
func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrInvalidQuantity):
		log.Warn("Invalid quantity")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be a positive integer"})
	case errors.Is(err, apperrors.ErrCommentEmpty):
		log.Warn("Empty comment")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment cannot be empty"})
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		log.Warn("Missing user_ref")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Login required"})
	case errors.Is(err, apperrors.ErrForbidden):
		log.Warn("Forbidden")
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperrors.ErrEventNotFound):
		log.Warn("Event not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
	case errors.Is(err, apperrors.ErrBookingNotFound):
		log.Warn("Booking not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, apperrors.ErrOverbook),
		errors.Is(err, apperrors.ErrUnavailable),
		errors.Is(err, apperrors.ErrCapacityBelowSold):
		// 訊息帶剩餘票數或目前狀態，直接給前端顯示
		log.Warn("Booking conflict")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func handleSuccess(c *gin.Context, data interface{}, statusCode int) {
	if data != nil {
		c.JSON(statusCode, data)
	} else {
		c.Status(statusCode)
	}
}
