package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrEventNotFound       = fmt.Errorf("event %w", ErrNotFound)
	ErrBookingNotFound     = fmt.Errorf("booking %w", ErrNotFound)
	ErrOverbook            = errors.New("requested quantity exceeds remaining tickets")
	ErrUnavailable         = errors.New("event is not available for booking")
	ErrInvalidQuantity     = errors.New("quantity must be a positive integer")
	ErrCapacityBelowSold   = errors.New("capacity cannot be lower than tickets already sold")
	ErrUnauthorized        = errors.New("user_ref is required")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrCommentEmpty        = errors.New("comment cannot be empty")
	ErrInternalServerError = errors.New("internal server error")
)
