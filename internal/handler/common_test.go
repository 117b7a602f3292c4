package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"festival-booking/internal/middleware"
	"festival-booking/internal/service"

	"github.com/gin-gonic/gin"
)

var (
	InvalidJSON = `{"invalid": json}`

	_ service.EventService     = (*eventServiceMock)(nil)
	_ service.InventoryService = (*inventoryServiceMock)(nil)
	_ service.CommentService   = (*commentServiceMock)(nil)
)

type testMocks struct {
	events    *eventServiceMock
	inventory *inventoryServiceMock
	comments  *commentServiceMock
}

func setupTestRouter() (*gin.Engine, *testMocks) {
	gin.SetMode(gin.TestMode)
	m := &testMocks{
		events:    &eventServiceMock{},
		inventory: &inventoryServiceMock{},
		comments:  &commentServiceMock{},
	}

	router := gin.New()
	router.Use(middleware.UserRef())
	api := router.Group("/api/v1")
	NewEventHandler(m.events, m.inventory).RegisterRoutes(api)
	NewBookingHandler(m.inventory).RegisterRoutes(api, func(c *gin.Context) { c.Next() })
	NewCommentHandler(m.comments).RegisterRoutes(api)

	return router, m
}

// create JSON request body
func createJSONRequest(data interface{}) *bytes.Buffer {
	if s, ok := data.(string); ok {
		return bytes.NewBufferString(s)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return bytes.NewBuffer([]byte(""))
	}
	return bytes.NewBuffer(jsonData)
}

// create HTTP request with JSON body
func createJSONHTTPRequest(method, url string, data interface{}, userRef string) *http.Request {
	req, err := http.NewRequest(method, url, createJSONRequest(data))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	if userRef != "" {
		req.Header.Set(middleware.UserRefHeader, userRef)
	}
	return req
}
