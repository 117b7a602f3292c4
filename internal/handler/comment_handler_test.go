package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"festival-booking/internal/model"
	apperrors "festival-booking/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCreateComment(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		router, m := setupTestRouter()
		m.comments.On("Post", mock.Anything, "evt-1", "alice", "Alice", "see you").
			Return(&model.Comment{ID: "c-1", EventID: "evt-1", AuthorName: "Alice", Text: "see you"}, nil).Once()

		w := httptest.NewRecorder()
		req := createJSONHTTPRequest("POST", "/api/v1/events/evt-1/comments",
			model.CreateCommentRequest{AuthorName: "Alice", Text: "see you"}, "alice")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		m.comments.AssertExpectations(t)
	})

	t.Run("Failed - Empty", func(t *testing.T) {
		router, m := setupTestRouter()
		m.comments.On("Post", mock.Anything, "evt-1", "", "", "   ").Return(nil, apperrors.ErrCommentEmpty).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest("POST", "/api/v1/events/evt-1/comments",
			model.CreateCommentRequest{Text: "   "}, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		m.comments.AssertExpectations(t)
	})

	t.Run("Failed - MissingText", func(t *testing.T) {
		router, m := setupTestRouter()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest("POST", "/api/v1/events/evt-1/comments", map[string]any{}, ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		m.comments.AssertNotCalled(t, "Post")
	})

	t.Run("Failed - EventNotFound", func(t *testing.T) {
		router, m := setupTestRouter()
		m.comments.On("Post", mock.Anything, "missing", "", "", "hi").Return(nil, apperrors.ErrEventNotFound).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest("POST", "/api/v1/events/missing/comments",
			model.CreateCommentRequest{Text: "hi"}, ""))

		assert.Equal(t, http.StatusNotFound, w.Code)
		m.comments.AssertExpectations(t)
	})
}

func TestListComments(t *testing.T) {
	router, m := setupTestRouter()
	m.comments.On("ListForEvent", mock.Anything, "evt-1").Return([]*model.Comment{{ID: "c-1"}, {ID: "c-2"}}, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/events/evt-1/comments", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	m.comments.AssertExpectations(t)
}
