package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/interfaces/rest"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
)

// MockEmailDrafter is a mock implementation of the email drafting service
type MockEmailDrafter struct {
	mock.Mock
}

func (m *MockEmailDrafter) Draft(ctx context.Context, user *models.UserSession, req models.EmailDraftRequest) (*models.EmailDraft, error) {
	args := m.Called(ctx, user, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailDraft), args.Error(1)
}

func draftContext(t *testing.T, body interface{}) (*gin.Context, *httptest.ResponseRecorder, *models.UserSession) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	user := &models.UserSession{ID: "user123", Email: "rep@example.com", Role: constants.RoleSalesRep}
	c.Set(constants.ContextKeyUser, user)

	jsonBytes, err := json.Marshal(body)
	require.NoError(t, err)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/email/draft", bytes.NewBuffer(jsonBytes))
	c.Request.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	return c, w, user
}

func TestEmailHandler_Draft(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockDrafter := new(MockEmailDrafter)
	handler := rest.NewEmailHandler(mockDrafter)

	t.Run("Success", func(t *testing.T) {
		req := models.EmailDraftRequest{ContactID: "c1", Purpose: models.PurposeFollowUp, Tone: models.ToneFriendly}
		c, w, user := draftContext(t, req)

		draft := &models.EmailDraft{Subject: "Next steps", Body: "Hi Ada", Provider: "mock"}
		mockDrafter.On("Draft", mock.Anything, user, req).Return(draft, nil).Once()

		handler.Draft(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Draft models.EmailDraft `json:"draft"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, *draft, resp.Draft)
		mockDrafter.AssertExpectations(t)
	})

	t.Run("Missing Contact", func(t *testing.T) {
		c, w, _ := draftContext(t, gin.H{"purpose": "follow_up"})

		handler.Draft(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockDrafter.AssertNotCalled(t, "Draft", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Provider Not Configured", func(t *testing.T) {
		req := models.EmailDraftRequest{ContactID: "c1"}
		c, w, _ := draftContext(t, req)
		mockDrafter.On("Draft", mock.Anything, mock.Anything, req).Return(nil, apperrors.NewUnavailableError("email drafting")).Once()

		handler.Draft(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		mockDrafter.AssertExpectations(t)
	})

	t.Run("Provider Failure", func(t *testing.T) {
		req := models.EmailDraftRequest{ContactID: "c2"}
		c, w, _ := draftContext(t, req)
		mockDrafter.On("Draft", mock.Anything, mock.Anything, req).Return(nil, apperrors.NewUpstreamError("openai", errors.New("429"))).Once()

		handler.Draft(c)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "UPSTREAM_ERROR", resp["code"])
		assert.Contains(t, resp, "data")
		mockDrafter.AssertExpectations(t)
	})

	t.Run("Generic Error", func(t *testing.T) {
		req := models.EmailDraftRequest{ContactID: "c3"}
		c, w, _ := draftContext(t, req)
		mockDrafter.On("Draft", mock.Anything, mock.Anything, req).Return(nil, errors.New("db disconnect")).Once()

		handler.Draft(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		mockDrafter.AssertExpectations(t)
	})
}
