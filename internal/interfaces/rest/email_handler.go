package rest

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/domain/models"
)

// EmailDrafter generates sales emails.
type EmailDrafter interface {
	Draft(ctx context.Context, user *models.UserSession, req models.EmailDraftRequest) (*models.EmailDraft, error)
}

type EmailHandler struct {
	drafter EmailDrafter
}

func NewEmailHandler(drafter EmailDrafter) *EmailHandler {
	return &EmailHandler{drafter: drafter}
}

// Draft handles POST /api/email/draft
func (h *EmailHandler) Draft(c *gin.Context) {
	user := GetUserFromContext(c)
	var req models.EmailDraftRequest
	HandleUpdateEnvelope(c, "draft", &req, func() (interface{}, error) {
		return h.drafter.Draft(c.Request.Context(), user, req)
	})
}
