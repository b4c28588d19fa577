package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
)

type AuthHandler struct {
	svc *services.AuthService
}

func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginInput
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterInput
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetMe handles GET /api/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "user", func() (interface{}, error) {
		return h.svc.GetMe(c.Request.Context(), user)
	})
}

// UpdateMe handles PATCH /api/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	user := GetUserFromContext(c)
	var req models.UpdateProfileInput
	HandleUpdateEnvelope(c, "user", &req, func() (interface{}, error) {
		return h.svc.UpdateMe(c.Request.Context(), user, req)
	})
}

// ListUsers handles GET /api/users (admin only)
func (h *AuthHandler) ListUsers(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "users", func() (interface{}, error) {
		return h.svc.ListProfiles(c.Request.Context(), user)
	})
}
