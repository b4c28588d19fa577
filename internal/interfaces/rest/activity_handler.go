package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
)

type ActivityHandler struct {
	activities *services.ActivityService
}

func NewActivityHandler(activities *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// List handles GET /api/activities
func (h *ActivityHandler) List(c *gin.Context) {
	user := GetUserFromContext(c)
	handleList(c, "activities", func(opts models.ListOptions) (interface{}, error) {
		return h.activities.List(c.Request.Context(), user, opts)
	})
}

// Get handles GET /api/activities/:id
func (h *ActivityHandler) Get(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "activity", func() (interface{}, error) {
		return h.activities.Get(c.Request.Context(), user, c.Param("id"))
	})
}

// Create handles POST /api/activities
func (h *ActivityHandler) Create(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.ActivityInput
	HandleCreateEnvelope(c, "activity", &in, func() (interface{}, error) {
		return h.activities.Create(c.Request.Context(), user, in)
	})
}

// Update handles PATCH /api/activities/:id
func (h *ActivityHandler) Update(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.ActivityInput
	HandleUpdateEnvelope(c, "activity", &in, func() (interface{}, error) {
		return h.activities.Update(c.Request.Context(), user, c.Param("id"), in)
	})
}

// Delete handles DELETE /api/activities/:id
func (h *ActivityHandler) Delete(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleDeleteEnvelope(c, "Activity deleted", func() error {
		return h.activities.Delete(c.Request.Context(), user, c.Param("id"))
	})
}
