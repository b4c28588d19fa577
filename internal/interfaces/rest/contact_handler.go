package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
)

type ContactHandler struct {
	contacts   *services.ContactService
	activities *services.ActivityService
}

func NewContactHandler(contacts *services.ContactService, activities *services.ActivityService) *ContactHandler {
	return &ContactHandler{contacts: contacts, activities: activities}
}

// List handles GET /api/contacts
func (h *ContactHandler) List(c *gin.Context) {
	user := GetUserFromContext(c)
	handleList(c, "contacts", func(opts models.ListOptions) (interface{}, error) {
		return h.contacts.List(c.Request.Context(), user, opts)
	})
}

// Get handles GET /api/contacts/:id
func (h *ContactHandler) Get(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "contact", func() (interface{}, error) {
		return h.contacts.Get(c.Request.Context(), user, c.Param("id"))
	})
}

// Create handles POST /api/contacts
func (h *ContactHandler) Create(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.ContactInput
	HandleCreateEnvelope(c, "contact", &in, func() (interface{}, error) {
		return h.contacts.Create(c.Request.Context(), user, in)
	})
}

// Update handles PATCH /api/contacts/:id
func (h *ContactHandler) Update(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.ContactInput
	HandleUpdateEnvelope(c, "contact", &in, func() (interface{}, error) {
		return h.contacts.Update(c.Request.Context(), user, c.Param("id"), in)
	})
}

// Delete handles DELETE /api/contacts/:id
func (h *ContactHandler) Delete(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleDeleteEnvelope(c, "Contact deleted", func() error {
		return h.contacts.Delete(c.Request.Context(), user, c.Param("id"))
	})
}

// Timeline handles GET /api/contacts/:id/timeline
func (h *ContactHandler) Timeline(c *gin.Context) {
	timeline(c, h.activities, models.TimelineContact)
}

func timeline(c *gin.Context, activities *services.ActivityService, entity models.TimelineEntity) {
	user := GetUserFromContext(c)
	limit, err := intParam(c, "limit")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, "activities", func() (interface{}, error) {
		return activities.Timeline(c.Request.Context(), user, entity, c.Param("id"), limit)
	})
}
