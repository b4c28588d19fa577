package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
)

type CompanyHandler struct {
	companies  *services.CompanyService
	contacts   *services.ContactService
	activities *services.ActivityService
}

func NewCompanyHandler(companies *services.CompanyService, contacts *services.ContactService, activities *services.ActivityService) *CompanyHandler {
	return &CompanyHandler{companies: companies, contacts: contacts, activities: activities}
}

// List handles GET /api/companies
func (h *CompanyHandler) List(c *gin.Context) {
	user := GetUserFromContext(c)
	handleList(c, "companies", func(opts models.ListOptions) (interface{}, error) {
		return h.companies.List(c.Request.Context(), user, opts)
	})
}

// Get handles GET /api/companies/:id
func (h *CompanyHandler) Get(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "company", func() (interface{}, error) {
		return h.companies.Get(c.Request.Context(), user, c.Param("id"))
	})
}

// Create handles POST /api/companies
func (h *CompanyHandler) Create(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.CompanyInput
	HandleCreateEnvelope(c, "company", &in, func() (interface{}, error) {
		return h.companies.Create(c.Request.Context(), user, in)
	})
}

// Update handles PATCH /api/companies/:id
func (h *CompanyHandler) Update(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.CompanyInput
	HandleUpdateEnvelope(c, "company", &in, func() (interface{}, error) {
		return h.companies.Update(c.Request.Context(), user, c.Param("id"), in)
	})
}

// Delete handles DELETE /api/companies/:id
func (h *CompanyHandler) Delete(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleDeleteEnvelope(c, "Company deleted", func() error {
		return h.companies.Delete(c.Request.Context(), user, c.Param("id"))
	})
}

// Contacts handles GET /api/companies/:id/contacts
func (h *CompanyHandler) Contacts(c *gin.Context) {
	user := GetUserFromContext(c)
	handleList(c, "contacts", func(opts models.ListOptions) (interface{}, error) {
		return h.contacts.ListByCompany(c.Request.Context(), user, c.Param("id"), opts)
	})
}

// Timeline handles GET /api/companies/:id/timeline
func (h *CompanyHandler) Timeline(c *gin.Context) {
	timeline(c, h.activities, models.TimelineCompany)
}
