package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
)

type DealHandler struct {
	deals      *services.DealService
	activities *services.ActivityService
}

func NewDealHandler(deals *services.DealService, activities *services.ActivityService) *DealHandler {
	return &DealHandler{deals: deals, activities: activities}
}

// List handles GET /api/deals
func (h *DealHandler) List(c *gin.Context) {
	user := GetUserFromContext(c)
	handleList(c, "deals", func(opts models.ListOptions) (interface{}, error) {
		return h.deals.List(c.Request.Context(), user, opts)
	})
}

// Get handles GET /api/deals/:id
func (h *DealHandler) Get(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "deal", func() (interface{}, error) {
		return h.deals.Get(c.Request.Context(), user, c.Param("id"))
	})
}

// Create handles POST /api/deals
func (h *DealHandler) Create(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.DealInput
	HandleCreateEnvelope(c, "deal", &in, func() (interface{}, error) {
		return h.deals.Create(c.Request.Context(), user, in)
	})
}

// Update handles PATCH /api/deals/:id
func (h *DealHandler) Update(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.DealInput
	HandleUpdateEnvelope(c, "deal", &in, func() (interface{}, error) {
		return h.deals.Update(c.Request.Context(), user, c.Param("id"), in)
	})
}

// Delete handles DELETE /api/deals/:id
func (h *DealHandler) Delete(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleDeleteEnvelope(c, "Deal deleted", func() error {
		return h.deals.Delete(c.Request.Context(), user, c.Param("id"))
	})
}

// MoveStage handles POST /api/deals/:id/stage
func (h *DealHandler) MoveStage(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.MoveStageInput
	HandleUpdateEnvelope(c, "change", &in, func() (interface{}, error) {
		return h.deals.MoveStage(c.Request.Context(), user, c.Param("id"), in)
	})
}

// Timeline handles GET /api/deals/:id/timeline
func (h *DealHandler) Timeline(c *gin.Context) {
	timeline(c, h.activities, models.TimelineDeal)
}

// Pipeline handles GET /api/pipeline
func (h *DealHandler) Pipeline(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "pipeline", func() (interface{}, error) {
		return h.deals.Board(c.Request.Context(), user)
	})
}
