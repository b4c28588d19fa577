package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
)

type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary handles GET /api/dashboard/summary
func (h *DashboardHandler) Summary(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "summary", func() (interface{}, error) {
		return h.dashboard.Summary(c.Request.Context(), user)
	})
}
