package rest

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/domain/models"
)

// ReportRunner executes ad-hoc report SQL for a user.
type ReportRunner interface {
	Run(ctx context.Context, user *models.UserSession, req models.ReportRequest) (*models.ReportResult, error)
}

type ReportHandler struct {
	reports ReportRunner
}

func NewReportHandler(reports ReportRunner) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Query handles POST /api/reports/query. Scoping is enforced by the report
// service: admins see every owner, everyone else only their own rows.
func (h *ReportHandler) Query(c *gin.Context) {
	user := GetUserFromContext(c)
	var req models.ReportRequest
	HandleUpdateEnvelope(c, "report", &req, func() (interface{}, error) {
		return h.reports.Run(c.Request.Context(), user, req)
	})
}
