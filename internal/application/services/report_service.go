package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
)

// ReportService runs ad-hoc read-only SQL reports.
type ReportService struct {
	validator *SecurityValidator
	queries   *persistence.QueryRepository
}

// NewReportService creates a ReportService.
func NewReportService(validator *SecurityValidator, queries *persistence.QueryRepository) *ReportService {
	return &ReportService{validator: validator, queries: queries}
}

// Run validates, scopes and executes a report statement.
func (s *ReportService) Run(ctx context.Context, user *models.UserSession, req models.ReportRequest) (*models.ReportResult, error) {
	q, err := s.validator.ValidateAndRewrite(req.SQL, user)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("running report", zap.String("user_id", user.ID), zap.String("sql", q.SQL))

	result, err := s.queries.ExecuteRawSQL(ctx, q.SQL, q.MaxRows)
	if err != nil {
		return nil, fmt.Errorf("report failed: %w", err)
	}
	return result, nil
}
