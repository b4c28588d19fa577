package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/validator"
)

// ==================== Input Helpers ====================

// requireText trims v and fails when it is missing or blank.
func requireText(field string, v *string) (string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "", apperrors.NewValidationError(field, "is required")
	}
	return strings.TrimSpace(*v), nil
}

// optionalText trims v; blank becomes nil so the column is stored as NULL.
func optionalText(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

// checkedText trims v and runs the named field validator on what is left.
func checkedText(field, rule string, v *string) (*string, error) {
	s := optionalText(v)
	if s == nil {
		return nil, nil
	}
	if err := validator.Validate(rule, *s, nil); err != nil {
		return nil, apperrors.NewValidationError(field, err.Error())
	}
	return s, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Blank means "no date".
func parseDate(field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperrors.NewValidationError(field, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ==================== Error Mapping ====================

// mapRepoError turns repository sentinels into typed application errors.
func mapRepoError(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return apperrors.NewNotFoundError(resource, id)
	case errors.Is(err, persistence.ErrInvalidFilter):
		return apperrors.NewValidationError("filter", err.Error())
	default:
		return fmt.Errorf("%s: %w", strings.ToLower(resource), err)
	}
}

// ==================== Links ====================

// linkChecker verifies that foreign keys point at records the caller owns.
type linkChecker struct {
	base *persistence.RecordRepository
}

// check fails with a validation error when id is set but not owned by userID.
func (l linkChecker) check(ctx context.Context, userID, field, table string, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	ok, err := l.base.Exists(ctx, table, userID, *id)
	if err != nil {
		return fmt.Errorf("check %s: %w", field, err)
	}
	if !ok {
		return apperrors.NewValidationError(field, fmt.Sprintf("no %s with id %s", strings.TrimSuffix(table, "s"), *id))
	}
	return nil
}

// ==================== Events ====================

// publish announces a committed change. Subscriber failures are logged and
// never reach the caller.
func publish(ctx context.Context, bus ports.EventPublisher, kind events.ChangeType, table, userID, id string, record interface{}) {
	if bus == nil {
		return
	}
	change := events.NewChange(kind, table, userID, id, record)
	if err := bus.Publish(ctx, change); err != nil {
		zap.L().Warn("change subscriber failed",
			zap.String("table", table),
			zap.String("record_id", id),
			zap.String("type", string(kind)),
			zap.Error(err))
	}
}
