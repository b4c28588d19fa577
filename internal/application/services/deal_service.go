package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/pipeline"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/money"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

// DealService manages deals and their movement through the pipeline.
type DealService struct {
	deals      *persistence.DealRepository
	activities *persistence.ActivityRepository
	tx         *persistence.TransactionManager
	links      linkChecker
	bus        ports.EventPublisher
	now        func() time.Time
}

// NewDealService creates a DealService.
func NewDealService(deals *persistence.DealRepository, activities *persistence.ActivityRepository, tx *persistence.TransactionManager, bus ports.EventPublisher) *DealService {
	return &DealService{
		deals:      deals,
		activities: activities,
		tx:         tx,
		links:      linkChecker{base: deals.RecordRepository},
		bus:        bus,
		now:        time.Now,
	}
}

func (s *DealService) List(ctx context.Context, user *models.UserSession, opts models.ListOptions) ([]*models.Deal, error) {
	if opts.Stage != "" {
		stage, err := pipeline.ParseStage(opts.Stage)
		if err != nil {
			return nil, apperrors.NewValidationError(constants.FieldStage, err.Error())
		}
		opts.Stage = string(stage)
	}
	list, err := s.deals.List(ctx, user.ID, opts)
	return list, mapRepoError(err, "Deal", "")
}

func (s *DealService) Get(ctx context.Context, user *models.UserSession, id string) (*models.Deal, error) {
	d, err := s.deals.Get(ctx, user.ID, id)
	return d, mapRepoError(err, "Deal", id)
}

// Create validates and inserts a deal. Stage defaults to lead and the
// probability to the stage default unless supplied.
func (s *DealService) Create(ctx context.Context, user *models.UserSession, in models.DealInput) (*models.Deal, error) {
	title, err := requireText(constants.FieldTitle, in.Title)
	if err != nil {
		return nil, err
	}
	value, err := dealValue(in.Value)
	if err != nil {
		return nil, err
	}
	currency, err := dealCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	stage := pipeline.StageLead
	if in.Stage != nil && strings.TrimSpace(*in.Stage) != "" {
		if stage, err = parseStage(*in.Stage); err != nil {
			return nil, err
		}
	}
	prob, _ := pipeline.DefaultProbability(stage)
	if in.Probability != nil {
		if prob, err = dealProbability(*in.Probability); err != nil {
			return nil, err
		}
	}
	closeDate, err := parseDate("expected_close_date", in.ExpectedCloseDate)
	if err != nil {
		return nil, err
	}
	contactID, companyID := optionalText(in.ContactID), optionalText(in.CompanyID)
	if err := s.links.check(ctx, user.ID, constants.FieldContactID, constants.TableContacts, contactID); err != nil {
		return nil, err
	}
	if err := s.links.check(ctx, user.ID, constants.FieldCompanyID, constants.TableCompanies, companyID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	d := &models.Deal{
		ID:                utils.GenerateID(),
		UserID:            user.ID,
		ContactID:         contactID,
		CompanyID:         companyID,
		Title:             title,
		Value:             value,
		Currency:          currency,
		Stage:             stage,
		Probability:       prob,
		ExpectedCloseDate: closeDate,
		Description:       optionalText(in.Description),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if pipeline.IsClosed(stage) {
		d.ClosedAt = &now
	}
	if err := s.deals.Create(ctx, d); err != nil {
		return nil, mapRepoError(err, "Deal", d.ID)
	}

	created, err := s.Get(ctx, user, d.ID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, events.Insert, constants.TableDeals, user.ID, created.ID, created)
	return created, nil
}

// Update applies the non-nil fields of in. A stage change follows the same
// rules as MoveStage; an explicit probability in the same request wins over
// the stage default.
func (s *DealService) Update(ctx context.Context, user *models.UserSession, id string, in models.DealInput) (*models.Deal, error) {
	var (
		updated  *models.Deal
		activity *models.Activity
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.Get(ctx, user, id)
		if err != nil {
			return err
		}
		fields, err := s.updateFields(ctx, user, in)
		if err != nil {
			return err
		}

		if in.Stage != nil {
			to, err := parseStage(*in.Stage)
			if err != nil {
				return err
			}
			next, changed, err := pipeline.Transition(current.PipelineState(), to, s.now())
			if err != nil {
				return apperrors.NewValidationError(constants.FieldStage, err.Error())
			}
			if changed {
				fields[constants.FieldStage] = string(next.Stage)
				fields[constants.FieldClosedAt] = nullable(next.ClosedAt)
				if _, explicit := fields[constants.FieldProbability]; !explicit {
					fields[constants.FieldProbability] = next.Probability
				}
				activity = s.stageActivity(user, current, current.Stage, next.Stage, "")
			}
		}
		if len(fields) == 0 {
			updated = current
			return nil
		}
		if err := s.deals.UpdateFields(ctx, user.ID, id, fields); err != nil {
			return mapRepoError(err, "Deal", id)
		}
		if activity != nil {
			if err := s.activities.Create(ctx, activity); err != nil {
				return fmt.Errorf("record stage change: %w", err)
			}
		}
		updated, err = s.Get(ctx, user, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.bus, events.Update, constants.TableDeals, user.ID, id, updated)
	if activity != nil {
		publish(ctx, s.bus, events.Insert, constants.TableActivities, user.ID, activity.ID, activity)
	}
	return updated, nil
}

func (s *DealService) updateFields(ctx context.Context, user *models.UserSession, in models.DealInput) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if in.Title != nil {
		title, err := requireText(constants.FieldTitle, in.Title)
		if err != nil {
			return nil, err
		}
		fields[constants.FieldTitle] = title
	}
	if in.Value != nil {
		value, err := dealValue(in.Value)
		if err != nil {
			return nil, err
		}
		fields[constants.FieldValue] = value
	}
	if in.Currency != nil {
		currency, err := dealCurrency(in.Currency)
		if err != nil {
			return nil, err
		}
		fields["currency"] = currency
	}
	if in.Probability != nil {
		prob, err := dealProbability(*in.Probability)
		if err != nil {
			return nil, err
		}
		fields[constants.FieldProbability] = prob
	}
	if in.ExpectedCloseDate != nil {
		d, err := parseDate("expected_close_date", in.ExpectedCloseDate)
		if err != nil {
			return nil, err
		}
		fields["expected_close_date"] = nullable(d)
	}
	if in.Description != nil {
		fields[constants.FieldDescription] = nullable(optionalText(in.Description))
	}
	if in.ContactID != nil {
		id := optionalText(in.ContactID)
		if err := s.links.check(ctx, user.ID, constants.FieldContactID, constants.TableContacts, id); err != nil {
			return nil, err
		}
		fields[constants.FieldContactID] = nullable(id)
	}
	if in.CompanyID != nil {
		id := optionalText(in.CompanyID)
		if err := s.links.check(ctx, user.ID, constants.FieldCompanyID, constants.TableCompanies, id); err != nil {
			return nil, err
		}
		fields[constants.FieldCompanyID] = nullable(id)
	}
	return fields, nil
}

// MoveStage transitions a deal and records a stage_change activity on its
// timeline. Moving to the current stage changes nothing.
func (s *DealService) MoveStage(ctx context.Context, user *models.UserSession, id string, in models.MoveStageInput) (*models.StageChange, error) {
	to, err := parseStage(in.Stage)
	if err != nil {
		return nil, err
	}

	result := &models.StageChange{To: to}
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		deal, err := s.Get(ctx, user, id)
		if err != nil {
			return err
		}
		result.From = deal.Stage

		next, changed, err := pipeline.Transition(deal.PipelineState(), to, s.now())
		if err != nil {
			return apperrors.NewValidationError(constants.FieldStage, err.Error())
		}
		if !changed {
			result.Deal = deal
			return nil
		}
		if err := s.deals.SaveState(ctx, user.ID, id, next); err != nil {
			return mapRepoError(err, "Deal", id)
		}

		activity := s.stageActivity(user, deal, deal.Stage, to, in.Note)
		if err := s.activities.Create(ctx, activity); err != nil {
			return fmt.Errorf("record stage change: %w", err)
		}
		result.Activity = activity
		result.Changed = true

		result.Deal, err = s.Get(ctx, user, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		publish(ctx, s.bus, events.Update, constants.TableDeals, user.ID, id, result.Deal)
		publish(ctx, s.bus, events.Insert, constants.TableActivities, user.ID, result.Activity.ID, result.Activity)
	}
	return result, nil
}

func (s *DealService) stageActivity(user *models.UserSession, deal *models.Deal, from, to pipeline.Stage, note string) *models.Activity {
	now := s.now().UTC()
	dealID := deal.ID
	return &models.Activity{
		ID:          utils.GenerateID(),
		UserID:      user.ID,
		Type:        models.ActivityStageChange,
		Subject:     fmt.Sprintf("Stage changed from %s to %s", from.Label(), to.Label()),
		Description: utils.StringPtr(note),
		ContactID:   deal.ContactID,
		CompanyID:   deal.CompanyID,
		DealID:      &dealID,
		OccurredAt:  now,
		CreatedAt:   now,
		Deal:        &models.DealSummary{ID: deal.ID, Title: deal.Title},
	}
}

// Board groups every deal of the caller by stage.
func (s *DealService) Board(ctx context.Context, user *models.UserSession) (*models.PipelineBoard, error) {
	deals, err := s.deals.ListAll(ctx, user.ID)
	if err != nil {
		return nil, mapRepoError(err, "Deal", "")
	}
	board := &models.PipelineBoard{
		Columns:       pipeline.Board(deals),
		WeightedValue: pipeline.WeightedValue(deals),
		WinRate:       pipeline.WinRate(deals),
	}
	for _, col := range board.Columns {
		board.TotalValue += col.TotalValue
	}
	return board, nil
}

func (s *DealService) Delete(ctx context.Context, user *models.UserSession, id string) error {
	if err := s.deals.Remove(ctx, user.ID, id); err != nil {
		return mapRepoError(err, "Deal", id)
	}
	publish(ctx, s.bus, events.Delete, constants.TableDeals, user.ID, id, nil)
	return nil
}

func parseStage(s string) (pipeline.Stage, error) {
	stage, err := pipeline.ParseStage(s)
	if err != nil {
		var unknown *pipeline.ErrUnknownStage
		if errors.As(err, &unknown) {
			return "", apperrors.NewValidationError(constants.FieldStage, err.Error())
		}
		return "", err
	}
	return stage, nil
}

func dealValue(v *float64) (float64, error) {
	if v == nil {
		return 0, nil
	}
	if *v < 0 {
		return 0, apperrors.NewValidationError(constants.FieldValue, "must be zero or more")
	}
	return *v, nil
}

func dealCurrency(v *string) (string, error) {
	c := money.NormalizeCurrency(utils.Deref(v))
	if !money.IsValidCurrency(c) {
		return "", apperrors.NewValidationError("currency", "must be a three letter ISO 4217 code")
	}
	return c, nil
}

func dealProbability(p int) (int, error) {
	if p < 0 || p > 100 {
		return 0, apperrors.NewValidationError(constants.FieldProbability, "must be between 0 and 100")
	}
	return p, nil
}
