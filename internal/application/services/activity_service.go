package services

import (
	"context"
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

// DefaultTimelineLimit bounds a timeline request without an explicit limit.
const DefaultTimelineLimit = 100

// ActivityService manages timeline entries.
type ActivityService struct {
	activities *persistence.ActivityRepository
	links      linkChecker
	bus        ports.EventPublisher
	now        func() time.Time
}

// NewActivityService creates an ActivityService.
func NewActivityService(activities *persistence.ActivityRepository, bus ports.EventPublisher) *ActivityService {
	return &ActivityService{
		activities: activities,
		links:      linkChecker{base: activities.RecordRepository},
		bus:        bus,
		now:        time.Now,
	}
}

func (s *ActivityService) List(ctx context.Context, user *models.UserSession, opts models.ListOptions) ([]*models.Activity, error) {
	if opts.Type != "" && !models.ActivityType(opts.Type).Valid() {
		return nil, apperrors.NewValidationError(constants.FieldType, "unknown activity type "+opts.Type)
	}
	list, err := s.activities.List(ctx, user.ID, opts)
	return list, mapRepoError(err, "Activity", "")
}

func (s *ActivityService) Get(ctx context.Context, user *models.UserSession, id string) (*models.Activity, error) {
	a, err := s.activities.Get(ctx, user.ID, id)
	return a, mapRepoError(err, "Activity", id)
}

// Timeline lists the activities of a contact, company or deal, newest first.
// The record itself must exist and belong to the caller.
func (s *ActivityService) Timeline(ctx context.Context, user *models.UserSession, entity models.TimelineEntity, id string, limit int) ([]*models.Activity, error) {
	table, resource := timelineTable(entity)
	if table == "" {
		return nil, apperrors.NewValidationError("entity", "unknown timeline entity "+string(entity))
	}
	ok, err := s.activities.Exists(ctx, table, user.ID, id)
	if err != nil {
		return nil, mapRepoError(err, resource, id)
	}
	if !ok {
		return nil, apperrors.NewNotFoundError(resource, id)
	}
	if limit <= 0 {
		limit = DefaultTimelineLimit
	}
	list, err := s.activities.Timeline(ctx, user.ID, entity, id, limit)
	return list, mapRepoError(err, "Activity", "")
}

func timelineTable(e models.TimelineEntity) (table, resource string) {
	switch e {
	case models.TimelineContact:
		return constants.TableContacts, "Contact"
	case models.TimelineCompany:
		return constants.TableCompanies, "Company"
	case models.TimelineDeal:
		return constants.TableDeals, "Deal"
	}
	return "", ""
}

// Create validates and inserts an activity. occurred_at defaults to now.
func (s *ActivityService) Create(ctx context.Context, user *models.UserSession, in models.ActivityInput) (*models.Activity, error) {
	if in.Type == nil {
		return nil, apperrors.NewValidationError(constants.FieldType, "is required")
	}
	kind := models.ActivityType(*in.Type)
	if !kind.Valid() {
		return nil, apperrors.NewValidationError(constants.FieldType, "unknown activity type "+*in.Type)
	}
	subject, err := requireText("subject", in.Subject)
	if err != nil {
		return nil, err
	}
	if in.DurationMinutes != nil && *in.DurationMinutes < 0 {
		return nil, apperrors.NewValidationError("duration_minutes", "must be zero or more")
	}
	contactID, companyID, dealID := optionalText(in.ContactID), optionalText(in.CompanyID), optionalText(in.DealID)
	if err := s.checkLinks(ctx, user, contactID, companyID, dealID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	occurred := now
	if in.OccurredAt != nil {
		occurred = in.OccurredAt.UTC()
	}
	a := &models.Activity{
		ID:              utils.GenerateID(),
		UserID:          user.ID,
		Type:            kind,
		Subject:         subject,
		Description:     optionalText(in.Description),
		ContactID:       contactID,
		CompanyID:       companyID,
		DealID:          dealID,
		OccurredAt:      occurred,
		DurationMinutes: in.DurationMinutes,
		CreatedAt:       now,
	}
	if err := s.activities.Create(ctx, a); err != nil {
		return nil, mapRepoError(err, "Activity", a.ID)
	}

	created, err := s.Get(ctx, user, a.ID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, events.Insert, constants.TableActivities, user.ID, created.ID, created)
	return created, nil
}

func (s *ActivityService) checkLinks(ctx context.Context, user *models.UserSession, contactID, companyID, dealID *string) error {
	if err := s.links.check(ctx, user.ID, constants.FieldContactID, constants.TableContacts, contactID); err != nil {
		return err
	}
	if err := s.links.check(ctx, user.ID, constants.FieldCompanyID, constants.TableCompanies, companyID); err != nil {
		return err
	}
	return s.links.check(ctx, user.ID, constants.FieldDealID, constants.TableDeals, dealID)
}

func (s *ActivityService) Update(ctx context.Context, user *models.UserSession, id string, in models.ActivityInput) (*models.Activity, error) {
	fields := map[string]interface{}{}
	if in.Type != nil {
		kind := models.ActivityType(*in.Type)
		if !kind.Valid() {
			return nil, apperrors.NewValidationError(constants.FieldType, "unknown activity type "+*in.Type)
		}
		fields[constants.FieldType] = string(kind)
	}
	if in.Subject != nil {
		subject, err := requireText("subject", in.Subject)
		if err != nil {
			return nil, err
		}
		fields["subject"] = subject
	}
	if in.Description != nil {
		fields[constants.FieldDescription] = nullable(optionalText(in.Description))
	}
	if in.OccurredAt != nil {
		fields[constants.FieldOccurredAt] = in.OccurredAt.UTC()
	}
	if in.DurationMinutes != nil {
		if *in.DurationMinutes < 0 {
			return nil, apperrors.NewValidationError("duration_minutes", "must be zero or more")
		}
		fields["duration_minutes"] = *in.DurationMinutes
	}
	links := map[string]*string{}
	if in.ContactID != nil {
		links[constants.FieldContactID] = optionalText(in.ContactID)
	}
	if in.CompanyID != nil {
		links[constants.FieldCompanyID] = optionalText(in.CompanyID)
	}
	if in.DealID != nil {
		links[constants.FieldDealID] = optionalText(in.DealID)
	}
	if err := s.checkLinks(ctx, user, links[constants.FieldContactID], links[constants.FieldCompanyID], links[constants.FieldDealID]); err != nil {
		return nil, err
	}
	for col, v := range links {
		fields[col] = nullable(v)
	}
	if len(fields) == 0 {
		return s.Get(ctx, user, id)
	}

	if err := s.activities.UpdateFields(ctx, user.ID, id, fields); err != nil {
		return nil, mapRepoError(err, "Activity", id)
	}
	updated, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, events.Update, constants.TableActivities, user.ID, id, updated)
	return updated, nil
}

func (s *ActivityService) Delete(ctx context.Context, user *models.UserSession, id string) error {
	if err := s.activities.Remove(ctx, user.ID, id); err != nil {
		return mapRepoError(err, "Activity", id)
	}
	publish(ctx, s.bus, events.Delete, constants.TableActivities, user.ID, id, nil)
	return nil
}
