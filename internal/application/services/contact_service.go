package services

import (
	"context"
	"strings"
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/auth"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

// ContactService manages contacts.
type ContactService struct {
	contacts *persistence.ContactRepository
	links    linkChecker
	bus      ports.EventPublisher
	now      func() time.Time
}

// NewContactService creates a ContactService.
func NewContactService(contacts *persistence.ContactRepository, bus ports.EventPublisher) *ContactService {
	return &ContactService{
		contacts: contacts,
		links:    linkChecker{base: contacts.RecordRepository},
		bus:      bus,
		now:      time.Now,
	}
}

func (s *ContactService) List(ctx context.Context, user *models.UserSession, opts models.ListOptions) ([]*models.Contact, error) {
	if opts.Status != "" && !models.ContactStatus(opts.Status).Valid() {
		return nil, apperrors.NewValidationError(constants.FieldStatus, "unknown contact status "+opts.Status)
	}
	list, err := s.contacts.List(ctx, user.ID, opts)
	return list, mapRepoError(err, "Contact", "")
}

// ListByCompany returns the contacts that belong to companyID.
func (s *ContactService) ListByCompany(ctx context.Context, user *models.UserSession, companyID string, opts models.ListOptions) ([]*models.Contact, error) {
	opts.CompanyID = companyID
	return s.List(ctx, user, opts)
}

func (s *ContactService) Get(ctx context.Context, user *models.UserSession, id string) (*models.Contact, error) {
	c, err := s.contacts.Get(ctx, user.ID, id)
	return c, mapRepoError(err, "Contact", id)
}

// Create validates and inserts a contact. One of first or last name is
// required and status defaults to lead.
func (s *ContactService) Create(ctx context.Context, user *models.UserSession, in models.ContactInput) (*models.Contact, error) {
	first := strings.TrimSpace(utils.Deref(in.FirstName))
	last := strings.TrimSpace(utils.Deref(in.LastName))
	if first == "" && last == "" {
		return nil, apperrors.NewValidationError(constants.FieldFirstName, "first or last name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	phone, err := checkedText("phone", "phone", in.Phone)
	if err != nil {
		return nil, err
	}
	status := models.ContactLead
	if in.Status != nil && *in.Status != "" {
		status = models.ContactStatus(*in.Status)
		if !status.Valid() {
			return nil, apperrors.NewValidationError(constants.FieldStatus, "unknown contact status "+*in.Status)
		}
	}
	companyID := optionalText(in.CompanyID)
	if err := s.links.check(ctx, user.ID, constants.FieldCompanyID, constants.TableCompanies, companyID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &models.Contact{
		ID:        utils.GenerateID(),
		UserID:    user.ID,
		CompanyID: companyID,
		FirstName: first,
		LastName:  last,
		Email:     email,
		Phone:     phone,
		JobTitle:  optionalText(in.JobTitle),
		Status:    status,
		Notes:     optionalText(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, mapRepoError(err, "Contact", c.ID)
	}

	created, err := s.Get(ctx, user, c.ID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, events.Insert, constants.TableContacts, user.ID, created.ID, created)
	return created, nil
}

// Update applies the non-nil fields of in.
func (s *ContactService) Update(ctx context.Context, user *models.UserSession, id string, in models.ContactInput) (*models.Contact, error) {
	current, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	first, last := current.FirstName, current.LastName
	if in.FirstName != nil {
		first = strings.TrimSpace(*in.FirstName)
		fields[constants.FieldFirstName] = first
	}
	if in.LastName != nil {
		last = strings.TrimSpace(*in.LastName)
		fields[constants.FieldLastName] = last
	}
	if first == "" && last == "" {
		return nil, apperrors.NewValidationError(constants.FieldFirstName, "first or last name is required")
	}
	if in.Email != nil {
		email, err := normalizeEmail(in.Email)
		if err != nil {
			return nil, err
		}
		fields[constants.FieldEmail] = nullable(email)
	}
	if in.Status != nil {
		status := models.ContactStatus(*in.Status)
		if !status.Valid() {
			return nil, apperrors.NewValidationError(constants.FieldStatus, "unknown contact status "+*in.Status)
		}
		fields[constants.FieldStatus] = string(status)
	}
	if in.CompanyID != nil {
		companyID := optionalText(in.CompanyID)
		if err := s.links.check(ctx, user.ID, constants.FieldCompanyID, constants.TableCompanies, companyID); err != nil {
			return nil, err
		}
		fields[constants.FieldCompanyID] = nullable(companyID)
	}
	if in.Phone != nil {
		phone, err := checkedText("phone", "phone", in.Phone)
		if err != nil {
			return nil, err
		}
		fields["phone"] = nullable(phone)
	}
	if in.JobTitle != nil {
		fields["job_title"] = nullable(optionalText(in.JobTitle))
	}
	if in.Notes != nil {
		fields[constants.FieldNotes] = nullable(optionalText(in.Notes))
	}
	if len(fields) == 0 {
		return current, nil
	}

	if err := s.contacts.UpdateFields(ctx, user.ID, id, fields); err != nil {
		return nil, mapRepoError(err, "Contact", id)
	}
	updated, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, events.Update, constants.TableContacts, user.ID, id, updated)
	return updated, nil
}

func (s *ContactService) Delete(ctx context.Context, user *models.UserSession, id string) error {
	if err := s.contacts.Remove(ctx, user.ID, id); err != nil {
		return mapRepoError(err, "Contact", id)
	}
	publish(ctx, s.bus, events.Delete, constants.TableContacts, user.ID, id, nil)
	return nil
}

func normalizeEmail(v *string) (*string, error) {
	email := optionalText(v)
	if email == nil {
		return nil, nil
	}
	if !auth.IsValidEmail(*email) {
		return nil, apperrors.NewValidationError(constants.FieldEmail, "invalid email address")
	}
	return email, nil
}

// nullable stores a nil pointer as SQL NULL.
func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
