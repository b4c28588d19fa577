package services

import (
	"context"
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

// CompanyService manages companies.
type CompanyService struct {
	companies *persistence.CompanyRepository
	bus       ports.EventPublisher
	now       func() time.Time
}

// NewCompanyService creates a CompanyService.
func NewCompanyService(companies *persistence.CompanyRepository, bus ports.EventPublisher) *CompanyService {
	return &CompanyService{companies: companies, bus: bus, now: time.Now}
}

func (s *CompanyService) List(ctx context.Context, user *models.UserSession, opts models.ListOptions) ([]*models.Company, error) {
	list, err := s.companies.List(ctx, user.ID, opts)
	return list, mapRepoError(err, "Company", "")
}

// Get returns the company with its contact and deal counts.
func (s *CompanyService) Get(ctx context.Context, user *models.UserSession, id string) (*models.Company, error) {
	c, err := s.companies.Get(ctx, user.ID, id)
	return c, mapRepoError(err, "Company", id)
}

// companyFieldRules names the validator for columns with a format.
var companyFieldRules = map[string]string{
	"website": "url",
	"phone":   "phone",
}

func (s *CompanyService) Create(ctx context.Context, user *models.UserSession, in models.CompanyInput) (*models.Company, error) {
	name, err := requireText(constants.FieldName, in.Name)
	if err != nil {
		return nil, err
	}
	website, err := checkedText("website", "url", in.Website)
	if err != nil {
		return nil, err
	}
	phone, err := checkedText("phone", "phone", in.Phone)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &models.Company{
		ID:        utils.GenerateID(),
		UserID:    user.ID,
		Name:      name,
		Industry:  optionalText(in.Industry),
		Website:   website,
		Phone:     phone,
		Address:   optionalText(in.Address),
		Size:      optionalText(in.Size),
		Notes:     optionalText(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.companies.Create(ctx, c); err != nil {
		return nil, mapRepoError(err, "Company", c.ID)
	}

	created, err := s.Get(ctx, user, c.ID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, events.Insert, constants.TableCompanies, user.ID, created.ID, created)
	return created, nil
}

func (s *CompanyService) Update(ctx context.Context, user *models.UserSession, id string, in models.CompanyInput) (*models.Company, error) {
	fields := map[string]interface{}{}
	if in.Name != nil {
		name, err := requireText(constants.FieldName, in.Name)
		if err != nil {
			return nil, err
		}
		fields[constants.FieldName] = name
	}
	optional := map[string]*string{
		"industry":           in.Industry,
		"website":            in.Website,
		"phone":              in.Phone,
		"address":            in.Address,
		"size":               in.Size,
		constants.FieldNotes: in.Notes,
	}
	for col, v := range optional {
		if v == nil {
			continue
		}
		text := optionalText(v)
		if rule, ok := companyFieldRules[col]; ok {
			var err error
			if text, err = checkedText(col, rule, v); err != nil {
				return nil, err
			}
		}
		fields[col] = nullable(text)
	}
	if len(fields) == 0 {
		return s.Get(ctx, user, id)
	}

	if err := s.companies.UpdateFields(ctx, user.ID, id, fields); err != nil {
		return nil, mapRepoError(err, "Company", id)
	}
	updated, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, events.Update, constants.TableCompanies, user.ID, id, updated)
	return updated, nil
}

// Delete removes the company. Contacts, deals and activities keep their rows
// with company_id cleared by the foreign key.
func (s *CompanyService) Delete(ctx context.Context, user *models.UserSession, id string) error {
	if err := s.companies.Remove(ctx, user.ID, id); err != nil {
		return mapRepoError(err, "Company", id)
	}
	publish(ctx, s.bus, events.Delete, constants.TableCompanies, user.ID, id, nil)
	return nil
}
