package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/query"
)

var companyColumns = []string{
	"id", "user_id", "name", "industry", "website", "phone", "address", "size", "notes", "created_at", "updated_at",
}

var companyList = listSpec{
	table:        constants.TableCompanies,
	columns:      columnSet(companyColumns...),
	searchCols:   []string{"name", "industry", "website"},
	defaultOrder: constants.FieldName,
	defaultDir:   constants.SortASC,
}

// CompanyRepository persists companies.
type CompanyRepository struct {
	*RecordRepository
}

// NewCompanyRepository creates a new CompanyRepository
func NewCompanyRepository(base *RecordRepository) *CompanyRepository {
	return &CompanyRepository{RecordRepository: base}
}

func scanCompany(s rowScanner, extra ...interface{}) (*models.Company, error) {
	var c models.Company
	var industry, website, phone, address, size, notes sql.NullString
	dest := []interface{}{
		&c.ID, &c.UserID, &c.Name, &industry, &website, &phone, &address, &size, &notes, &c.CreatedAt, &c.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.Industry = nullableString(industry)
	c.Website = nullableString(website)
	c.Phone = nullableString(phone)
	c.Address = nullableString(address)
	c.Size = nullableString(size)
	c.Notes = nullableString(notes)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// List returns the owner's companies.
func (r *CompanyRepository) List(ctx context.Context, userID string, opts models.ListOptions) ([]*models.Company, error) {
	b := query.From(constants.TableCompanies).Select(companyColumns...).OwnedBy(userID)
	b, err := r.applyListOptions(b, companyList, opts)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, b.Build())
}

// ListAll returns every company of the owner, for indexing.
func (r *CompanyRepository) ListAll(ctx context.Context, userID string) ([]*models.Company, error) {
	return r.fetch(ctx, query.From(constants.TableCompanies).
		Select(companyColumns...).
		OwnedBy(userID).
		OrderBy(constants.FieldID, constants.SortASC).
		Build())
}

func (r *CompanyRepository) fetch(ctx context.Context, q query.QueryResult) ([]*models.Company, error) {
	rows, err := r.GetExecutor(ctx).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	companies := make([]*models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}
// Get returns one company with its contact and deal counts.
func (r *CompanyRepository) Get(ctx context.Context, userID, id string) (*models.Company, error) {
	q := query.From(constants.TableCompanies).
		Select(companyColumns...).
		SelectRaw("(SELECT COUNT(*) FROM contacts WHERE contacts.company_id = companies.id)", "contact_count").
		SelectRaw("(SELECT COUNT(*) FROM deals WHERE deals.company_id = companies.id)", "deal_count").
		Where("companies.id = ?", id).
		OwnedBy(userID).
		Build()

	var contacts, deals int
	c, err := scanCompany(r.GetExecutor(ctx).QueryRowContext(ctx, q.SQL, q.Params...), &contacts, &deals)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	c.ContactCount = &contacts
	c.DealCount = &deals
	return c, nil
}

// Create inserts c. ID and timestamps must already be set.
func (r *CompanyRepository) Create(ctx context.Context, c *models.Company) error {
	return r.Insert(ctx, constants.TableCompanies, map[string]interface{}{
		"id":         c.ID,
		"user_id":    c.UserID,
		"name":       c.Name,
		"industry":   nullable(c.Industry),
		"website":    nullable(c.Website),
		"phone":      nullable(c.Phone),
		"address":    nullable(c.Address),
		"size":       nullable(c.Size),
		"notes":      nullable(c.Notes),
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	})
}

// UpdateFields applies a partial update to an owned company.
func (r *CompanyRepository) UpdateFields(ctx context.Context, userID, id string, fields map[string]interface{}) error {
	return r.Update(ctx, constants.TableCompanies, userID, id, fields, true)
}

// Remove deletes an owned company. Contacts and deals keep their rows with company_id cleared.
func (r *CompanyRepository) Remove(ctx context.Context, userID, id string) error {
	return r.Delete(ctx, constants.TableCompanies, userID, id)
}
