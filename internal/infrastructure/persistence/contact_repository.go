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

var contactColumns = []string{
	"id", "user_id", "company_id", "first_name", "last_name", "email", "phone", "job_title", "status", "notes",
	"created_at", "updated_at",
}

var contactList = listSpec{
	table:        constants.TableContacts,
	columns:      columnSet(contactColumns...),
	searchCols:   []string{"first_name", "last_name", "email", "job_title"},
	defaultOrder: constants.FieldCreatedAt,
}

// ContactRepository persists contacts. Reads embed the company summary.
type ContactRepository struct {
	*RecordRepository
}

// NewContactRepository creates a new ContactRepository
func NewContactRepository(base *RecordRepository) *ContactRepository {
	return &ContactRepository{RecordRepository: base}
}

func selectContacts() *query.Builder {
	return query.From(constants.TableContacts).
		Select(contactColumns...).
		Select("co.id", "co.name").
		Join("LEFT", constants.TableCompanies, "co", "co.id = contacts.company_id")
}

func scanContact(s rowScanner) (*models.Contact, error) {
	var c models.Contact
	var companyID, email, phone, jobTitle, notes, coID, coName sql.NullString
	var status string
	if err := s.Scan(
		&c.ID, &c.UserID, &companyID, &c.FirstName, &c.LastName, &email, &phone, &jobTitle, &status, &notes,
		&c.CreatedAt, &c.UpdatedAt, &coID, &coName,
	); err != nil {
		return nil, err
	}
	c.CompanyID = nullableString(companyID)
	c.Email = nullableString(email)
	c.Phone = nullableString(phone)
	c.JobTitle = nullableString(jobTitle)
	c.Notes = nullableString(notes)
	c.Status = models.ContactStatus(status)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if coID.Valid {
		c.Company = &models.CompanySummary{ID: coID.String, Name: coName.String}
	}
	return &c, nil
}

// List returns the owner's contacts, optionally narrowed to a company or status.
func (r *ContactRepository) List(ctx context.Context, userID string, opts models.ListOptions) ([]*models.Contact, error) {
	b := selectContacts().OwnedBy(userID)
	if opts.CompanyID != "" {
		b = b.Where("contacts.company_id = ?", opts.CompanyID)
	}
	if opts.Status != "" {
		b = b.Where("contacts.status = ?", opts.Status)
	}
	b, err := r.applyListOptions(b, contactList, opts)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, b.Build())
}

// ListAll returns every contact of the owner, for indexing.
func (r *ContactRepository) ListAll(ctx context.Context, userID string) ([]*models.Contact, error) {
	return r.fetch(ctx, selectContacts().OwnedBy(userID).OrderBy(constants.FieldID, constants.SortASC).Build())
}

func (r *ContactRepository) fetch(ctx context.Context, q query.QueryResult) ([]*models.Contact, error) {
	rows, err := r.GetExecutor(ctx).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*models.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Get returns one owned contact.
func (r *ContactRepository) Get(ctx context.Context, userID, id string) (*models.Contact, error) {
	q := selectContacts().Where("contacts.id = ?", id).OwnedBy(userID).Build()
	c, err := scanContact(r.GetExecutor(ctx).QueryRowContext(ctx, q.SQL, q.Params...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// Create inserts c. ID and timestamps must already be set.
func (r *ContactRepository) Create(ctx context.Context, c *models.Contact) error {
	return r.Insert(ctx, constants.TableContacts, map[string]interface{}{
		"id":         c.ID,
		"user_id":    c.UserID,
		"company_id": nullable(c.CompanyID),
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"email":      nullable(c.Email),
		"phone":      nullable(c.Phone),
		"job_title":  nullable(c.JobTitle),
		"status":     string(c.Status),
		"notes":      nullable(c.Notes),
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	})
}

// UpdateFields applies a partial update to an owned contact.
func (r *ContactRepository) UpdateFields(ctx context.Context, userID, id string, fields map[string]interface{}) error {
	return r.Update(ctx, constants.TableContacts, userID, id, fields, true)
}

// Remove deletes an owned contact.
func (r *ContactRepository) Remove(ctx context.Context, userID, id string) error {
	return r.Delete(ctx, constants.TableContacts, userID, id)
}
