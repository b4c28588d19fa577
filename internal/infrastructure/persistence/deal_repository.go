package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/pipeline"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/query"
)

var dealColumns = []string{
	"id", "user_id", "contact_id", "company_id", "title", "value", "currency", "stage", "probability",
	"expected_close_date", "closed_at", "description", "created_at", "updated_at",
}

var dealList = listSpec{
	table:        constants.TableDeals,
	columns:      columnSet(dealColumns...),
	searchCols:   []string{"title", "description"},
	defaultOrder: constants.FieldCreatedAt,
}

// DealRepository persists deals. Reads embed contact and company summaries.
type DealRepository struct {
	*RecordRepository
}

// NewDealRepository creates a new DealRepository
func NewDealRepository(base *RecordRepository) *DealRepository {
	return &DealRepository{RecordRepository: base}
}

func selectDeals() *query.Builder {
	return query.From(constants.TableDeals).
		Select(dealColumns...).
		Select("ct.id", "ct.first_name", "ct.last_name", "ct.email", "co.id", "co.name").
		Join("LEFT", constants.TableContacts, "ct", "ct.id = deals.contact_id").
		Join("LEFT", constants.TableCompanies, "co", "co.id = deals.company_id")
}

func scanDeal(s rowScanner) (*models.Deal, error) {
	var d models.Deal
	var contactID, companyID, description sql.NullString
	var ctID, ctFirst, ctLast, ctEmail, coID, coName sql.NullString
	var expected, closed sql.NullTime
	var stage string
	if err := s.Scan(
		&d.ID, &d.UserID, &contactID, &companyID, &d.Title, &d.Value, &d.Currency, &stage, &d.Probability,
		&expected, &closed, &description, &d.CreatedAt, &d.UpdatedAt,
		&ctID, &ctFirst, &ctLast, &ctEmail, &coID, &coName,
	); err != nil {
		return nil, err
	}
	d.ContactID = nullableString(contactID)
	d.CompanyID = nullableString(companyID)
	d.Description = nullableString(description)
	d.Stage = pipeline.Stage(stage)
	d.ExpectedCloseDate = nullableTime(expected)
	d.ClosedAt = nullableTime(closed)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	if ctID.Valid {
		d.Contact = &models.ContactSummary{
			ID: ctID.String, FirstName: ctFirst.String, LastName: ctLast.String, Email: nullableString(ctEmail),
		}
	}
	if coID.Valid {
		d.Company = &models.CompanySummary{ID: coID.String, Name: coName.String}
	}
	return &d, nil
}

// List returns the owner's deals, optionally narrowed by stage, contact or company.
func (r *DealRepository) List(ctx context.Context, userID string, opts models.ListOptions) ([]*models.Deal, error) {
	b := selectDeals().OwnedBy(userID)
	if opts.Stage != "" {
		b = b.Where("deals.stage = ?", opts.Stage)
	}
	if opts.ContactID != "" {
		b = b.Where("deals.contact_id = ?", opts.ContactID)
	}
	if opts.CompanyID != "" {
		b = b.Where("deals.company_id = ?", opts.CompanyID)
	}
	b, err := r.applyListOptions(b, dealList, opts)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, b.Build())
}

// ListAll returns every deal of the owner. The pipeline board and the
// dashboard aggregate over the full set.
func (r *DealRepository) ListAll(ctx context.Context, userID string) ([]*models.Deal, error) {
	return r.fetch(ctx, selectDeals().
		OwnedBy(userID).
		OrderBy(constants.FieldCreatedAt, constants.SortDESC).
		OrderBy(constants.FieldID, constants.SortDESC).
		Build())
}

func (r *DealRepository) fetch(ctx context.Context, q query.QueryResult) ([]*models.Deal, error) {
	rows, err := r.GetExecutor(ctx).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	deals := make([]*models.Deal, 0)
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// Get returns one owned deal.
func (r *DealRepository) Get(ctx context.Context, userID, id string) (*models.Deal, error) {
	q := selectDeals().Where("deals.id = ?", id).OwnedBy(userID).Build()
	d, err := scanDeal(r.GetExecutor(ctx).QueryRowContext(ctx, q.SQL, q.Params...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	return d, nil
}

// Create inserts d. ID and timestamps must already be set.
func (r *DealRepository) Create(ctx context.Context, d *models.Deal) error {
	return r.Insert(ctx, constants.TableDeals, map[string]interface{}{
		"id":                  d.ID,
		"user_id":             d.UserID,
		"contact_id":          nullable(d.ContactID),
		"company_id":          nullable(d.CompanyID),
		"title":               d.Title,
		"value":               d.Value,
		"currency":            d.Currency,
		"stage":               string(d.Stage),
		"probability":         d.Probability,
		"expected_close_date": nullable(d.ExpectedCloseDate),
		"closed_at":           nullable(d.ClosedAt),
		"description":         nullable(d.Description),
		"created_at":          d.CreatedAt,
		"updated_at":          d.UpdatedAt,
	})
}

// UpdateFields applies a partial update to an owned deal.
func (r *DealRepository) UpdateFields(ctx context.Context, userID, id string, fields map[string]interface{}) error {
	return r.Update(ctx, constants.TableDeals, userID, id, fields, true)
}

// SaveState writes a stage transition result.
func (r *DealRepository) SaveState(ctx context.Context, userID, id string, s pipeline.State) error {
	return r.UpdateFields(ctx, userID, id, map[string]interface{}{
		constants.FieldStage:       string(s.Stage),
		constants.FieldProbability: s.Probability,
		constants.FieldClosedAt:    nullable(s.ClosedAt),
	})
}

// Remove deletes an owned deal.
func (r *DealRepository) Remove(ctx context.Context, userID, id string) error {
	return r.Delete(ctx, constants.TableDeals, userID, id)
}
