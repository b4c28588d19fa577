package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/query"
)

var activityColumns = []string{
	"id", "user_id", "type", "subject", "description", "contact_id", "company_id", "deal_id",
	"occurred_at", "duration_minutes", "created_at",
}

var activityList = listSpec{
	table:        constants.TableActivities,
	columns:      columnSet(activityColumns...),
	searchCols:   []string{"subject", "description"},
	defaultOrder: constants.FieldOccurredAt,
}

// ActivityRepository persists timeline entries. Reads embed contact and deal summaries.
type ActivityRepository struct {
	*RecordRepository
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(base *RecordRepository) *ActivityRepository {
	return &ActivityRepository{RecordRepository: base}
}

func selectActivities() *query.Builder {
	return query.From(constants.TableActivities).
		Select(activityColumns...).
		Select("ct.id", "ct.first_name", "ct.last_name", "dl.id", "dl.title").
		Join("LEFT", constants.TableContacts, "ct", "ct.id = activities.contact_id").
		Join("LEFT", constants.TableDeals, "dl", "dl.id = activities.deal_id")
}

func scanActivity(s rowScanner) (*models.Activity, error) {
	var a models.Activity
	var kind string
	var description, contactID, companyID, dealID sql.NullString
	var ctID, ctFirst, ctLast, dlID, dlTitle sql.NullString
	var duration sql.NullInt64
	if err := s.Scan(
		&a.ID, &a.UserID, &kind, &a.Subject, &description, &contactID, &companyID, &dealID,
		&a.OccurredAt, &duration, &a.CreatedAt,
		&ctID, &ctFirst, &ctLast, &dlID, &dlTitle,
	); err != nil {
		return nil, err
	}
	a.Type = models.ActivityType(kind)
	a.Description = nullableString(description)
	a.ContactID = nullableString(contactID)
	a.CompanyID = nullableString(companyID)
	a.DealID = nullableString(dealID)
	a.DurationMinutes = nullableInt(duration)
	a.OccurredAt = a.OccurredAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	if ctID.Valid {
		a.Contact = &models.ContactSummary{ID: ctID.String, FirstName: ctFirst.String, LastName: ctLast.String}
	}
	if dlID.Valid {
		a.Deal = &models.DealSummary{ID: dlID.String, Title: dlTitle.String}
	}
	return &a, nil
}

// List returns the owner's activities, newest first unless ordered otherwise.
func (r *ActivityRepository) List(ctx context.Context, userID string, opts models.ListOptions) ([]*models.Activity, error) {
	b := selectActivities().OwnedBy(userID)
	if opts.Type != "" {
		b = b.Where("activities.type = ?", opts.Type)
	}
	if opts.ContactID != "" {
		b = b.Where("activities.contact_id = ?", opts.ContactID)
	}
	if opts.CompanyID != "" {
		b = b.Where("activities.company_id = ?", opts.CompanyID)
	}
	if opts.DealID != "" {
		b = b.Where("activities.deal_id = ?", opts.DealID)
	}
	b, err := r.applyListOptions(b, activityList, opts)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, b.Build())
}

// Timeline lists activities linked to a contact, company or deal, newest first.
func (r *ActivityRepository) Timeline(ctx context.Context, userID string, entity models.TimelineEntity, id string, limit int) ([]*models.Activity, error) {
	column := entity.Column()
	if column == "" {
		return nil, fmt.Errorf("%w: unknown timeline entity %q", ErrInvalidFilter, entity)
	}
	if limit <= 0 || limit > constants.DefaultMaxLimit {
		limit = constants.DefaultMaxLimit
	}
	q := selectActivities().
		Where("activities."+column+" = ?", id).
		OwnedBy(userID).
		OrderBy(constants.FieldOccurredAt, constants.SortDESC).
		OrderBy(constants.FieldCreatedAt, constants.SortDESC).
		Limit(limit).
		Build()
	return r.fetch(ctx, q)
}

// Since returns the owner's activities that occurred at or after since.
func (r *ActivityRepository) Since(ctx context.Context, userID string, since time.Time) ([]*models.Activity, error) {
	q := selectActivities().
		OwnedBy(userID).
		Where("activities.occurred_at >= ?", since.UTC()).
		OrderBy(constants.FieldOccurredAt, constants.SortDESC).
		Build()
	return r.fetch(ctx, q)
}

// Recent returns the owner's latest activities.
func (r *ActivityRepository) Recent(ctx context.Context, userID string, limit int) ([]*models.Activity, error) {
	q := selectActivities().
		OwnedBy(userID).
		OrderBy(constants.FieldOccurredAt, constants.SortDESC).
		OrderBy(constants.FieldCreatedAt, constants.SortDESC).
		Limit(limit).
		Build()
	return r.fetch(ctx, q)
}

func (r *ActivityRepository) fetch(ctx context.Context, q query.QueryResult) ([]*models.Activity, error) {
	rows, err := r.GetExecutor(ctx).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*models.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// Get returns one owned activity.
func (r *ActivityRepository) Get(ctx context.Context, userID, id string) (*models.Activity, error) {
	q := selectActivities().Where("activities.id = ?", id).OwnedBy(userID).Build()
	a, err := scanActivity(r.GetExecutor(ctx).QueryRowContext(ctx, q.SQL, q.Params...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// Create inserts a. ID and timestamps must already be set.
func (r *ActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	return r.Insert(ctx, constants.TableActivities, map[string]interface{}{
		"id":               a.ID,
		"user_id":          a.UserID,
		"type":             string(a.Type),
		"subject":          a.Subject,
		"description":      nullable(a.Description),
		"contact_id":       nullable(a.ContactID),
		"company_id":       nullable(a.CompanyID),
		"deal_id":          nullable(a.DealID),
		"occurred_at":      a.OccurredAt,
		"duration_minutes": nullable(a.DurationMinutes),
		"created_at":       a.CreatedAt,
	})
}

// UpdateFields applies a partial update. Activities have no updated_at.
func (r *ActivityRepository) UpdateFields(ctx context.Context, userID, id string, fields map[string]interface{}) error {
	return r.Update(ctx, constants.TableActivities, userID, id, fields, false)
}

// Remove deletes an owned activity.
func (r *ActivityRepository) Remove(ctx context.Context, userID, id string) error {
	return r.Delete(ctx, constants.TableActivities, userID, id)
}
