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

var documentColumns = []string{
	"id", "user_id", "name", "storage_key", "mime_type", "size_bytes", "contact_id", "company_id", "deal_id", "created_at",
}

var documentList = listSpec{
	table:        constants.TableDocuments,
	columns:      columnSet(documentColumns...),
	searchCols:   []string{"name"},
	defaultOrder: constants.FieldCreatedAt,
}

// DocumentRepository persists document metadata. Blobs live in object storage.
type DocumentRepository struct {
	*RecordRepository
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(base *RecordRepository) *DocumentRepository {
	return &DocumentRepository{RecordRepository: base}
}

func scanDocument(s rowScanner) (*models.Document, error) {
	var d models.Document
	var contactID, companyID, dealID sql.NullString
	if err := s.Scan(
		&d.ID, &d.UserID, &d.Name, &d.StorageKey, &d.MimeType, &d.SizeBytes, &contactID, &companyID, &dealID, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.ContactID = nullableString(contactID)
	d.CompanyID = nullableString(companyID)
	d.DealID = nullableString(dealID)
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

// List returns the owner's documents, optionally narrowed to a linked record.
func (r *DocumentRepository) List(ctx context.Context, userID string, opts models.ListOptions) ([]*models.Document, error) {
	b := query.From(constants.TableDocuments).Select(documentColumns...).OwnedBy(userID)
	if opts.ContactID != "" {
		b = b.Where("documents.contact_id = ?", opts.ContactID)
	}
	if opts.CompanyID != "" {
		b = b.Where("documents.company_id = ?", opts.CompanyID)
	}
	if opts.DealID != "" {
		b = b.Where("documents.deal_id = ?", opts.DealID)
	}
	b, err := r.applyListOptions(b, documentList, opts)
	if err != nil {
		return nil, err
	}
	q := b.Build()

	rows, err := r.GetExecutor(ctx).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Get returns one owned document.
func (r *DocumentRepository) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	q := query.From(constants.TableDocuments).
		Select(documentColumns...).
		Where("documents.id = ?", id).
		OwnedBy(userID).
		Build()
	d, err := scanDocument(r.GetExecutor(ctx).QueryRowContext(ctx, q.SQL, q.Params...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// Create inserts d. ID, storage key and timestamps must already be set.
func (r *DocumentRepository) Create(ctx context.Context, d *models.Document) error {
	return r.Insert(ctx, constants.TableDocuments, map[string]interface{}{
		"id":          d.ID,
		"user_id":     d.UserID,
		"name":        d.Name,
		"storage_key": d.StorageKey,
		"mime_type":   d.MimeType,
		"size_bytes":  d.SizeBytes,
		"contact_id":  nullable(d.ContactID),
		"company_id":  nullable(d.CompanyID),
		"deal_id":     nullable(d.DealID),
		"created_at":  d.CreatedAt,
	})
}

// Remove deletes an owned document row.
func (r *DocumentRepository) Remove(ctx context.Context, userID, id string) error {
	return r.Delete(ctx, constants.TableDocuments, userID, id)
}
