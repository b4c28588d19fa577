package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/internal/infrastructure/storage"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

// Upload is a file received from the client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DocumentService stores document blobs and their metadata rows.
type DocumentService struct {
	documents *persistence.DocumentRepository
	blobs     ports.BlobStore
	links     linkChecker
	bus       ports.EventPublisher
	maxSize   int64
	expiry    time.Duration
	now       func() time.Time
}

// NewDocumentService creates a DocumentService. blobs may be nil, in which
// case uploads and downloads report the feature as unavailable.
func NewDocumentService(documents *persistence.DocumentRepository, blobs ports.BlobStore, bus ports.EventPublisher, maxSize int64, expiry time.Duration) *DocumentService {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &DocumentService{
		documents: documents,
		blobs:     blobs,
		links:     linkChecker{base: documents.RecordRepository},
		bus:       bus,
		maxSize:   maxSize,
		expiry:    expiry,
		now:       time.Now,
	}
}

func (s *DocumentService) List(ctx context.Context, user *models.UserSession, opts models.ListOptions) ([]*models.Document, error) {
	list, err := s.documents.List(ctx, user.ID, opts)
	return list, mapRepoError(err, "Document", "")
}

func (s *DocumentService) Get(ctx context.Context, user *models.UserSession, id string) (*models.Document, error) {
	d, err := s.documents.Get(ctx, user.ID, id)
	return d, mapRepoError(err, "Document", id)
}

// Upload stores the blob first and then the metadata row. If the row cannot
// be written the blob is removed again.
func (s *DocumentService) Upload(ctx context.Context, user *models.UserSession, up Upload, links models.DocumentLinks) (*models.Document, error) {
	if s.blobs == nil {
		return nil, apperrors.NewUnavailableError("document storage")
	}
	name := strings.TrimSpace(up.Name)
	if name == "" {
		return nil, apperrors.NewValidationError(constants.FieldName, "file name is required")
	}
	if up.Size <= 0 {
		return nil, apperrors.NewValidationError("file", "file is empty")
	}
	if s.maxSize > 0 && up.Size > s.maxSize {
		return nil, apperrors.NewValidationError("file", fmt.Sprintf("file exceeds the %d byte limit", s.maxSize))
	}
	links = models.DocumentLinks{
		ContactID: optionalText(links.ContactID),
		CompanyID: optionalText(links.CompanyID),
		DealID:    optionalText(links.DealID),
	}
	if err := s.links.check(ctx, user.ID, constants.FieldContactID, constants.TableContacts, links.ContactID); err != nil {
		return nil, err
	}
	if err := s.links.check(ctx, user.ID, constants.FieldCompanyID, constants.TableCompanies, links.CompanyID); err != nil {
		return nil, err
	}
	if err := s.links.check(ctx, user.ID, constants.FieldDealID, constants.TableDeals, links.DealID); err != nil {
		return nil, err
	}

	d := &models.Document{
		ID:        utils.GenerateID(),
		UserID:    user.ID,
		Name:      name,
		MimeType:  contentType(name, up.ContentType),
		SizeBytes: up.Size,
		ContactID: links.ContactID,
		CompanyID: links.CompanyID,
		DealID:    links.DealID,
		CreatedAt: s.now().UTC(),
	}
	d.StorageKey = storage.ObjectKey(user.ID, d.ID, name)

	if err := s.blobs.Put(ctx, d.StorageKey, up.Body, up.Size, d.MimeType); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if err := s.documents.Create(ctx, d); err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), d.StorageKey); derr != nil {
			zap.L().Error("orphaned document blob", zap.String("key", d.StorageKey), zap.Error(derr))
		}
		return nil, mapRepoError(err, "Document", d.ID)
	}

	publish(ctx, s.bus, events.Insert, constants.TableDocuments, user.ID, d.ID, d)
	return d, nil
}

// DownloadURL returns a time-limited link to the document's blob.
func (s *DocumentService) DownloadURL(ctx context.Context, user *models.UserSession, id string) (*models.DownloadLink, error) {
	if s.blobs == nil {
		return nil, apperrors.NewUnavailableError("document storage")
	}
	d, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	url, err := s.blobs.PresignedURL(ctx, d.StorageKey, d.Name, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("sign download: %w", err)
	}
	return &models.DownloadLink{URL: url, ExpiresAt: s.now().UTC().Add(s.expiry)}, nil
}

// Delete removes the row, then the blob. A blob that cannot be removed is
// logged; the document is already gone for the caller.
func (s *DocumentService) Delete(ctx context.Context, user *models.UserSession, id string) error {
	d, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.documents.Remove(ctx, user.ID, id); err != nil {
		return mapRepoError(err, "Document", id)
	}
	if s.blobs != nil {
		if err := s.blobs.Delete(ctx, d.StorageKey); err != nil {
			zap.L().Error("failed to delete document blob", zap.String("key", d.StorageKey), zap.Error(err))
		}
	}
	publish(ctx, s.bus, events.Delete, constants.TableDocuments, user.ID, id, nil)
	return nil
}

func contentType(name, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
