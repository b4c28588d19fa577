package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/internal/infrastructure/search"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/money"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	indexTimeout       = 10 * time.Second
)

// SearchService runs global search across contacts, companies and deals.
// The full-text index is used while it is healthy; SQL LIKE matching is the
// fallback.
type SearchService struct {
	index     ports.SearchIndex
	queries   *persistence.QueryRepository
	users     *persistence.UserRepository
	contacts  *persistence.ContactRepository
	companies *persistence.CompanyRepository
	deals     *persistence.DealRepository
	pending   sync.WaitGroup

	mu sync.Mutex
	// tails holds, per document, the done channel of the last queued change
	// so changes to one record reach the index in publish order.
	tails map[string]chan struct{}
}

// NewSearchService creates a SearchService. index may be nil.
func NewSearchService(
	index ports.SearchIndex,
	queries *persistence.QueryRepository,
	users *persistence.UserRepository,
	contacts *persistence.ContactRepository,
	companies *persistence.CompanyRepository,
	deals *persistence.DealRepository,
) *SearchService {
	return &SearchService{
		index:     index,
		queries:   queries,
		users:     users,
		contacts:  contacts,
		companies: companies,
		deals:     deals,
		tails:     make(map[string]chan struct{}),
	}
}

// Search returns the caller's records matching term.
func (s *SearchService) Search(ctx context.Context, user *models.UserSession, term string, limit int) ([]models.SearchHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperrors.NewValidationError("q", "search term is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	if s.index != nil && s.index.Healthy(ctx) {
		hits, err := s.index.Search(ctx, user.ID, term, limit)
		if err == nil {
			return hits, nil
		}
		zap.L().Warn("index search failed, falling back to SQL", zap.Error(err))
	}

	hits, err := s.queries.Search(ctx, user.ID, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}

// HandleChange keeps the index in step with record writes. Indexing runs in
// the background and failures are only logged. Changes to the same record
// are applied one at a time, in the order they were published.
func (s *SearchService) HandleChange(_ context.Context, change events.Change) error {
	if s.index == nil || !indexedTable(change.Table) {
		return nil
	}
	docID := search.DocumentID(change.Table, change.RecordID)
	done := make(chan struct{})
	s.mu.Lock()
	prev := s.tails[docID]
	s.tails[docID] = done
	s.mu.Unlock()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer s.release(docID, done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()
		if err := s.apply(ctx, change); err != nil {
			zap.L().Warn("search indexing failed",
				zap.String("table", change.Table),
				zap.String("record_id", change.RecordID),
				zap.Error(err))
		}
	}()
	return nil
}

func (s *SearchService) release(docID string, done chan struct{}) {
	s.mu.Lock()
	if s.tails[docID] == done {
		delete(s.tails, docID)
	}
	s.mu.Unlock()
	close(done)
}

// Wait blocks until background indexing has finished.
func (s *SearchService) Wait() {
	s.pending.Wait()
}

func (s *SearchService) apply(ctx context.Context, change events.Change) error {
	id := search.DocumentID(change.Table, change.RecordID)
	if change.Type == events.Delete {
		return s.index.Remove(ctx, []string{id})
	}

	var doc models.SearchDocument
	var err error
	switch change.Table {
	case constants.TableContacts:
		var c *models.Contact
		if c, err = s.contacts.Get(ctx, change.UserID, change.RecordID); err == nil {
			doc = ContactDocument(c)
		}
	case constants.TableCompanies:
		var c *models.Company
		if c, err = s.companies.Get(ctx, change.UserID, change.RecordID); err == nil {
			doc = CompanyDocument(c)
		}
	case constants.TableDeals:
		var d *models.Deal
		if d, err = s.deals.Get(ctx, change.UserID, change.RecordID); err == nil {
			doc = DealDocument(d)
		}
	}
	if errors.Is(err, persistence.ErrNotFound) {
		// deleted since the change was published
		return s.index.Remove(ctx, []string{id})
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", change.Table, err)
	}
	return s.index.Upsert(ctx, []models.SearchDocument{doc})
}

// Reindex rebuilds the index from the database and returns the number of
// documents written.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, apperrors.NewUnavailableError("search index")
	}
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	total := 0
	for _, u := range users {
		docs, err := s.userDocuments(ctx, u.ID)
		if err != nil {
			return total, err
		}
		if len(docs) == 0 {
			continue
		}
		if err := s.index.Upsert(ctx, docs); err != nil {
			return total, fmt.Errorf("index documents of %s: %w", u.ID, err)
		}
		total += len(docs)
	}
	zap.L().Info("search reindex finished", zap.Int("users", len(users)), zap.Int("documents", total))
	return total, nil
}

func (s *SearchService) userDocuments(ctx context.Context, userID string) ([]models.SearchDocument, error) {
	contacts, err := s.contacts.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	companies, err := s.companies.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	deals, err := s.deals.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}

	docs := make([]models.SearchDocument, 0, len(contacts)+len(companies)+len(deals))
	for _, c := range contacts {
		docs = append(docs, ContactDocument(c))
	}
	for _, c := range companies {
		docs = append(docs, CompanyDocument(c))
	}
	for _, d := range deals {
		docs = append(docs, DealDocument(d))
	}
	return docs, nil
}

func indexedTable(table string) bool {
	return table == constants.TableContacts || table == constants.TableCompanies || table == constants.TableDeals
}

// ContactDocument is the indexed form of a contact.
func ContactDocument(c *models.Contact) models.SearchDocument {
	subtitle := utils.Deref(c.Email)
	if c.Company != nil {
		subtitle = joinNonEmpty(" · ", subtitle, c.Company.Name)
	}
	return models.SearchDocument{
		ID:       search.DocumentID(constants.TableContacts, c.ID),
		RecordID: c.ID,
		UserID:   c.UserID,
		Table:    constants.TableContacts,
		Title:    c.FullName(),
		Subtitle: subtitle,
		Body:     joinNonEmpty(" ", utils.Deref(c.JobTitle), utils.Deref(c.Phone), utils.Deref(c.Notes)),
	}
}

// CompanyDocument is the indexed form of a company.
func CompanyDocument(c *models.Company) models.SearchDocument {
	return models.SearchDocument{
		ID:       search.DocumentID(constants.TableCompanies, c.ID),
		RecordID: c.ID,
		UserID:   c.UserID,
		Table:    constants.TableCompanies,
		Title:    c.Name,
		Subtitle: utils.Deref(c.Industry),
		Body:     joinNonEmpty(" ", utils.Deref(c.Website), utils.Deref(c.Address), utils.Deref(c.Notes)),
	}
}

// DealDocument is the indexed form of a deal.
func DealDocument(d *models.Deal) models.SearchDocument {
	return models.SearchDocument{
		ID:       search.DocumentID(constants.TableDeals, d.ID),
		RecordID: d.ID,
		UserID:   d.UserID,
		Table:    constants.TableDeals,
		Title:    d.Title,
		Subtitle: d.Stage.Label() + " · " + money.Format(d.Value, d.Currency),
		Body:     utils.Deref(d.Description),
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
