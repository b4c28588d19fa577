package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
)

// MockIndex is a testify mock of the full-text index.
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Upsert(ctx context.Context, docs []models.SearchDocument) error {
	return m.Called(ctx, docs).Error(0)
}

func (m *MockIndex) Remove(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *MockIndex) Search(ctx context.Context, userID, term string, limit int) ([]models.SearchHit, error) {
	args := m.Called(ctx, userID, term, limit)
	hits, _ := args.Get(0).([]models.SearchHit)
	return hits, args.Error(1)
}

func (m *MockIndex) Healthy(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func TestSearchService_SQLFallback(t *testing.T) {
	sm := newManager(t, services.Dependencies{})
	ctx := context.Background()
	owner := salesRep(t, sm)
	other := salesRep(t, sm)

	_, err := sm.Contacts.Create(ctx, owner, models.ContactInput{FirstName: strPtr("Grace"), LastName: strPtr("Hopper")})
	require.NoError(t, err)
	_, err = sm.Companies.Create(ctx, owner, models.CompanyInput{Name: strPtr("Hopper Labs")})
	require.NoError(t, err)
	_, err = sm.Contacts.Create(ctx, other, models.ContactInput{FirstName: strPtr("Hidden"), LastName: strPtr("Hopper")})
	require.NoError(t, err)

	hits, err := sm.Search.Search(ctx, owner, "hopper", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	tables := []string{hits[0].Table, hits[1].Table}
	assert.ElementsMatch(t, []string{constants.TableContacts, constants.TableCompanies}, tables)

	_, err = sm.Search.Search(ctx, owner, "   ", 10)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSearchService_UsesHealthyIndex(t *testing.T) {
	index := new(MockIndex)
	sm := newManager(t, services.Dependencies{Index: index})
	ctx := context.Background()
	user := salesRep(t, sm)

	want := []models.SearchHit{{Table: constants.TableDeals, ID: "d1", Title: "Renewal"}}
	index.On("Healthy", mock.Anything).Return(true).Once()
	index.On("Search", mock.Anything, user.ID, "renewal", services.MaxSearchLimit).Return(want, nil).Once()

	hits, err := sm.Search.Search(ctx, user, "renewal", 500)
	require.NoError(t, err)
	assert.Equal(t, want, hits)

	// A failing index falls back to SQL.
	index.On("Healthy", mock.Anything).Return(true).Once()
	index.On("Search", mock.Anything, user.ID, "renewal", services.DefaultSearchLimit).Return(nil, errors.New("boom")).Once()
	hits, err = sm.Search.Search(ctx, user, "renewal", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	index.AssertExpectations(t)
}

func TestSearchService_IndexFollowsChanges(t *testing.T) {
	index := new(MockIndex)
	sm := newManager(t, services.Dependencies{Index: index})
	ctx := context.Background()
	user := salesRep(t, sm)

	var indexed []models.SearchDocument
	index.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		indexed = append(indexed, args.Get(1).([]models.SearchDocument)...)
	}).Return(nil).Once()
	index.On("Remove", mock.Anything, mock.Anything).Return(nil).Once()

	c, err := sm.Contacts.Create(ctx, user, models.ContactInput{FirstName: strPtr("Ada"), LastName: strPtr("Lovelace"), Email: strPtr("ada@example.com")})
	require.NoError(t, err)
	sm.Search.Wait()

	require.Len(t, indexed, 1)
	assert.Equal(t, "contacts-"+c.ID, indexed[0].ID)
	assert.Equal(t, "Ada Lovelace", indexed[0].Title)
	assert.Equal(t, user.ID, indexed[0].UserID)

	require.NoError(t, sm.Contacts.Delete(ctx, user, c.ID))
	sm.Search.Wait()
	index.AssertCalled(t, "Remove", mock.Anything, []string{"contacts-" + c.ID})

	// Tasks are not indexed.
	_, err = sm.Tasks.Create(ctx, user, models.TaskInput{Title: strPtr("Call back")})
	require.NoError(t, err)
	sm.Search.Wait()
	index.AssertExpectations(t)
}

func TestSearchService_ChangesToOneRecordStayOrdered(t *testing.T) {
	index := new(MockIndex)
	sm := newManager(t, services.Dependencies{Index: index})
	ctx := context.Background()
	user := salesRep(t, sm)

	var mu sync.Mutex
	var calls []string
	index.On("Upsert", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		calls = append(calls, "upsert")
		mu.Unlock()
	}).Return(nil)
	index.On("Remove", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		mu.Lock()
		calls = append(calls, "remove")
		mu.Unlock()
	}).Return(nil)

	c, err := sm.Contacts.Create(ctx, user, models.ContactInput{FirstName: strPtr("Ada")})
	require.NoError(t, err)
	require.NoError(t, sm.Contacts.Delete(ctx, user, c.ID))
	sm.Search.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, calls)
	assert.Equal(t, "remove", calls[len(calls)-1], "a slow upsert never lands after the delete: %v", calls)
}

func TestSearchService_Reindex(t *testing.T) {
	sm := newManager(t, services.Dependencies{})
	ctx := context.Background()

	_, err := sm.Search.Reindex(ctx)
	assert.True(t, apperrors.IsUnavailable(err))

	index := new(MockIndex)
	index.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	sm = newManager(t, services.Dependencies{Index: index})
	a := salesRep(t, sm)
	b := salesRep(t, sm)
	_, err = sm.Contacts.Create(ctx, a, models.ContactInput{FirstName: strPtr("A"), LastName: strPtr("One")})
	require.NoError(t, err)
	_, err = sm.Deals.Create(ctx, b, models.DealInput{Title: strPtr("Big deal"), Value: f64Ptr(10)})
	require.NoError(t, err)
	sm.Search.Wait()

	n, err := sm.Search.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDealDocument(t *testing.T) {
	doc := services.DealDocument(&models.Deal{ID: "d1", UserID: "u1", Title: "Renewal", Value: 1250, Currency: "EUR", Stage: "proposal"})
	assert.Equal(t, "deals-d1", doc.ID)
	assert.Equal(t, "Proposal · €1,250.00", doc.Subtitle)
	assert.Equal(t, models.SearchHit{Table: constants.TableDeals, ID: "d1", Title: "Renewal", Subtitle: doc.Subtitle}, doc.Hit())
}
