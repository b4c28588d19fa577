package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/domain/models"
)

type fakeMeili struct {
	mu       sync.Mutex
	searches []map[string]interface{}
	added    [][]models.SearchDocument
}

func (f *fakeMeili) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	switch {
	case r.URL.Path == "/health":
		_, _ = w.Write([]byte(`{"status":"available"}`))
	case r.URL.Path == "/multi-search":
		var req struct {
			Queries []map[string]interface{} `json:"queries"`
		}
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.searches = append(f.searches, req.Queries...)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"results":[{"indexUid":"crm_records","hits":[
			{"id":"contacts-c1","record_id":"c1","user_id":"u1","table":"contacts","title":"Ada Lovelace","subtitle":"ada@example.com"}
		],"query":"ada","processingTimeMs":1,"limit":10,"offset":0,"estimatedTotalHits":1}]}`))
	case r.Method == http.MethodPost && r.URL.Path == "/indexes/crm_records/documents":
		var docs []models.SearchDocument
		_ = json.Unmarshal(body, &docs)
		f.mu.Lock()
		f.added = append(f.added, docs)
		f.mu.Unlock()
		fallthrough
	default:
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"taskUid":1,"indexUid":"crm_records","status":"enqueued","type":"documentAdditionOrUpdate","enqueuedAt":"2026-01-01T00:00:00Z"}`))
	}
}

func TestMeili_SearchScopesToUser(t *testing.T) {
	fake := &fakeMeili{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	m := NewMeili(srv.URL, "key", "")
	defer m.Close()
	require.True(t, m.Healthy(context.Background()))

	hits, err := m.Search(context.Background(), "u1", "ada", 5)
	require.NoError(t, err)
	assert.Equal(t, []models.SearchHit{{Table: "contacts", ID: "c1", Title: "Ada Lovelace", Subtitle: "ada@example.com"}}, hits)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.searches, 1)
	assert.Equal(t, "crm_records", fake.searches[0]["indexUid"])
	assert.Equal(t, "ada", fake.searches[0]["q"])
	assert.Equal(t, `user_id = "u1"`, fake.searches[0]["filter"])
	assert.EqualValues(t, 5, fake.searches[0]["limit"])
}

func TestMeili_Upsert(t *testing.T) {
	fake := &fakeMeili{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	m := NewMeili(srv.URL, "key", DefaultIndex)
	defer m.Close()

	doc := models.SearchDocument{ID: DocumentID("deals", "d1"), RecordID: "d1", UserID: "u1", Table: "deals", Title: "Renewal"}
	require.NoError(t, m.Upsert(context.Background(), []models.SearchDocument{doc}))
	require.NoError(t, m.Upsert(context.Background(), nil))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.added, 1)
	assert.Equal(t, []models.SearchDocument{doc}, fake.added[0])
}

func TestMeili_UnreachableIsUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewMeili(url, "", "")
	defer m.Close()

	assert.False(t, m.Healthy(context.Background()))
	_, err := m.Search(context.Background(), "u1", "x", 10)
	assert.ErrorIs(t, err, ErrUnhealthy)
}

func TestHitToResult(t *testing.T) {
	hit := meili.Hit{
		"table":     json.RawMessage(`"deals"`),
		"record_id": json.RawMessage(`"d9"`),
		"title":     json.RawMessage(`"Expansion"`),
		"subtitle":  json.RawMessage(`42`),
	}
	assert.Equal(t, models.SearchHit{Table: "deals", ID: "d9", Title: "Expansion"}, hitToResult(hit))
	assert.Equal(t, "companies-abc", DocumentID("companies", "abc"))
}
