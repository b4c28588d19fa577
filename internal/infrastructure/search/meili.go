// Package search keeps contacts, companies and deals in a Meilisearch index.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/models"
)

// DefaultIndex is used when no index name is configured.
const DefaultIndex = "crm_records"

// ErrUnhealthy is returned by Search while Meilisearch is unreachable.
var ErrUnhealthy = errors.New("meilisearch unhealthy")

// Meili implements ports.SearchIndex.
type Meili struct {
	client  meili.ServiceManager
	index   string
	healthy atomic.Bool
	done    chan struct{}
	every   time.Duration
}

// NewMeili connects to url and configures the index. An unreachable server is
// not fatal: Healthy reports false until the health loop sees it recover.
func NewMeili(url, apiKey, index string) *Meili {
	if index == "" {
		index = DefaultIndex
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  index,
		done:   make(chan struct{}),
		every:  10 * time.Second,
	}

	if _, err := m.client.Health(); err != nil {
		zap.L().Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: m.index, PrimaryKey: "id"}); err != nil {
		zap.L().Debug("create search index (may already exist)", zap.String("index", m.index), zap.Error(err))
	}

	idx := m.client.Index(m.index)
	filterable := []interface{}{"user_id", "table"}
	if _, err := idx.UpdateFilterableAttributes(&filterable); err != nil {
		zap.L().Warn("update filterable attributes", zap.String("index", m.index), zap.Error(err))
	}
	searchable := []string{"title", "subtitle", "body"}
	if _, err := idx.UpdateSearchableAttributes(&searchable); err != nil {
		zap.L().Warn("update searchable attributes", zap.String("index", m.index), zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(m.every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			was := m.healthy.Swap(err == nil)
			if err == nil && !was {
				zap.L().Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the health loop.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch answered the last health check.
func (m *Meili) Healthy(ctx context.Context) bool {
	return m.healthy.Load()
}

// Upsert adds or replaces documents.
func (m *Meili) Upsert(ctx context.Context, docs []models.SearchDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := m.client.Index(m.index).AddDocuments(docs, nil); err != nil {
		return fmt.Errorf("index %d documents: %w", len(docs), err)
	}
	return nil
}

// Remove deletes documents by index id.
func (m *Meili) Remove(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := m.client.Index(m.index).DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("remove document %s: %w", id, err)
		}
	}
	return nil
}

// Search returns the caller's records matching term.
func (m *Meili) Search(ctx context.Context, userID, term string, limit int) ([]models.SearchHit, error) {
	if !m.healthy.Load() {
		return nil, ErrUnhealthy
	}
	if limit <= 0 {
		limit = 10
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID: m.index,
			Query:    term,
			Limit:    int64(limit),
			Filter:   fmt.Sprintf("user_id = %q", userID),
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	hits := make([]models.SearchHit, 0, limit)
	for _, r := range resp.Results {
		for _, hit := range r.Hits {
			hits = append(hits, hitToResult(hit))
		}
	}
	return hits, nil
}

func hitToResult(hit meili.Hit) models.SearchHit {
	return models.SearchHit{
		Table:    decodeString(hit, "table"),
		ID:       decodeString(hit, "record_id"),
		Title:    decodeString(hit, "title"),
		Subtitle: decodeString(hit, "subtitle"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// DocumentID is the index primary key for a record.
func DocumentID(table, recordID string) string {
	return table + "-" + recordID
}
