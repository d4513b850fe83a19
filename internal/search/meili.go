package search

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const (
	maxHits             = 1000
	healthCheckInterval = 10 * time.Second
)

// Meili implements Searcher on a Meilisearch index of time slots.
type Meili struct {
	client  meili.ServiceManager
	index   string
	healthy atomic.Bool
	done    chan struct{}
	logger  logrus.FieldLogger

	mu        sync.Mutex
	onRecover func()
}

// NewMeili connects to Meilisearch and configures the index. An unreachable
// server is not an error: the client stays unhealthy until a health check
// succeeds.
func NewMeili(url, apiKey, index string, logger logrus.FieldLogger) *Meili {
	return newMeili(url, apiKey, index, healthCheckInterval, logger)
}

func newMeili(url, apiKey, index string, interval time.Duration, logger logrus.FieldLogger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  index,
		done:   make(chan struct{}),
		logger: logger.WithField("component", "search"),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.WithError(err).Warnf("meilisearch unavailable at %s", url)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop(interval)
	return m
}

// OnRecover registers fn to run after the index has been reconfigured on a
// server that came back. The index may be empty at that point.
func (m *Meili) OnRecover(fn func()) {
	m.mu.Lock()
	m.onRecover = fn
	m.mu.Unlock()
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: m.index, PrimaryKey: "id"}); err != nil {
		m.logger.WithError(err).Debugf("create index %s (may already exist)", m.index)
	}

	index := m.client.Index(m.index)
	filterable := []interface{}{"date", "weekday"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.WithError(err).Warn("update filterable attributes")
	}
	searchable := []string{"label", "date", "weekday"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.WithError(err).Warn("update searchable attributes")
	}
	sortable := []string{"start"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		m.logger.WithError(err).Warn("update sortable attributes")
	}
}

func (m *Meili) healthLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()

				m.mu.Lock()
				fn := m.onRecover
				m.mu.Unlock()
				if fn != nil {
					fn()
				}
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search returns the ids of matching time slots in relevance order.
func (m *Meili) Search(query string) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := m.client.Index(m.index).Search(query, &meili.SearchRequest{
		Limit:                maxHits,
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id := decodeString(hit, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Index adds or replaces the given records.
func (m *Meili) Index(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(m.index).AddDocuments(records, nil)
	return err
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
