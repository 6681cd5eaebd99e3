package view

import (
	"sync"

	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/search"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/ButyrinIA/feed/internal/thread"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry хранит открытые представления. Представление и его состояние
// живут до вызова Close.
type Registry struct {
	store   storage.Store
	builder *thread.Builder
	agg     *search.Aggregator
	hub     *Hub
	logger  *zap.Logger

	mu       sync.RWMutex
	threads  map[string]*ThreadView
	searches map[string]*SearchView
}

func NewRegistry(store storage.Store, builder *thread.Builder, agg *search.Aggregator, hub *Hub, logger *zap.Logger) *Registry {
	return &Registry{
		store:    store,
		builder:  builder,
		agg:      agg,
		hub:      hub,
		logger:   logger,
		threads:  make(map[string]*ThreadView),
		searches: make(map[string]*SearchView),
	}
}

func (r *Registry) Hub() *Hub {
	return r.hub
}

func (r *Registry) OpenThread(target string, caller models.Drive) *ThreadView {
	v := NewThreadView(uuid.New().String(), target, caller, r.builder, r.store, r.hub, r.logger)
	r.mu.Lock()
	r.threads[v.ID] = v
	r.mu.Unlock()
	return v
}

func (r *Registry) Thread(id string) (*ThreadView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.threads[id]
	return v, ok
}

func (r *Registry) OpenSearch(caller models.Drive) *SearchView {
	v := NewSearchView(uuid.New().String(), caller, r.agg)
	r.mu.Lock()
	r.searches[v.ID] = v
	r.mu.Unlock()
	return v
}

func (r *Registry) Search(id string) (*SearchView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.searches[id]
	return v, ok
}

// Close удаляет представление вместе с его состоянием.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, t := r.threads[id]
	_, s := r.searches[id]
	delete(r.threads, id)
	delete(r.searches, id)
	return t || s
}
