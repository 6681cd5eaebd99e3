package view

import (
	"context"
	"sync"

	"github.com/ButyrinIA/feed/internal/metrics"
	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/search"
)

// SearchView хранит последнюю загруженную страницу поиска. Переключение
// страницы во время загрузки делает предыдущую загрузку устаревшей.
type SearchView struct {
	ID     string
	Caller models.Drive

	agg *search.Aggregator

	mu   sync.Mutex
	gen  uint64
	page *models.SearchPage
}

func NewSearchView(id string, caller models.Drive, agg *search.Aggregator) *SearchView {
	return &SearchView{ID: id, Caller: caller, agg: agg}
}

func (v *SearchView) Load(ctx context.Context, query, driveType string, page int) (*models.SearchPage, error) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.mu.Unlock()

	result, err := v.agg.Search(ctx, query, driveType, page)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		metrics.StaleLoads.WithLabelValues("search").Inc()
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	v.page = result
	return result, nil
}

// Current возвращает последнюю принятую страницу или nil.
func (v *SearchView) Current() *models.SearchPage {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}
