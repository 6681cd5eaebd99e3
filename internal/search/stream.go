package search

import (
	"context"

	"github.com/ButyrinIA/feed/internal/models"
)

type fetchFunc func(ctx context.Context, offset, limit int) ([]models.SearchResult, error)

// stream читает источник пакетами, отбрасывает повторы и несовпадения
// и накапливает подходящие результаты в исходном порядке.
type stream struct {
	fetch     fetchFunc
	match     func(models.SearchResult) bool
	batch     int
	offset    int
	exhausted bool
	seen      map[string]bool
	matched   []models.SearchResult
}

func newStream(fetch fetchFunc, match func(models.SearchResult) bool, batch int) *stream {
	return &stream{fetch: fetch, match: match, batch: batch, seen: make(map[string]bool)}
}

// fill читает пакеты, пока не наберется n результатов или источник не иссякнет.
func (s *stream) fill(ctx context.Context, n int) error {
	for len(s.matched) < n && !s.exhausted {
		items, err := s.fetch(ctx, s.offset, s.batch)
		if err != nil {
			return err
		}
		s.offset += len(items)
		if len(items) < s.batch {
			s.exhausted = true
		}
		for _, item := range items {
			key := item.Key()
			if s.seen[key] {
				continue
			}
			s.seen[key] = true
			if s.match(item) {
				s.matched = append(s.matched, item)
			}
		}
	}
	return nil
}

// slice возвращает matched[from:from+n], обрезанный по границам.
func (s *stream) slice(from, n int) []models.SearchResult {
	if from >= len(s.matched) || n <= 0 {
		return nil
	}
	return s.matched[from:min(from+n, len(s.matched))]
}
