// Package search собирает страницу результатов поиска из двух независимых
// источников: профилей (подписок) и постов.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ButyrinIA/feed/internal/drives"
	"github.com/ButyrinIA/feed/internal/metrics"
	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/ButyrinIA/feed/internal/votes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize  = 25
	DefaultBatchSize = 100
)

// ErrInvalidRange возвращается для страницы или окна, выходящих за
// допустимые границы.
var ErrInvalidRange = errors.New("invalid search range")

type Store interface {
	ListPosts(ctx context.Context, filter storage.PostFilter, opts storage.ListOptions) ([]*models.Post, error)
	ListFollows(ctx context.Context, filter storage.FollowFilter, opts storage.ListOptions) ([]models.FollowRecord, error)
	CountComments(ctx context.Context, href string) (int, error)
	votes.Source
	drives.Source
}

type Options struct {
	PageSize    int
	BatchSize   int
	Concurrency int
}

type Aggregator struct {
	store     Store
	tabulator *votes.Tabulator
	opts      Options
	logger    *zap.Logger
}

func NewAggregator(store Store, opts Options, logger *zap.Logger) *Aggregator {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Aggregator{
		store:     store,
		tabulator: votes.NewTabulator(store, logger),
		opts:      opts,
		logger:    logger,
	}
}

func (a *Aggregator) PageSize() int {
	return a.opts.PageSize
}

// Search возвращает страницу page (с нуля). Профили всегда идут раньше постов.
func (a *Aggregator) Search(ctx context.Context, query, driveType string, page int) (*models.SearchPage, error) {
	// окно страницы вместе с одним результатом упреждения должно помещаться в int
	if page < 0 || page > (math.MaxInt-1)/a.opts.PageSize-1 {
		return nil, fmt.Errorf("%w: page %d", ErrInvalidRange, page)
	}
	results, atEnd, err := a.Range(ctx, query, driveType, page*a.opts.PageSize, a.opts.PageSize)
	if err != nil {
		return nil, err
	}
	return &models.SearchPage{Query: query, Page: page, Results: results, AtEnd: atEnd}, nil
}

// Range возвращает окно [offset, offset+limit) общей последовательности
// "все подходящие профили, затем все подходящие посты" и признак конца.
// Посты запрашиваются только после того, как поток профилей иссяк, поэтому
// границу между потоками всегда известно точно.
func (a *Aggregator) Range(ctx context.Context, query, driveType string, offset, limit int) ([]models.SearchResult, bool, error) {
	if offset < 0 || limit < 0 || offset > math.MaxInt-limit-1 {
		return nil, false, fmt.Errorf("%w: offset %d limit %d", ErrInvalidRange, offset, limit)
	}
	query = strings.ToLower(strings.TrimSpace(query))
	loader := drives.NewLoader(a.store)
	profiles := newStream(a.fetchProfiles(loader), matchProfile(query, driveType), a.opts.BatchSize)
	posts := newStream(a.fetchPosts, matchPost(query), a.opts.BatchSize)

	end := offset + limit
	// один лишний результат нужен, чтобы определить конец выдачи
	if err := profiles.fill(ctx, end+1); err != nil {
		return nil, false, fmt.Errorf("failed to list profiles: %w", err)
	}
	results := append([]models.SearchResult{}, profiles.slice(offset, limit)...)
	if len(profiles.matched) > end {
		a.annotate(ctx, results)
		return results, false, nil
	}

	postStart := max(0, offset-len(profiles.matched))
	need := limit - len(results)
	if err := posts.fill(ctx, postStart+need+1); err != nil {
		return nil, false, fmt.Errorf("failed to list posts: %w", err)
	}
	results = append(results, posts.slice(postStart, need)...)
	atEnd := len(posts.matched) <= postStart+need

	a.annotate(ctx, results)
	return results, atEnd, nil
}

func (a *Aggregator) fetchPosts(ctx context.Context, offset, limit int) ([]models.SearchResult, error) {
	posts, err := a.store.ListPosts(ctx, storage.PostFilter{}, storage.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchResult, len(posts))
	for i, p := range posts {
		out[i] = models.SearchResult{Kind: models.ResultPost, Post: p}
	}
	return out, nil
}

// fetchProfiles превращает записи подписок в профили отслеживаемых drive,
// дополняя описание и тип из хранилища drive.
func (a *Aggregator) fetchProfiles(loader *drives.Loader) fetchFunc {
	return func(ctx context.Context, offset, limit int) ([]models.SearchResult, error) {
		follows, err := a.store.ListFollows(ctx, storage.FollowFilter{}, storage.ListOptions{Offset: offset, Limit: limit})
		if err != nil {
			return nil, err
		}
		if len(follows) == 0 {
			return nil, nil
		}
		ids := make([]string, len(follows))
		for i, f := range follows {
			ids[i] = f.Target.ID
		}
		// отсутствующие drive дают нулевое значение, профиль остается без описания
		infos, _ := loader.LoadMany(ctx, ids)()

		out := make([]models.SearchResult, len(follows))
		for i, f := range follows {
			profile := &models.Profile{Drive: f.Target}
			if i < len(infos) && infos[i].ID != "" {
				profile.Description = infos[i].Description
				if profile.Drive.Title == "" {
					profile.Drive.Title = infos[i].Title
				}
				if profile.Drive.Type == "" {
					profile.Drive.Type = infos[i].Type
				}
			}
			out[i] = models.SearchResult{Kind: models.ResultUser, Profile: profile}
		}
		return out, nil
	}
}

func matchProfile(query, driveType string) func(models.SearchResult) bool {
	return func(r models.SearchResult) bool {
		if driveType != "" && r.Profile.Drive.Type != driveType {
			return false
		}
		return contains(query, r.Profile.Drive.Title, r.Profile.Description)
	}
}

func matchPost(query string) func(models.SearchResult) bool {
	return func(r models.SearchResult) bool {
		return contains(query, r.Post.Topic, r.Post.Content, r.Post.Author.Title)
	}
}

func contains(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// annotate загружает голоса и число комментариев постов и подписчиков
// профилей. Ошибки изолированы по элементам.
func (a *Aggregator) annotate(ctx context.Context, results []models.SearchResult) {
	eg := errgroup.Group{}
	eg.SetLimit(a.opts.Concurrency)
	for _, r := range results {
		switch r.Kind {
		case models.ResultPost:
			post := r.Post
			eg.Go(func() error {
				post.Votes = a.tabulator.TabulateOrZero(ctx, post.ID)
				return nil
			})
			eg.Go(func() error {
				count, err := a.store.CountComments(ctx, post.ID)
				if err != nil {
					metrics.AnnotationFailures.WithLabelValues("comment_count").Inc()
					a.logger.Warn("comment count annotation failed", zap.String("post", post.ID), zap.Error(err))
					count = 0
				}
				post.CommentCount = &count
				return nil
			})
		case models.ResultUser:
			profile := r.Profile
			eg.Go(func() error {
				follows, err := a.store.ListFollows(ctx, storage.FollowFilter{Target: profile.Drive.ID}, storage.ListOptions{})
				if err != nil {
					metrics.AnnotationFailures.WithLabelValues("followers").Inc()
					a.logger.Warn("follower annotation failed", zap.String("drive", profile.Drive.ID), zap.Error(err))
				}
				profile.Followers = make([]models.Drive, 0, len(follows))
				for _, f := range follows {
					profile.Followers = append(profile.Followers, f.Author)
				}
				return nil
			})
		}
	}
	eg.Wait()
}
