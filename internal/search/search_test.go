package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/ButyrinIA/feed/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seedPosts создает n постов, ListPosts вернет их в порядке p01, p02, ...
func seedPosts(t *testing.T, store *memory.MemoryStorage, n int, topic string) {
	author := models.Drive{ID: "hyper://author", Title: "Author"}
	for i := 1; i <= n; i++ {
		require.NoError(t, store.CreatePost(context.Background(), &models.Post{
			ID:        fmt.Sprintf("p%02d", i),
			Author:    author,
			Topic:     fmt.Sprintf("%s %02d", topic, i),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}))
	}
}

func seedProfiles(t *testing.T, store *memory.MemoryStorage, n int, title string) {
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		target := models.Drive{ID: fmt.Sprintf("hyper://u%02d", i), Title: fmt.Sprintf("%s %02d", title, i), Type: "user"}
		require.NoError(t, store.PutDrive(ctx, target, "профиль"))
		follower := models.Drive{ID: fmt.Sprintf("hyper://f%02d", i), Title: "Follower"}
		require.NoError(t, store.Follow(ctx, models.FollowRecord{Author: follower, Target: target}))
	}
}

func keys(results []models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Key()
	}
	return out
}

func TestSearch_PostsOnlySecondPage(t *testing.T) {
	store := memory.New()
	seedPosts(t, store, 30, "x")

	agg := NewAggregator(store, Options{Concurrency: 4}, zap.NewNop())
	page, err := agg.Search(context.Background(), "x", "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"post:p26", "post:p27", "post:p28", "post:p29", "post:p30"}, keys(page.Results))
	assert.True(t, page.AtEnd)

	page, err = agg.Search(context.Background(), "x", "", 0)
	require.NoError(t, err)
	assert.Len(t, page.Results, 25)
	assert.False(t, page.AtEnd)
}

func TestSearch_ProfilesFirst(t *testing.T) {
	store := memory.New()
	seedPosts(t, store, 4, "match")
	seedProfiles(t, store, 3, "match")

	agg := NewAggregator(store, Options{PageSize: 5, BatchSize: 2, Concurrency: 2}, zap.NewNop())
	page, err := agg.Search(context.Background(), "MATCH", "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"user:hyper://u01", "user:hyper://u02", "user:hyper://u03", "post:p01", "post:p02",
	}, keys(page.Results))
	assert.False(t, page.AtEnd)

	page, err = agg.Search(context.Background(), "match", "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"post:p03", "post:p04"}, keys(page.Results))
	assert.True(t, page.AtEnd)
}

func TestSearch_PagingConsistency(t *testing.T) {
	store := memory.New()
	seedPosts(t, store, 17, "go")
	seedProfiles(t, store, 8, "go")
	require.NoError(t, store.CreatePost(context.Background(), &models.Post{ID: "other", Topic: "rust", CreatedAt: base}))

	agg := NewAggregator(store, Options{PageSize: 4, BatchSize: 3, Concurrency: 3}, zap.NewNop())
	ctx := context.Background()

	var paged []string
	for p := 0; ; p++ {
		page, err := agg.Search(ctx, "go", "", p)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Results), agg.PageSize())
		paged = append(paged, keys(page.Results)...)
		if page.AtEnd {
			break
		}
		require.Less(t, p, 10, "Поиск должен дойти до конца")
	}

	all, atEnd, err := agg.Range(ctx, "go", "", 0, len(paged))
	require.NoError(t, err)
	assert.True(t, atEnd)
	assert.Equal(t, keys(all), paged)
	assert.Len(t, paged, 25)
	assert.NotContains(t, paged, "post:other")
}

func TestSearch_ExactPageBoundary(t *testing.T) {
	store := memory.New()
	seedProfiles(t, store, 5, "u")

	agg := NewAggregator(store, Options{PageSize: 5, BatchSize: 100}, zap.NewNop())
	page, err := agg.Search(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.Len(t, page.Results, 5)
	assert.True(t, page.AtEnd, "Пять профилей и ноль постов помещаются на одну страницу")
}

func TestSearch_DeduplicatesProfiles(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	target := models.Drive{ID: "hyper://popular", Title: "Popular", Type: "user"}
	for i := 0; i < 7; i++ {
		follower := models.Drive{ID: fmt.Sprintf("hyper://f%d", i)}
		require.NoError(t, store.Follow(ctx, models.FollowRecord{Author: follower, Target: target}))
	}

	agg := NewAggregator(store, Options{BatchSize: 2}, zap.NewNop())
	page, err := agg.Search(ctx, "pop", "", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"user:hyper://popular"}, keys(page.Results))
	assert.Len(t, page.Results[0].Profile.Followers, 7)
	assert.True(t, page.AtEnd)
}

func TestSearch_DriveTypeFilter(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedProfiles(t, store, 2, "news")
	feed := models.Drive{ID: "hyper://feed", Title: "news feed", Type: "feed"}
	require.NoError(t, store.PutDrive(ctx, feed, "лента"))
	require.NoError(t, store.Follow(ctx, models.FollowRecord{Author: models.Drive{ID: "hyper://f"}, Target: feed}))

	agg := NewAggregator(store, Options{}, zap.NewNop())
	page, err := agg.Search(ctx, "news", "feed", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:hyper://feed"}, keys(page.Results))
	assert.Equal(t, "лента", page.Results[0].Profile.Description)
}

func TestSearch_DescriptionMatch(t *testing.T) {
	store := memory.New()
	seedProfiles(t, store, 2, "someone")

	agg := NewAggregator(store, Options{}, zap.NewNop())
	page, err := agg.Search(context.Background(), "профиль", "", 0)
	require.NoError(t, err)
	assert.Len(t, page.Results, 2)
}

type flakyStore struct {
	*memory.MemoryStorage
	failCount string
	failVotes string
	failPosts bool
}

func (s *flakyStore) CountComments(ctx context.Context, href string) (int, error) {
	if href == s.failCount {
		return 0, errors.New("нет связи")
	}
	return s.MemoryStorage.CountComments(ctx, href)
}

func (s *flakyStore) TabulateVotes(ctx context.Context, target string) (*models.Votes, error) {
	if target == s.failVotes {
		return nil, errors.New("нет связи")
	}
	return s.MemoryStorage.TabulateVotes(ctx, target)
}

func (s *flakyStore) ListPosts(ctx context.Context, filter storage.PostFilter, opts storage.ListOptions) ([]*models.Post, error) {
	if s.failPosts {
		return nil, errors.New("нет связи")
	}
	return s.MemoryStorage.ListPosts(ctx, filter, opts)
}

func TestSearch_Annotation(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	seedPosts(t, mem, 2, "topic")
	require.NoError(t, mem.PutVote(ctx, "p01", "alice", models.Upvote))
	require.NoError(t, mem.PutVote(ctx, "p02", "alice", models.Upvote))
	_, err := mem.AddComment(ctx, storage.NewComment{Href: "p01", Author: models.Drive{ID: "hyper://alice"}, Content: "c"})
	require.NoError(t, err)
	_, err = mem.AddComment(ctx, storage.NewComment{Href: "p02", Author: models.Drive{ID: "hyper://alice"}, Content: "c"})
	require.NoError(t, err)

	store := &flakyStore{MemoryStorage: mem, failCount: "p02", failVotes: "p01"}
	agg := NewAggregator(store, Options{Concurrency: 4}, zap.NewNop())
	page, err := agg.Search(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, page.Results, 2)

	p1, p2 := page.Results[0].Post, page.Results[1].Post
	require.NotNil(t, p1.Votes)
	assert.Equal(t, 0, p1.Votes.Karma(), "Ошибка голосов дает нулевые голоса")
	require.NotNil(t, p1.CommentCount)
	assert.Equal(t, 1, *p1.CommentCount)

	assert.Equal(t, 1, p2.Votes.Karma())
	require.NotNil(t, p2.CommentCount)
	assert.Equal(t, 0, *p2.CommentCount, "Ошибка подсчета дает ноль")
}

func TestSearch_Errors(t *testing.T) {
	store := &flakyStore{MemoryStorage: memory.New(), failPosts: true}
	agg := NewAggregator(store, Options{}, zap.NewNop())

	_, err := agg.Search(context.Background(), "", "", 0)
	assert.EqualError(t, err, "failed to list posts: нет связи")

	_, err = agg.Search(context.Background(), "", "", -1)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestSearch_PageOutOfRange(t *testing.T) {
	store := memory.New()
	seedPosts(t, store, 3, "go")
	agg := NewAggregator(store, Options{}, zap.NewNop())
	ctx := context.Background()

	_, err := agg.Search(ctx, "go", "", math.MaxInt/DefaultPageSize)
	assert.ErrorIs(t, err, ErrInvalidRange, "Переполнение окна страницы должно отклоняться")

	last := (math.MaxInt-1)/DefaultPageSize - 1
	page, err := agg.Search(ctx, "go", "", last)
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.True(t, page.AtEnd, "Страница за концом выдачи должна быть последней")

	_, _, err = agg.Range(ctx, "go", "", math.MaxInt-5, 10)
	assert.ErrorIs(t, err, ErrInvalidRange)
}
