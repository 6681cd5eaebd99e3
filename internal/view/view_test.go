package view

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ButyrinIA/feed/internal/interaction"
	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/search"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/ButyrinIA/feed/internal/storage/memory"
	"github.com/ButyrinIA/feed/internal/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	alice = models.Drive{ID: "hyper://alice", Title: "Alice"}
	me    = models.Drive{ID: "hyper://me", Title: "Me"}
)

// gatedStore задерживает первый вызов ListComments или ListPosts,
// пока не закрыт gate; started сигнализирует, что вызов начался.
type gatedStore struct {
	*memory.MemoryStorage
	mu      sync.Mutex
	gate    chan struct{}
	started chan struct{}
}

func newGatedStore(mem *memory.MemoryStorage) *gatedStore {
	return &gatedStore{MemoryStorage: mem, gate: make(chan struct{}), started: make(chan struct{}, 1)}
}

func (s *gatedStore) wait() {
	s.mu.Lock()
	gate := s.gate
	s.gate = nil
	s.mu.Unlock()
	if gate != nil {
		s.started <- struct{}{}
		<-gate
	}
}

// arm снова задерживает следующий вызов и возвращает новый gate.
func (s *gatedStore) arm() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	return s.gate
}

func (s *gatedStore) ListComments(ctx context.Context, target string) ([]*models.Comment, error) {
	s.wait()
	return s.MemoryStorage.ListComments(ctx, target)
}

func (s *gatedStore) ListPosts(ctx context.Context, filter storage.PostFilter, opts storage.ListOptions) ([]*models.Post, error) {
	s.wait()
	return s.MemoryStorage.ListPosts(ctx, filter, opts)
}

func newRegistry(store storage.Store) *Registry {
	logger := zap.NewNop()
	return NewRegistry(store,
		thread.NewBuilder(store, 4, logger),
		search.NewAggregator(store, search.Options{Concurrency: 4}, logger),
		NewHub(), logger)
}

func addComment(t *testing.T, store storage.Store, parent *string, content string) *models.Comment {
	c, err := store.AddComment(context.Background(), storage.NewComment{Href: "post1", Parent: parent, Author: alice, Content: content})
	require.NoError(t, err)
	return c
}

func TestThreadView_Reload(t *testing.T) {
	store := memory.New()
	c1 := addComment(t, store, nil, "первый")
	addComment(t, store, &c1.ID, "ответ")
	c3 := addComment(t, store, nil, "второй")
	require.NoError(t, store.PutVote(context.Background(), c3.ID, "bob", models.Upvote))

	v := newRegistry(store).OpenThread("post1", me)
	assert.False(t, v.Snapshot().Loaded)

	require.NoError(t, v.Reload(context.Background()))
	snap := v.Snapshot()
	assert.True(t, snap.Loaded)
	assert.Equal(t, uint64(1), snap.Generation)
	require.Len(t, snap.Comments, 2)
	assert.Equal(t, c3.ID, snap.Comments[0].ID)
	assert.Len(t, snap.Comments[1].Replies, 1)
}

func TestThreadView_LastLoadWins(t *testing.T) {
	mem := memory.New()
	store := newGatedStore(mem)
	gate := store.gate
	v := newRegistry(store).OpenThread("post1", me)

	stale := make(chan error, 1)
	go func() { stale <- v.Reload(context.Background()) }()
	<-store.started

	// первая загрузка висит на gate, вторая проходит сразу
	require.NoError(t, v.Reload(context.Background()))
	addComment(t, mem, nil, "новый")
	close(gate)

	assert.ErrorIs(t, <-stale, ErrSuperseded)
	snap := v.Snapshot()
	assert.Equal(t, uint64(2), snap.Generation)
	assert.Empty(t, snap.Comments, "Результат устаревшей загрузки должен быть отброшен")
}

func TestThreadView_Events(t *testing.T) {
	store := memory.New()
	c1 := addComment(t, store, nil, "первый")
	addComment(t, store, &c1.ID, "ответ")

	reg := newRegistry(store)
	v := reg.OpenThread("post1", me)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := reg.Hub().Subscribe(ctx, v.ID)

	require.NoError(t, v.Reload(context.Background()))

	var got []EventType
	timeout := time.After(time.Second)
	for len(got) < 3 {
		select {
		case ev := <-events:
			assert.Equal(t, v.ID, ev.View)
			got = append(got, ev.Type)
		case <-timeout:
			t.Fatal("Таймаут ожидания событий")
		}
	}
	assert.ElementsMatch(t, []EventType{EventAnnotated, EventAnnotated, EventReloaded}, got)
	assert.Equal(t, EventReloaded, got[2], "reloaded приходит после всех аннотаций")
}

func TestThreadView_Interactions(t *testing.T) {
	store := memory.New()
	c1 := addComment(t, store, nil, "первый")
	c2 := addComment(t, store, nil, "второй")

	v := newRegistry(store).OpenThread("post1", me)
	ctx := context.Background()
	require.NoError(t, v.Reload(ctx))

	_, err := v.ToggleReply("missing")
	assert.ErrorIs(t, err, interaction.ErrUnknownNode)

	tr, err := v.ToggleReply(c1.ID)
	require.NoError(t, err)
	assert.True(t, tr.Focus)
	_, err = v.ToggleEdit(c2.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]interaction.Mode{c1.ID: interaction.Replying, c2.ID: interaction.Editing}, v.Snapshot().Composers)

	require.NoError(t, v.Submit(ctx, c1.ID, interaction.Submission{Kind: interaction.Reply, Content: "мой ответ"}))
	snap := v.Snapshot()
	assert.Equal(t, map[string]interaction.Mode{c2.ID: interaction.Editing}, snap.Composers)
	assert.Equal(t, uint64(2), snap.Generation)
	require.Len(t, snap.Comments[0].Replies, 1)
	assert.Equal(t, "мой ответ", snap.Comments[0].Replies[0].Content)

	next, err := v.Vote(ctx, c2.ID, models.Upvote)
	require.NoError(t, err)
	assert.Equal(t, models.Upvote, next)
	snap = v.Snapshot()
	assert.Equal(t, c2.ID, snap.Comments[0].ID, "После голоса c2 поднимается выше")

	votes, err := store.TabulateVotes(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{me.ID}, votes.Upvotes)

	require.NoError(t, v.Remove(ctx, c2.ID))
	assert.Len(t, v.Snapshot().Comments, 1)
	assert.ErrorIs(t, v.Remove(ctx, c2.ID), interaction.ErrUnknownNode)
}

func TestThreadView_WriteDuringNewerLoad(t *testing.T) {
	mem := memory.New()
	c1 := addComment(t, mem, nil, "первый")
	store := newGatedStore(mem)
	close(store.gate)
	v := newRegistry(store).OpenThread("post1", me)
	ctx := context.Background()
	require.NoError(t, v.Reload(ctx))
	<-store.started

	// перезагрузка после записи висит на gate, пока проходит более новая
	writeDuringReload := func(write func() error) error {
		gate := store.arm()
		done := make(chan error, 1)
		go func() { done <- write() }()
		<-store.started
		require.NoError(t, v.Reload(ctx))
		close(gate)
		return <-done
	}

	err := writeDuringReload(func() error {
		return v.Submit(ctx, "", interaction.Submission{Kind: interaction.Reply, Content: "новый"})
	})
	assert.NoError(t, err, "Сохраненный ответ не должен считаться ошибкой")
	stored, err := mem.ListComments(ctx, "post1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Len(t, v.Snapshot().Comments, 2)

	err = writeDuringReload(func() error { return v.Remove(ctx, c1.ID) })
	assert.NoError(t, err, "Удаление не должно считаться ошибкой")
	snap := v.Snapshot()
	require.Len(t, snap.Comments, 1)
	assert.Equal(t, "новый", snap.Comments[0].Content)
}

func TestSearchView_LastLoadWins(t *testing.T) {
	mem := memory.New()
	require.NoError(t, mem.CreatePost(context.Background(), &models.Post{ID: "p1", Topic: "go"}))
	store := newGatedStore(mem)
	gate := store.gate
	v := newRegistry(store).OpenSearch(me)

	stale := make(chan error, 1)
	go func() {
		_, err := v.Load(context.Background(), "go", "", 0)
		stale <- err
	}()
	<-store.started

	page, err := v.Load(context.Background(), "go", "", 1)
	require.NoError(t, err)
	close(gate)

	assert.ErrorIs(t, <-stale, ErrSuperseded)
	assert.Equal(t, page, v.Current())
	assert.Equal(t, 1, v.Current().Page)
}

func TestHub(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := hub.Subscribe(ctx, "view1")
	hub.Publish(Event{Type: EventReloaded, View: "other"})
	hub.Publish(Event{Type: EventReloaded, View: "view1", Generation: 3})

	select {
	case ev := <-ch:
		assert.Equal(t, uint64(3), ev.Generation)
	case <-time.After(time.Second):
		t.Fatal("Таймаут ожидания подписки")
	}

	cancel()
	select {
	case _, open := <-ch:
		assert.False(t, open, "Канал должен быть закрыт")
	case <-time.After(time.Second):
		t.Fatal("Канал не закрыт после отмены подписки")
	}
}

func TestRegistry_Close(t *testing.T) {
	reg := newRegistry(memory.New())
	tv := reg.OpenThread("post1", me)
	sv := reg.OpenSearch(me)

	_, ok := reg.Thread(tv.ID)
	assert.True(t, ok)
	assert.True(t, reg.Close(tv.ID))
	_, ok = reg.Thread(tv.ID)
	assert.False(t, ok)

	assert.True(t, reg.Close(sv.ID))
	assert.False(t, reg.Close(sv.ID))
}
