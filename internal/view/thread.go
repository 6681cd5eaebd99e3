package view

import (
	"context"
	"errors"
	"sync"

	"github.com/ButyrinIA/feed/internal/interaction"
	"github.com/ButyrinIA/feed/internal/metrics"
	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/thread"
	"go.uber.org/zap"
)

// ErrSuperseded возвращается загрузкой, результат которой отброшен,
// потому что после нее началась более новая.
var ErrSuperseded = errors.New("load superseded by a newer one")

// ThreadView владеет деревом одного треда и состоянием композеров его
// узлов. Каждая загрузка получает номер поколения; результаты устаревших
// поколений отбрасываются.
type ThreadView struct {
	ID     string
	Target string
	Caller models.Drive

	builder *thread.Builder
	hub     *Hub
	logger  *zap.Logger
	ctrl    *interaction.Controller

	mu     sync.Mutex
	gen    uint64
	roots  []*models.Comment
	state  *interaction.State
	loaded bool
}

func NewThreadView(id, target string, caller models.Drive, builder *thread.Builder, store interaction.Store, hub *Hub, logger *zap.Logger) *ThreadView {
	v := &ThreadView{
		ID:      id,
		Target:  target,
		Caller:  caller,
		builder: builder,
		hub:     hub,
		logger:  logger.With(zap.String("view", id), zap.String("target", target)),
		state:   interaction.NewState(),
	}
	v.ctrl = interaction.NewController(store, v.state, target, caller, v.reloadAfterWrite, v.logger)
	return v
}

type ThreadSnapshot struct {
	ID         string                      `json:"id"`
	Target     string                      `json:"target"`
	Generation uint64                      `json:"generation"`
	Loaded     bool                        `json:"loaded"`
	Comments   []*models.Comment           `json:"comments"`
	Composers  map[string]interaction.Mode `json:"composers"`
}

func (v *ThreadView) Snapshot() ThreadSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return ThreadSnapshot{
		ID:         v.ID,
		Target:     v.Target,
		Generation: v.gen,
		Loaded:     v.loaded,
		Comments:   thread.Clone(v.roots),
		Composers:  v.state.Open(),
	}
}

func (v *ThreadView) current(gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen == gen
}

// Reload полностью пересобирает тред. Пока идет аннотация, подписчики
// получают событие на каждый готовый узел.
func (v *ThreadView) Reload(ctx context.Context) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.mu.Unlock()

	roots, err := v.builder.Build(ctx, v.Target, thread.BuildOptions{
		OnAnnotated: func(c *models.Comment) {
			if v.current(gen) {
				v.hub.Publish(Event{Type: EventAnnotated, View: v.ID, Generation: gen, Node: c.ID, Votes: c.Votes.Clone()})
			}
		},
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		metrics.StaleLoads.WithLabelValues("thread").Inc()
		v.logger.Debug("discarding stale thread load", zap.Uint64("generation", gen), zap.Uint64("current", v.gen))
		return ErrSuperseded
	}
	if err != nil {
		return err
	}
	v.roots = roots
	v.loaded = true
	v.hub.Publish(Event{Type: EventReloaded, View: v.ID, Generation: gen})
	return nil
}

// reloadAfterWrite перезагружает тред после успешной записи. Если загрузку
// вытеснила более новая, та уже видит запись, и это не ошибка.
func (v *ThreadView) reloadAfterWrite(ctx context.Context) error {
	if err := v.Reload(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}
	return nil
}

func (v *ThreadView) ToggleReply(id string) (interaction.Transition, error) {
	return v.toggle(id, v.state.ToggleReply)
}

func (v *ThreadView) ToggleEdit(id string) (interaction.Transition, error) {
	return v.toggle(id, v.state.ToggleEdit)
}

func (v *ThreadView) toggle(id string, fn func(string) interaction.Transition) (interaction.Transition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if thread.Find(v.roots, id) == nil {
		return interaction.Transition{}, interaction.ErrUnknownNode
	}
	return fn(id), nil
}

func (v *ThreadView) Submit(ctx context.Context, id string, sub interaction.Submission) error {
	return v.ctrl.Submit(ctx, id, sub)
}

func (v *ThreadView) Remove(ctx context.Context, id string) error {
	v.mu.Lock()
	node := thread.Find(v.roots, id)
	v.mu.Unlock()
	if node == nil {
		return interaction.ErrUnknownNode
	}
	return v.ctrl.Remove(ctx, node)
}

// Vote выполняет оптимистичное переключение голоса под блокировкой
// представления, чтобы не пересечься с заменой дерева при перезагрузке.
func (v *ThreadView) Vote(ctx context.Context, id string, direction models.Direction) (models.Direction, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	next, err := v.ctrl.ToggleVote(ctx, v.roots, id, direction)
	if node := thread.Find(v.roots, id); node != nil {
		v.hub.Publish(Event{Type: EventVoted, View: v.ID, Generation: v.gen, Node: id, Votes: node.Votes.Clone()})
	}
	return next, err
}
