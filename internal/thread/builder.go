// Package thread собирает дерево комментариев из записей хранилища,
// аннотирует каждый узел голосами и сортирует соседей по карме.
package thread

import (
	"context"
	"fmt"
	"time"

	"github.com/ButyrinIA/feed/internal/drives"
	"github.com/ButyrinIA/feed/internal/metrics"
	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/ButyrinIA/feed/internal/votes"
	"github.com/graph-gophers/dataloader/v7"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type CommentSource interface {
	ListComments(ctx context.Context, target string) ([]*models.Comment, error)
}

type Store interface {
	CommentSource
	votes.Source
	drives.Source
}

type Builder struct {
	comments    CommentSource
	tabulator   *votes.Tabulator
	driveSource drives.Source
	concurrency int
	logger      *zap.Logger
}

func NewBuilder(store Store, concurrency int, logger *zap.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Builder{
		comments:    store,
		tabulator:   votes.NewTabulator(store, logger),
		driveSource: store,
		concurrency: concurrency,
		logger:      logger,
	}
}

// BuildOptions.OnAnnotated вызывается из рабочих горутин после аннотации
// каждого узла, порядок вызовов не определен.
type BuildOptions struct {
	OnAnnotated func(*models.Comment)
}

// Build возвращает комментарии верхнего уровня для target. После возврата
// у каждого узла на любой глубине Votes != nil, соседи отсортированы.
func (b *Builder) Build(ctx context.Context, target string, opts BuildOptions) ([]*models.Comment, error) {
	start := time.Now()
	defer func() { metrics.ThreadBuildSeconds.Observe(time.Since(start).Seconds()) }()

	records, err := b.comments.ListComments(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for %s: %w", target, err)
	}

	roots, dropped := Link(target, records)
	if dropped > 0 {
		metrics.ThreadOrphans.Add(float64(dropped))
		b.logger.Debug("dropped comments without parent in thread",
			zap.String("target", target), zap.Int("dropped", dropped))
	}

	nodes := Flatten(roots)
	b.resolveAuthors(ctx, nodes)
	b.annotate(ctx, nodes, opts.OnAnnotated)
	SortTree(roots)
	return roots, nil
}

// annotate загружает голоса всех узлов сразу ограниченным пулом,
// независимо от глубины. Ошибка одного узла не влияет на остальные.
func (b *Builder) annotate(ctx context.Context, nodes []*models.Comment, onAnnotated func(*models.Comment)) {
	eg := errgroup.Group{}
	eg.SetLimit(b.concurrency)
	for _, node := range nodes {
		node := node
		eg.Go(func() error {
			node.Votes = b.tabulator.TabulateOrZero(ctx, node.ID)
			if onAnnotated != nil {
				onAnnotated(node)
			}
			return nil
		})
	}
	eg.Wait()
}

// resolveAuthors дополняет заголовки авторов, которых нет в записях.
func (b *Builder) resolveAuthors(ctx context.Context, nodes []*models.Comment) {
	loader := drives.NewLoader(b.driveSource)
	type pending struct {
		node  *models.Comment
		thunk dataloader.Thunk[storage.DriveInfo]
	}
	var waits []pending
	for _, node := range nodes {
		if node.Author.Title != "" || node.Author.ID == "" {
			continue
		}
		waits = append(waits, pending{node: node, thunk: loader.Load(ctx, node.Author.ID)})
	}
	for _, w := range waits {
		d, err := w.thunk()
		if err != nil {
			b.logger.Debug("author lookup failed", zap.String("drive", w.node.Author.ID), zap.Error(err))
			continue
		}
		w.node.Author.Title = d.Title
		if w.node.Author.Type == "" {
			w.node.Author.Type = d.Type
		}
	}
}

var _ Store = storage.Store(nil)
