package votes

import (
	"context"
	"fmt"

	"github.com/ButyrinIA/feed/internal/metrics"
	"github.com/ButyrinIA/feed/internal/models"
	"go.uber.org/zap"
)

type Source interface {
	TabulateVotes(ctx context.Context, target string) (*models.Votes, error)
}

// Tabulator загружает голоса за объект и приводит их к инварианту:
// голосующий присутствует не более чем в одном множестве.
type Tabulator struct {
	src    Source
	logger *zap.Logger
}

func NewTabulator(src Source, logger *zap.Logger) *Tabulator {
	return &Tabulator{src: src, logger: logger}
}

func (t *Tabulator) Tabulate(ctx context.Context, target string) (*models.Votes, error) {
	raw, err := t.src.TabulateVotes(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to tabulate votes for %s: %w", target, err)
	}
	return normalize(raw), nil
}

// TabulateOrZero никогда не возвращает nil: при ошибке логирует ее
// и возвращает пустые голоса.
func (t *Tabulator) TabulateOrZero(ctx context.Context, target string) *models.Votes {
	v, err := t.Tabulate(ctx, target)
	if err != nil {
		metrics.AnnotationFailures.WithLabelValues("votes").Inc()
		t.logger.Warn("vote annotation failed", zap.String("target", target), zap.Error(err))
		return &models.Votes{}
	}
	return v
}

// UserVote возвращает голос user: -1, 0 или 1.
func UserVote(v *models.Votes, user string) int {
	return int(v.UserVote(user))
}

// normalize убирает повторы. Голосующий, найденный в обоих множествах,
// считается не проголосовавшим.
func normalize(raw *models.Votes) *models.Votes {
	if raw == nil {
		return &models.Votes{}
	}
	up := make(map[string]bool, len(raw.Upvotes))
	for _, id := range raw.Upvotes {
		up[id] = true
	}
	down := make(map[string]bool, len(raw.Downvotes))
	for _, id := range raw.Downvotes {
		down[id] = true
	}

	out := &models.Votes{Upvotes: []string{}, Downvotes: []string{}}
	seen := make(map[string]bool)
	for _, id := range raw.Upvotes {
		if !down[id] && !seen[id] {
			out.Upvotes = append(out.Upvotes, id)
			seen[id] = true
		}
	}
	for _, id := range raw.Downvotes {
		if !up[id] && !seen[id] {
			out.Downvotes = append(out.Downvotes, id)
			seen[id] = true
		}
	}
	return out
}
