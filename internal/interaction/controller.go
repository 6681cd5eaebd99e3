package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ButyrinIA/feed/internal/metrics"
	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/ButyrinIA/feed/internal/thread"
	"go.uber.org/zap"
)

const MaxContentLength = 2000

var (
	ErrAnonymous      = errors.New("caller identity required")
	ErrInvalidContent = fmt.Errorf("comment content must be 1..%d characters", MaxContentLength)
	ErrUnknownNode    = errors.New("node is not in the thread")
)

type Store interface {
	AddComment(ctx context.Context, c storage.NewComment) (*models.Comment, error)
	UpdateComment(ctx context.Context, id string, content string) error
	RemoveComment(ctx context.Context, comment *models.Comment) error
	PutVote(ctx context.Context, target string, voter string, value models.Direction) error
}

// MutationError - ошибка изменения, которую нужно показать пользователю.
type MutationError struct {
	Op   string
	Node string
	Err  error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Node, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

type SubmissionKind int

const (
	Reply SubmissionKind = iota
	Edit
)

type Submission struct {
	Kind    SubmissionKind
	Content string
}

// Controller выполняет действия пользователя над тредом target от имени caller.
type Controller struct {
	store  Store
	state  *State
	target string
	caller models.Drive
	reload func(ctx context.Context) error
	logger *zap.Logger
}

func NewController(store Store, state *State, target string, caller models.Drive, reload func(ctx context.Context) error, logger *zap.Logger) *Controller {
	return &Controller{
		store:  store,
		state:  state,
		target: target,
		caller: caller,
		reload: reload,
		logger: logger,
	}
}

// Submit отправляет ответ на узел nodeID (пустой nodeID - комментарий
// верхнего уровня) или правку узла. При успехе узел закрывается и тред
// перезагружается целиком. При ошибке состояние не меняется.
func (c *Controller) Submit(ctx context.Context, nodeID string, sub Submission) error {
	var (
		op  string
		err error
	)
	switch sub.Kind {
	case Reply:
		op = "reply to"
		err = c.reply(ctx, nodeID, sub.Content)
	case Edit:
		op = "edit"
		err = c.edit(ctx, nodeID, sub.Content)
	default:
		return fmt.Errorf("unknown submission kind %d", sub.Kind)
	}
	if err != nil {
		return c.fail(op, nodeID, err)
	}

	c.state.Close(nodeID)
	return c.reload(ctx)
}

func (c *Controller) reply(ctx context.Context, nodeID, content string) error {
	if err := c.validate(content); err != nil {
		return err
	}
	nc := storage.NewComment{Href: c.target, Author: c.caller, Content: content}
	if nodeID != "" {
		parent := nodeID
		nc.Parent = &parent
	}
	_, err := c.store.AddComment(ctx, nc)
	return err
}

func (c *Controller) edit(ctx context.Context, nodeID, content string) error {
	if nodeID == "" {
		return ErrUnknownNode
	}
	if err := c.validate(content); err != nil {
		return err
	}
	return c.store.UpdateComment(ctx, nodeID, content)
}

func (c *Controller) validate(content string) error {
	if c.caller.ID == "" {
		return ErrAnonymous
	}
	if strings.TrimSpace(content) == "" || utf8.RuneCountInString(content) > MaxContentLength {
		return ErrInvalidContent
	}
	return nil
}

// Remove удаляет комментарий и перезагружает тред.
func (c *Controller) Remove(ctx context.Context, node *models.Comment) error {
	if c.caller.ID == "" {
		return c.fail("remove", node.ID, ErrAnonymous)
	}
	if err := c.store.RemoveComment(ctx, node); err != nil {
		return c.fail("remove", node.ID, err)
	}
	c.state.Close(node.ID)
	return c.reload(ctx)
}

// ToggleVote переключает голос вызывающего за узел nodeID: повторный голос
// в том же направлении снимает его, иначе голос устанавливается в direction.
// Локальные голоса меняются оптимистично до записи в хранилище, группа
// соседей пересортировывается. Если запись не удалась, локальное изменение
// не откатывается: возвращается MutationError, согласование (например,
// перезагрузкой) остается за вызывающим.
func (c *Controller) ToggleVote(ctx context.Context, roots []*models.Comment, nodeID string, direction models.Direction) (models.Direction, error) {
	if direction != models.Upvote && direction != models.Downvote {
		return models.NoVote, fmt.Errorf("invalid vote direction %d", direction)
	}
	if c.caller.ID == "" {
		return models.NoVote, c.fail("vote on", nodeID, ErrAnonymous)
	}
	node := thread.Find(roots, nodeID)
	if node == nil {
		return models.NoVote, c.fail("vote on", nodeID, ErrUnknownNode)
	}
	if node.Votes == nil {
		node.Votes = &models.Votes{}
	}

	next := direction
	if node.Votes.UserVote(c.caller.ID) == direction {
		next = models.NoVote
	}
	node.Votes.Set(c.caller.ID, next)
	thread.Resort(roots, nodeID)

	if err := c.store.PutVote(ctx, nodeID, c.caller.ID, next); err != nil {
		return next, c.fail("vote on", nodeID, err)
	}
	return next, nil
}

func (c *Controller) fail(op, node string, err error) error {
	metrics.MutationFailures.WithLabelValues(op).Inc()
	c.logger.Warn("mutation failed", zap.String("op", op), zap.String("node", node), zap.Error(err))
	return &MutationError{Op: op, Node: node, Err: err}
}
