package storage

import (
	"context"
	"errors"

	"github.com/ButyrinIA/feed/internal/models"
)

var ErrNotFound = errors.New("not found")

type NewComment struct {
	Href    string
	Parent  *string
	Author  models.Drive
	Content string
}

type ListOptions struct {
	Offset int
	Limit  int
}

type PostFilter struct {
	Author string
}

// FollowFilter: пустые поля не фильтруют
type FollowFilter struct {
	Author string
	Target string
}

type Store interface {
	ListComments(ctx context.Context, target string) ([]*models.Comment, error)
	AddComment(ctx context.Context, c NewComment) (*models.Comment, error)
	UpdateComment(ctx context.Context, id string, content string) error
	RemoveComment(ctx context.Context, comment *models.Comment) error
	CountComments(ctx context.Context, href string) (int, error)

	TabulateVotes(ctx context.Context, target string) (*models.Votes, error)
	PutVote(ctx context.Context, target string, voter string, value models.Direction) error

	CreatePost(ctx context.Context, post *models.Post) error
	ListPosts(ctx context.Context, filter PostFilter, opts ListOptions) ([]*models.Post, error)

	Follow(ctx context.Context, rec models.FollowRecord) error
	ListFollows(ctx context.Context, filter FollowFilter, opts ListOptions) ([]models.FollowRecord, error)
	PutDrive(ctx context.Context, d models.Drive, description string) error
	GetDrives(ctx context.Context, ids []string) (map[string]DriveInfo, error)

	Close() error
}

type DriveInfo struct {
	models.Drive
	Description string
}
