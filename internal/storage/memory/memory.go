package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/google/uuid"
)

type MemoryStorage struct {
	posts    []*models.Post
	comments map[string][]*models.Comment // по href, в порядке добавления
	votes    map[string]*models.Votes
	follows  []models.FollowRecord
	drives   map[string]storage.DriveInfo
	now      func() time.Time
	mu       sync.RWMutex
}

func New() *MemoryStorage {
	return &MemoryStorage{
		comments: make(map[string][]*models.Comment),
		votes:    make(map[string]*models.Votes),
		drives:   make(map[string]storage.DriveInfo),
		now:      time.Now,
	}
}

func (s *MemoryStorage) ListComments(ctx context.Context, target string) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.comments[target]
	result := make([]*models.Comment, 0, len(stored))
	for _, c := range stored {
		cp := *c
		cp.Replies = nil
		cp.Votes = nil
		result = append(result, &cp)
	}
	return result, nil
}

func (s *MemoryStorage) AddComment(ctx context.Context, nc storage.NewComment) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nc.Parent != nil && s.findComment(*nc.Parent) == nil {
		return nil, fmt.Errorf("parent %s: %w", *nc.Parent, storage.ErrNotFound)
	}
	c := &models.Comment{
		ID:        fmt.Sprintf("%s/comments/%s", nc.Author.ID, uuid.New().String()),
		Href:      nc.Href,
		Author:    nc.Author,
		Content:   nc.Content,
		CreatedAt: s.now(),
		Parent:    nc.Parent,
	}
	s.comments[nc.Href] = append(s.comments[nc.Href], c)
	cp := *c
	return &cp, nil
}

func (s *MemoryStorage) UpdateComment(ctx context.Context, id string, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findComment(id)
	if c == nil {
		return fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	c.Content = content
	return nil
}

func (s *MemoryStorage) RemoveComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.comments[comment.Href]
	i := slices.IndexFunc(list, func(c *models.Comment) bool { return c.ID == comment.ID })
	if i < 0 {
		return fmt.Errorf("comment %s: %w", comment.ID, storage.ErrNotFound)
	}
	s.comments[comment.Href] = slices.Delete(list, i, i+1)
	delete(s.votes, comment.ID)
	return nil
}

func (s *MemoryStorage) CountComments(ctx context.Context, href string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.comments[href]), nil
}

func (s *MemoryStorage) findComment(id string) *models.Comment {
	for _, list := range s.comments {
		for _, c := range list {
			if c.ID == id {
				return c
			}
		}
	}
	return nil
}

func (s *MemoryStorage) TabulateVotes(ctx context.Context, target string) (*models.Votes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.votes[target]; ok {
		return v.Clone(), nil
	}
	return &models.Votes{}, nil
}

func (s *MemoryStorage) PutVote(ctx context.Context, target string, voter string, value models.Direction) error {
	if !value.Valid() {
		return fmt.Errorf("invalid vote value %d", value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votes[target]
	if !ok {
		v = &models.Votes{}
		s.votes[target] = v
	}
	v.Set(voter, value)
	return nil
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.CreatedAt.IsZero() {
		post.CreatedAt = s.now()
	}
	cp := *post
	s.posts = append(s.posts, &cp)
	return nil
}

func (s *MemoryStorage) ListPosts(ctx context.Context, filter storage.PostFilter, opts storage.ListOptions) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var posts []*models.Post
	for _, p := range s.posts {
		if filter.Author != "" && p.Author.ID != filter.Author {
			continue
		}
		cp := *p
		posts = append(posts, &cp)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return window(posts, opts), nil
}

func (s *MemoryStorage) Follow(ctx context.Context, rec models.FollowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.follows {
		if f.Author.ID == rec.Author.ID && f.Target.ID == rec.Target.ID {
			return nil
		}
	}
	s.follows = append(s.follows, rec)
	return nil
}

func (s *MemoryStorage) ListFollows(ctx context.Context, filter storage.FollowFilter, opts storage.ListOptions) ([]models.FollowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var follows []models.FollowRecord
	for _, f := range s.follows {
		if filter.Author != "" && f.Author.ID != filter.Author {
			continue
		}
		if filter.Target != "" && f.Target.ID != filter.Target {
			continue
		}
		if d, ok := s.drives[f.Target.ID]; ok && f.Target.Type == "" {
			f.Target.Type = d.Type
		}
		follows = append(follows, f)
	}
	return window(follows, opts), nil
}

func (s *MemoryStorage) PutDrive(ctx context.Context, d models.Drive, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drives[d.ID] = storage.DriveInfo{Drive: d, Description: description}
	return nil
}

func (s *MemoryStorage) GetDrives(ctx context.Context, ids []string) (map[string]storage.DriveInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]storage.DriveInfo, len(ids))
	for _, id := range ids {
		if d, ok := s.drives[id]; ok {
			result[id] = d
		}
	}
	return result, nil
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = nil
	s.comments = make(map[string][]*models.Comment)
	s.votes = make(map[string]*models.Votes)
	s.follows = nil
	s.drives = make(map[string]storage.DriveInfo)
	return nil
}

func window[T any](items []T, opts storage.ListOptions) []T {
	start := max(opts.Offset, 0)
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return items[start:end]
}
