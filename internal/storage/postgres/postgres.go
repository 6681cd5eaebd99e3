package postgres

import (
	"context"
	"fmt"

	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS drives (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS posts (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		author_title TEXT NOT NULL,
		topic TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS comments (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		href TEXT NOT NULL,
		parent TEXT,
		author_id TEXT NOT NULL,
		author_title TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS votes (
		seq BIGSERIAL,
		target TEXT NOT NULL,
		voter TEXT NOT NULL,
		value SMALLINT NOT NULL,
		PRIMARY KEY (target, voter)
	);
	CREATE TABLE IF NOT EXISTS follows (
		seq BIGSERIAL,
		author_id TEXT NOT NULL,
		author_title TEXT NOT NULL,
		target_id TEXT NOT NULL,
		target_title TEXT NOT NULL,
		PRIMARY KEY (author_id, target_id)
	);
	CREATE INDEX IF NOT EXISTS idx_comments_href ON comments(href);
	CREATE INDEX IF NOT EXISTS idx_follows_target ON follows(target_id);
`

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) ListComments(ctx context.Context, target string) ([]*models.Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, href, parent, author_id, author_title, content, created_at
		FROM comments
		WHERE href=$1
		ORDER BY seq`, target)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.Href, &c.Parent, &c.Author.ID, &c.Author.Title, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

func (s *PostgresStorage) AddComment(ctx context.Context, nc storage.NewComment) (*models.Comment, error) {
	if nc.Parent != nil {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM comments WHERE id=$1)`, *nc.Parent).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("parent %s: %w", *nc.Parent, storage.ErrNotFound)
		}
	}

	c := &models.Comment{
		ID:      fmt.Sprintf("%s/comments/%s", nc.Author.ID, uuid.New().String()),
		Href:    nc.Href,
		Author:  nc.Author,
		Content: nc.Content,
		Parent:  nc.Parent,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO comments (id, href, parent, author_id, author_title, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at`,
		c.ID, c.Href, c.Parent, c.Author.ID, c.Author.Title, c.Content).Scan(&c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStorage) UpdateComment(ctx context.Context, id string, content string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE comments SET content=$2 WHERE id=$1`, id, content)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) RemoveComment(ctx context.Context, comment *models.Comment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM comments WHERE id=$1`, comment.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", comment.ID, storage.ErrNotFound)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM votes WHERE target=$1`, comment.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStorage) CountComments(ctx context.Context, href string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE href=$1`, href).Scan(&count)
	return count, err
}

func (s *PostgresStorage) TabulateVotes(ctx context.Context, target string) (*models.Votes, error) {
	rows, err := s.pool.Query(ctx, `SELECT voter, value FROM votes WHERE target=$1 ORDER BY seq`, target)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := &models.Votes{}
	for rows.Next() {
		var (
			voter string
			value int16
		)
		if err := rows.Scan(&voter, &value); err != nil {
			return nil, err
		}
		votes.Set(voter, models.Direction(value))
	}
	return votes, rows.Err()
}

func (s *PostgresStorage) PutVote(ctx context.Context, target string, voter string, value models.Direction) error {
	if !value.Valid() {
		return fmt.Errorf("invalid vote value %d", value)
	}
	if value == models.NoVote {
		_, err := s.pool.Exec(ctx, `DELETE FROM votes WHERE target=$1 AND voter=$2`, target, voter)
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO votes (target, voter, value) VALUES ($1, $2, $3)
		ON CONFLICT (target, voter) DO UPDATE SET value=EXCLUDED.value`,
		target, voter, int16(value))
	return err
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *models.Post) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posts (id, author_id, author_title, topic, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		post.ID, post.Author.ID, post.Author.Title, post.Topic, post.Content, post.CreatedAt)
	return err
}

func (s *PostgresStorage) ListPosts(ctx context.Context, filter storage.PostFilter, opts storage.ListOptions) ([]*models.Post, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, author_id, author_title, topic, content, created_at
		FROM posts
		WHERE ($1 = '' OR author_id = $1)
		ORDER BY created_at DESC, seq DESC
		OFFSET $2
		LIMIT NULLIF($3, 0)`, filter.Author, opts.Offset, opts.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.Author.ID, &p.Author.Title, &p.Topic, &p.Content, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

func (s *PostgresStorage) Follow(ctx context.Context, rec models.FollowRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO follows (author_id, author_title, target_id, target_title)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		rec.Author.ID, rec.Author.Title, rec.Target.ID, rec.Target.Title)
	return err
}

func (s *PostgresStorage) ListFollows(ctx context.Context, filter storage.FollowFilter, opts storage.ListOptions) ([]models.FollowRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.author_id, f.author_title, f.target_id, f.target_title, COALESCE(d.type, '')
		FROM follows f
		LEFT JOIN drives d ON d.id = f.target_id
		WHERE ($1 = '' OR f.author_id = $1) AND ($2 = '' OR f.target_id = $2)
		ORDER BY f.seq
		OFFSET $3
		LIMIT NULLIF($4, 0)`, filter.Author, filter.Target, opts.Offset, opts.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var follows []models.FollowRecord
	for rows.Next() {
		var f models.FollowRecord
		if err := rows.Scan(&f.Author.ID, &f.Author.Title, &f.Target.ID, &f.Target.Title, &f.Target.Type); err != nil {
			return nil, err
		}
		follows = append(follows, f)
	}
	return follows, rows.Err()
}

func (s *PostgresStorage) PutDrive(ctx context.Context, d models.Drive, description string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO drives (id, title, type, description) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, type=EXCLUDED.type, description=EXCLUDED.description`,
		d.ID, d.Title, d.Type, description)
	return err
}

func (s *PostgresStorage) GetDrives(ctx context.Context, ids []string) (map[string]storage.DriveInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, type, description FROM drives WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]storage.DriveInfo, len(ids))
	for rows.Next() {
		var d storage.DriveInfo
		if err := rows.Scan(&d.ID, &d.Title, &d.Type, &d.Description); err != nil {
			return nil, err
		}
		result[d.ID] = d
	}
	return result, rows.Err()
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
