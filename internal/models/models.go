package models

import "time"

// Drive - ссылка на идентичность автора (источник контента)
type Drive struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type,omitempty"`
}

type Post struct {
	ID           string     `json:"id"`
	Author       Drive      `json:"author"`
	Topic        string     `json:"topic"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"createdAt"`
	Votes        *Votes     `json:"votes,omitempty"`
	CommentCount *int       `json:"commentCount,omitempty"`
	Comments     []*Comment `json:"comments,omitempty"`
}

// Comment - узел треда. Href указывает на объект, к которому привязан тред,
// Parent равен nil у комментариев верхнего уровня.
type Comment struct {
	ID         string     `json:"id"`
	Href       string     `json:"href"`
	Author     Drive      `json:"author"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	Parent     *string    `json:"parent,omitempty"`
	Replies    []*Comment `json:"replies"`
	Votes      *Votes     `json:"votes"`
	ReplyCount int        `json:"replyCount"`
}

// Karma равна нулю, пока голоса не загружены
func (c *Comment) Karma() int {
	return c.Votes.Karma()
}

// ParentID возвращает идентификатор родителя или ""
func (c *Comment) ParentID() string {
	if c.Parent == nil {
		return ""
	}
	return *c.Parent
}

type FollowRecord struct {
	Author Drive `json:"author"`
	Target Drive `json:"target"`
}

// Profile - отслеживаемый drive в результатах поиска
type Profile struct {
	Drive       Drive   `json:"drive"`
	Description string  `json:"description"`
	Followers   []Drive `json:"followers"`
}

type ResultKind string

const (
	ResultPost ResultKind = "post"
	ResultUser ResultKind = "user"
)

// SearchResult содержит ровно одно из Post или Profile, в зависимости от Kind
type SearchResult struct {
	Kind    ResultKind `json:"kind"`
	Post    *Post      `json:"post,omitempty"`
	Profile *Profile   `json:"profile,omitempty"`
}

// Key используется для дедупликации результатов
func (r SearchResult) Key() string {
	switch r.Kind {
	case ResultPost:
		return "post:" + r.Post.ID
	default:
		return "user:" + r.Profile.Drive.ID
	}
}

type SearchPage struct {
	Query   string         `json:"query"`
	Page    int            `json:"page"`
	Results []SearchResult `json:"results"`
	AtEnd   bool           `json:"atEnd"`
}
