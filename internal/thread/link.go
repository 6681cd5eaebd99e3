package thread

import "github.com/ButyrinIA/feed/internal/models"

// Link строит дерево в два прохода: сначала индексирует все записи по ID,
// затем привязывает детей к родителям. Вложенные записи предварительно
// разворачиваются. Корнем считается запись без родителя или с родителем,
// равным target. Записи, чей родитель отсутствует, и записи, недостижимые
// от корней (циклы), отбрасываются; их число возвращается вторым значением.
func Link(target string, records []*models.Comment) ([]*models.Comment, int) {
	flat := flattenRecords(records)

	index := make(map[string]*models.Comment, len(flat))
	order := make([]*models.Comment, 0, len(flat))
	duplicates := 0
	for _, c := range flat {
		if _, ok := index[c.ID]; ok {
			duplicates++
			continue
		}
		c.Replies = nil
		index[c.ID] = c
		order = append(order, c)
	}

	var roots []*models.Comment
	children := make(map[string][]*models.Comment, len(order))
	for _, c := range order {
		parent := c.ParentID()
		switch {
		case parent == "" || parent == target:
			roots = append(roots, c)
		case index[parent] != nil && parent != c.ID:
			children[parent] = append(children[parent], c)
		}
	}

	linked := 0
	queue := append([]*models.Comment(nil), roots...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		linked++
		c.Replies = children[c.ID]
		if c.Replies == nil {
			c.Replies = []*models.Comment{}
		}
		c.ReplyCount = len(c.Replies)
		queue = append(queue, c.Replies...)
	}
	if roots == nil {
		roots = []*models.Comment{}
	}
	return roots, len(order) - linked + duplicates
}

// flattenRecords разворачивает записи, пришедшие уже вложенными,
// заполняя Parent у детей, где он не указан.
func flattenRecords(records []*models.Comment) []*models.Comment {
	var out []*models.Comment
	var walk func(c *models.Comment)
	stack := make(map[*models.Comment]bool)
	walk = func(c *models.Comment) {
		if c == nil || stack[c] {
			return
		}
		stack[c] = true
		out = append(out, c)
		for _, r := range c.Replies {
			if r != nil && r.Parent == nil {
				id := c.ID
				r.Parent = &id
			}
			walk(r)
		}
	}
	for _, c := range records {
		walk(c)
	}
	return out
}

// Flatten возвращает все узлы дерева в порядке обхода в ширину.
func Flatten(roots []*models.Comment) []*models.Comment {
	var out []*models.Comment
	queue := append([]*models.Comment(nil), roots...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		out = append(out, c)
		queue = append(queue, c.Replies...)
	}
	return out
}

// Find ищет узел по ID на любой глубине.
func Find(roots []*models.Comment, id string) *models.Comment {
	for _, c := range Flatten(roots) {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Clone возвращает глубокую копию дерева.
func Clone(roots []*models.Comment) []*models.Comment {
	out := make([]*models.Comment, len(roots))
	for i, c := range roots {
		cp := *c
		cp.Votes = c.Votes.Clone()
		cp.Replies = Clone(c.Replies)
		out[i] = &cp
	}
	return out
}
