package thread

import (
	"cmp"
	"slices"

	"github.com/ButyrinIA/feed/internal/models"
)

// Sort упорядочивает соседей по убыванию кармы. Сортировка стабильна:
// при равной карме сохраняется исходный порядок.
func Sort(siblings []*models.Comment) {
	slices.SortStableFunc(siblings, func(a, b *models.Comment) int {
		return cmp.Compare(b.Karma(), a.Karma())
	})
}

// SortTree сортирует каждую группу соседей на каждом уровне.
func SortTree(roots []*models.Comment) {
	Sort(roots)
	for _, c := range Flatten(roots) {
		Sort(c.Replies)
	}
}

// Resort пересортировывает только группу соседей, в которой находится id.
func Resort(roots []*models.Comment, id string) bool {
	if slices.ContainsFunc(roots, func(c *models.Comment) bool { return c.ID == id }) {
		Sort(roots)
		return true
	}
	for _, c := range Flatten(roots) {
		if slices.ContainsFunc(c.Replies, func(r *models.Comment) bool { return r.ID == id }) {
			Sort(c.Replies)
			return true
		}
	}
	return false
}
