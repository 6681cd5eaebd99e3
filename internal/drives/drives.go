package drives

import (
	"context"
	"fmt"
	"time"

	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/graph-gophers/dataloader/v7"
)

type Source interface {
	GetDrives(ctx context.Context, ids []string) (map[string]storage.DriveInfo, error)
}

type Loader = dataloader.Loader[string, storage.DriveInfo]

// NewLoader создает загрузчик drive-профилей, объединяющий запросы в пакеты.
// Кэш живет столько же, сколько загрузчик, поэтому создавайте его на каждую загрузку.
func NewLoader(src Source) *Loader {
	batch := func(ctx context.Context, ids []string) []*dataloader.Result[storage.DriveInfo] {
		results := make([]*dataloader.Result[storage.DriveInfo], len(ids))
		found, err := src.GetDrives(ctx, ids)
		for i, id := range ids {
			switch d, ok := found[id]; {
			case err != nil:
				results[i] = &dataloader.Result[storage.DriveInfo]{Error: fmt.Errorf("failed to load drive %s: %w", id, err)}
			case !ok:
				results[i] = &dataloader.Result[storage.DriveInfo]{Error: fmt.Errorf("drive %s: %w", id, storage.ErrNotFound)}
			default:
				results[i] = &dataloader.Result[storage.DriveInfo]{Data: d}
			}
		}
		return results
	}
	return dataloader.NewBatchedLoader(batch,
		dataloader.WithWait[string, storage.DriveInfo](2*time.Millisecond),
		dataloader.WithBatchCapacity[string, storage.DriveInfo](100),
	)
}
