package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/domain"
	"duelhall/internal/ports"
)

// PruneQueues deletes stored queue entries of every game mode that were
// enqueued before cutoff and returns how many were removed. Deletes are
// conditioned on the listed version, so an entry refreshed or claimed in the
// meantime is left alone.
func PruneQueues(ctx context.Context, store ports.DocumentStore, cutoff time.Time) (int, error) {
	removed := 0
	for _, mode := range domain.GameTypes {
		docs, err := store.List(ctx, app.QueueCollection(string(mode)), "")
		if err != nil {
			return removed, fmt.Errorf("list %s queue: %w", mode, err)
		}
		for _, doc := range docs {
			var e domain.QueueEntry
			if err := json.Unmarshal(doc.Value, &e); err == nil && !e.EnqueuedAt.Before(cutoff) {
				continue
			}
			if err := store.Delete(ctx, doc.Ref, doc.Version); err != nil {
				if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrVersionConflict) {
					continue
				}
				return removed, fmt.Errorf("delete queue entry %s: %w", doc.Key, err)
			}
			removed++
		}
	}
	return removed, nil
}
