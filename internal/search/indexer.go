package search

import (
	"context"
	"time"

	"github.com/tutao/search-core/internal/model"
)

// Indexer is the external indexer collaborator contract from §6. Sentinel
// horizon values are model.FullIndexedTimestamp and
// model.NothingIndexedTimestamp.
//
// IndexMailboxes folds §6's indexingFuture and indexMailboxes together: it
// blocks until the requested coverage is reached (or the context is
// cancelled), returning a Cancelled error on cooperative cancellation.
type Indexer interface {
	CurrentIndexTimestamp() time.Time
	IndexMailboxes(ctx context.Context, sinceEpochMs int64) error
}
