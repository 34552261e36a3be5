package storage

import "context"

// ThreadStore is the registry of per-user assistant threads. A missing
// mapping is reported as an empty thread id, not an error.
type ThreadStore interface {
	GetThread(ctx context.Context, userID string) (string, error)
	SaveThread(ctx context.Context, userID, threadID string) error
	Close() error
}
