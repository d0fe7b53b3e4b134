package core

import (
	"context"
	"time"
)

// Store is the persistence surface for timesheet records. FindByPath returns a
// *NotFoundError when no record has the path.
type Store interface {
	FindByPath(ctx context.Context, path string) (*Timesheet, error)
	Exists(ctx context.Context, path string) (bool, error)
	Insert(ctx context.Context, record *Timesheet) error
	SetApproved(ctx context.Context, path string) error
	MarkConfirmationSent(ctx context.Context, path string) error
	EnsureTTLIndex(ctx context.Context, expireAfter time.Duration) error
}

var _ Store = (*RecordStore)(nil)
