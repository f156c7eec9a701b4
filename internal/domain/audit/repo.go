package audit

import "context"

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	// List returns one page ordered by timestamp, newest first, and the
	// number of entries matching the filter.
	List(ctx context.Context, f Filter) ([]*Entry, int, error)
}
