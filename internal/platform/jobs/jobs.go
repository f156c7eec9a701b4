// Package jobs tracks the progress of long-running background work such as
// bulk risk scoring, so that HTTP clients can poll instead of holding a
// connection open.
package jobs

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("job not found")

type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Progress is the shared counter for one job. Completed always equals
// Succeeded + Failed.
type Progress struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	State      State      `json:"state"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Percent is the share of items done, 0-100.
func (p *Progress) Percent() int {
	if p.Total == 0 {
		if p.State == StateRunning {
			return 0
		}
		return 100
	}
	return p.Completed * 100 / p.Total
}

type Store interface {
	Start(ctx context.Context, kind string, total int) (*Progress, error)
	// Advance records one finished item.
	Advance(ctx context.Context, id string, ok bool) error
	// Finish marks the job completed, or failed when err is non-nil.
	Finish(ctx context.Context, id string, err error) error
	Get(ctx context.Context, id string) (*Progress, error)
}

// DefaultTTL is how long finished jobs stay queryable.
const DefaultTTL = time.Hour
