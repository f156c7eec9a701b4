package risk

import "context"

type Repository interface {
	// Get returns ErrNotFound when the appointment has not been scored.
	Get(ctx context.Context, appointmentID string) (*Assessment, error)
	// Upsert inserts or replaces the assessment keyed by appointment_id.
	Upsert(ctx context.Context, a *Assessment) error
}
