package scheduling

import (
	"context"
	"time"
)

type ProviderRepository interface {
	List(ctx context.Context) ([]*Provider, error)
	GetByID(ctx context.Context, id string) (*Provider, error)
}

type PatientRepository interface {
	GetByID(ctx context.Context, id string) (*Patient, error)
	// GetHistory returns ErrNotFound when the patient has no summary row.
	GetHistory(ctx context.Context, patientID string) (*PatientHistory, error)
}

type AppointmentRepository interface {
	List(ctx context.Context, f AppointmentFilter) ([]*AppointmentView, error)
	GetByID(ctx context.Context, id string) (*Appointment, error)
	// GetForUpdate locks the row for the rest of the surrounding transaction.
	GetForUpdate(ctx context.Context, id string) (*Appointment, error)
	GetDetails(ctx context.Context, id string) (*AppointmentDetails, error)
	Confirm(ctx context.Context, id, chiefComplaint string) error
	CountScheduled(ctx context.Context, f AppointmentFilter) (int, error)
	CountHighRisk(ctx context.Context, f AppointmentFilter) (int, error)
}

type WaitlistRepository interface {
	ListWaiting(ctx context.Context, providerID string) ([]*WaitlistEntry, error)
	CountWaiting(ctx context.Context, providerID string) (int, error)
	GetForUpdate(ctx context.Context, id string) (*WaitlistEntry, error)
	MarkFilled(ctx context.Context, id, appointmentID string, at time.Time) error
}

type WeatherRepository interface {
	// Get returns ErrNotFound when no record exists for the date and zip code.
	Get(ctx context.Context, date, zipCode string) (*Weather, error)
}

// Transactor runs fn in a database transaction carried by ctx.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
