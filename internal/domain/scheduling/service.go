package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pulse/pulse/pkg/apierror"
)

type Service struct {
	providers    ProviderRepository
	patients     PatientRepository
	appointments AppointmentRepository
	waitlist     WaitlistRepository
	weather      WeatherRepository
	tx           Transactor
	now          func() time.Time
}

func NewService(prov ProviderRepository, pat PatientRepository, appt AppointmentRepository,
	wl WaitlistRepository, wx WeatherRepository, tx Transactor) *Service {
	return &Service{
		providers:    prov,
		patients:     pat,
		appointments: appt,
		waitlist:     wl,
		weather:      wx,
		tx:           tx,
		now:          time.Now,
	}
}

func validateDate(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return apierror.Invalid("%s must be YYYY-MM-DD, got %q", field, v)
	}
	return nil
}

func (f AppointmentFilter) validate() error {
	if err := validateDate("date", f.Date); err != nil {
		return err
	}
	if f.Status != "" && !validAppointmentStatuses[f.Status] {
		return apierror.Invalid("invalid appointment status: %s", f.Status)
	}
	return nil
}

// -- Providers --

func (s *Service) ListProviders(ctx context.Context) ([]*Provider, error) {
	return s.providers.List(ctx)
}

func (s *Service) GetProvider(ctx context.Context, id string) (*Provider, error) {
	return s.providers.GetByID(ctx, id)
}

// -- Appointments --

func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter) ([]*AppointmentView, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	items, err := s.appointments.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return items, nil
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) GetAppointmentDetails(ctx context.Context, id string) (*AppointmentDetails, error) {
	if id == "" {
		return nil, apierror.Invalid("appointment id is required")
	}
	return s.appointments.GetDetails(ctx, id)
}

// GetKPIs counts scheduled appointments, scheduled high-risk appointments and
// waiting waitlist entries. The waitlist count ignores the date filter.
func (s *Service) GetKPIs(ctx context.Context, f AppointmentFilter) (*KPIs, error) {
	f.Status = ""
	if err := f.validate(); err != nil {
		return nil, err
	}

	var k KPIs
	var err error
	if k.TotalAppointments, err = s.appointments.CountScheduled(ctx, f); err != nil {
		return nil, fmt.Errorf("count scheduled: %w", err)
	}
	if k.HighRiskPatients, err = s.appointments.CountHighRisk(ctx, f); err != nil {
		return nil, fmt.Errorf("count high risk: %w", err)
	}
	if k.WaitlistCount, err = s.waitlist.CountWaiting(ctx, f.ProviderID); err != nil {
		return nil, fmt.Errorf("count waitlist: %w", err)
	}
	return &k, nil
}

// -- Patients & weather --

// GetPatientWithHistory returns the patient with History left nil when no
// summary exists.
func (s *Service) GetPatientWithHistory(ctx context.Context, id string) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	h, err := s.patients.GetHistory(ctx, id)
	switch {
	case err == nil:
		p.History = h
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("patient history %s: %w", id, err)
	}
	return p, nil
}

// GetWeather returns nil, nil when there is no record for the day and zip code.
func (s *Service) GetWeather(ctx context.Context, date, zipCode string) (*Weather, error) {
	if date == "" || zipCode == "" {
		return nil, apierror.Invalid("date and zip_code are required")
	}
	if err := validateDate("date", date); err != nil {
		return nil, err
	}
	w, err := s.weather.Get(ctx, date, zipCode)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return w, err
}

// -- Waitlist --

func (s *Service) ListWaitlist(ctx context.Context, providerID string) ([]*WaitlistEntry, error) {
	items, err := s.waitlist.ListWaiting(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return items, nil
}

// AssignWaitlistToSlot gives an appointment slot to a waiting patient. The
// appointment is confirmed with the entry's chief complaint and the entry is
// marked filled, both in one transaction.
func (s *Service) AssignWaitlistToSlot(ctx context.Context, req AssignRequest) (*AssignResult, error) {
	if req.WaitlistID == "" || req.AppointmentID == "" {
		return nil, apierror.Invalid("waitlist_id and appointment_id are required")
	}

	var res *AssignResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		entry, err := s.waitlist.GetForUpdate(ctx, req.WaitlistID)
		if err != nil {
			return err
		}
		if entry.Status == WaitlistFilled {
			return fmt.Errorf("waitlist entry %s is already filled: %w", req.WaitlistID, ErrConflict)
		}

		appt, err := s.appointments.GetForUpdate(ctx, req.AppointmentID)
		if err != nil {
			return err
		}

		if err := s.appointments.Confirm(ctx, appt.AppointmentID, entry.ChiefComplaint); err != nil {
			return fmt.Errorf("confirm appointment: %w", err)
		}
		if err := s.waitlist.MarkFilled(ctx, entry.WaitlistID, appt.AppointmentID, s.now().UTC()); err != nil {
			return fmt.Errorf("mark waitlist filled: %w", err)
		}

		res = &AssignResult{
			AppointmentID: appt.AppointmentID,
			WaitlistID:    entry.WaitlistID,
			PatientName:   entry.PatientName,
			ScheduledTime: appt.ScheduledTime,
			Message:       fmt.Sprintf("Successfully assigned %s to appointment slot", entry.PatientName),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
