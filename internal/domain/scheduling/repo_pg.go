package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pulse/pulse/internal/platform/db"
)

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}

// parseDay turns a YYYY-MM-DD filter into the [start, end) range of that day
// in loc, the clinic's time zone.
func parseDay(date string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return start, start.AddDate(0, 0, 1), nil
}

// where builds the shared appointment filter clause starting at placeholder idx.
// Dates are calendar days in loc.
func (f AppointmentFilter) where(alias string, idx int, loc *time.Location) (string, []interface{}, error) {
	clause := ""
	var args []interface{}

	if f.Date != "" {
		start, end, err := parseDay(f.Date, loc)
		if err != nil {
			return "", nil, err
		}
		clause += fmt.Sprintf(` AND %[1]s.scheduled_time >= $%[2]d AND %[1]s.scheduled_time < $%[3]d`, alias, idx, idx+1)
		args = append(args, start, end)
		idx += 2
	}
	if f.ProviderID != "" {
		clause += fmt.Sprintf(` AND %s.provider_id = $%d`, alias, idx)
		args = append(args, f.ProviderID)
		idx++
	}
	if f.Status != "" {
		clause += fmt.Sprintf(` AND %s.status = $%d`, alias, idx)
		args = append(args, f.Status)
	}
	return clause, args, nil
}

// =========== Provider Repository ===========

type providerRepoPG struct{ q db.Querier }

func NewProviderRepoPG(q db.Querier) ProviderRepository { return &providerRepoPG{q: q} }

func (r *providerRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.q) }

const providerCols = `provider_id, name, COALESCE(specialty, ''), COALESCE(max_daily_slots, 0)`

func (r *providerRepoPG) List(ctx context.Context) ([]*Provider, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+providerCols+` FROM providers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ProviderID, &p.Name, &p.Specialty, &p.MaxDailySlots); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

func (r *providerRepoPG) GetByID(ctx context.Context, id string) (*Provider, error) {
	var p Provider
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+providerCols+` FROM providers WHERE provider_id = $1`, id).
		Scan(&p.ProviderID, &p.Name, &p.Specialty, &p.MaxDailySlots)
	if err != nil {
		return nil, notFound(err, "provider", id)
	}
	return &p, nil
}

// =========== Patient Repository ===========

type patientRepoPG struct{ q db.Querier }

func NewPatientRepoPG(q db.Querier) PatientRepository { return &patientRepoPG{q: q} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.q) }

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_id, name, age, distance_miles, zip_code, phone, email,
			commute_type, preferred_virtual
		FROM patients WHERE patient_id = $1`, id).
		Scan(&p.PatientID, &p.Name, &p.Age, &p.DistanceMiles, &p.ZipCode, &p.Phone, &p.Email,
			&p.CommuteType, &p.PreferredVirtual)
	if err != nil {
		return nil, notFound(err, "patient", id)
	}
	return &p, nil
}

func (r *patientRepoPG) GetHistory(ctx context.Context, patientID string) (*PatientHistory, error) {
	var h PatientHistory
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_id, total_appointments, completed, no_shows, no_show_rate,
			to_char(last_appointment_date, 'YYYY-MM-DD'), recent_reschedules
		FROM patient_history_summary WHERE patient_id = $1`, patientID).
		Scan(&h.PatientID, &h.TotalAppointments, &h.Completed, &h.NoShows, &h.NoShowRate,
			&h.LastAppointmentDate, &h.RecentReschedules)
	if err != nil {
		return nil, notFound(err, "patient history", patientID)
	}
	return &h, nil
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct {
	q   db.Querier
	loc *time.Location
}

// NewAppointmentRepoPG returns appointments with scheduled_time in loc, and
// date filters match calendar days in loc. A nil loc means UTC.
func NewAppointmentRepoPG(q db.Querier, loc *time.Location) AppointmentRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &appointmentRepoPG{q: q, loc: loc}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.q) }

const apptCols = `a.appointment_id, a.patient_id, a.provider_id, a.scheduled_time, a.booked_at,
	a.appointment_type, a.chief_complaint, a.status, a.duration_mins`

const riskCols = `r.risk_score, r.risk_badge, r.primary_risk_factor, r.secondary_risk_factor,
	r.contributing_factors, r.predicted_show_probability, r.weather_condition,
	r.weather_impact_score, r.virtual_eligible, r.virtual_reason`

func apptDest(a *Appointment) []interface{} {
	return []interface{}{&a.AppointmentID, &a.PatientID, &a.ProviderID, &a.ScheduledTime, &a.BookedAt,
		&a.AppointmentType, &a.ChiefComplaint, &a.Status, &a.DurationMins}
}

// riskDest scans contributing_factors into raw so NULL stays nil.
func riskDest(rc *RiskColumns, raw *[]byte) []interface{} {
	return []interface{}{&rc.RiskScore, &rc.RiskBadge, &rc.PrimaryRiskFactor, &rc.SecondaryRiskFactor,
		raw, &rc.PredictedShowProbability, &rc.WeatherCondition,
		&rc.WeatherImpactScore, &rc.VirtualEligible, &rc.VirtualReason}
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter) ([]*AppointmentView, error) {
	clause, args, err := f.where("a", 1, r.loc)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`, p.name, p.commute_type, pr.name, `+riskCols+`
		FROM appointments a
		JOIN patients p ON a.patient_id = p.patient_id
		JOIN providers pr ON a.provider_id = pr.provider_id
		LEFT JOIN ai_risk_assessments r ON a.appointment_id = r.appointment_id
		WHERE 1=1`+clause+`
		ORDER BY a.scheduled_time`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*AppointmentView
	for rows.Next() {
		var v AppointmentView
		var factors []byte
		dest := apptDest(&v.Appointment)
		dest = append(dest, &v.PatientName, &v.CommuteType, &v.ProviderName)
		dest = append(dest, riskDest(&v.RiskColumns, &factors)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if factors != nil {
			v.ContributingFactors = factors
		}
		v.ScheduledTime = v.ScheduledTime.In(r.loc)
		items = append(items, &v)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) getOne(ctx context.Context, id, suffix string) (*Appointment, error) {
	var a Appointment
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments a WHERE a.appointment_id = $1`+suffix, id).
		Scan(apptDest(&a)...)
	if err != nil {
		return nil, notFound(err, "appointment", id)
	}
	a.ScheduledTime = a.ScheduledTime.In(r.loc)
	return &a, nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id string) (*Appointment, error) {
	return r.getOne(ctx, id, "")
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id string) (*Appointment, error) {
	return r.getOne(ctx, id, " FOR UPDATE")
}

func (r *appointmentRepoPG) GetDetails(ctx context.Context, id string) (*AppointmentDetails, error) {
	var d AppointmentDetails
	var factors []byte

	dest := apptDest(&d.Appointment)
	dest = append(dest, &d.PatientName, &d.Age, &d.DistanceMiles, &d.ZipCode, &d.Phone, &d.Email,
		&d.CommuteType, &d.PreferredVirtual, &d.ProviderName, &d.ProviderSpecialty,
		&d.AssessmentID, &d.VirtualConfidence)
	dest = append(dest, riskDest(&d.RiskColumns, &factors)...)
	dest = append(dest, &d.TotalAppointments, &d.Completed, &d.NoShows, &d.NoShowRate,
		&d.LastAppointmentDate, &d.RecentReschedules)

	err := r.conn(ctx).QueryRow(ctx, `
		SELECT `+apptCols+`,
			p.name, p.age, p.distance_miles, p.zip_code, p.phone, p.email,
			p.commute_type, p.preferred_virtual, pr.name, COALESCE(pr.specialty, ''),
			r.assessment_id, r.virtual_confidence, `+riskCols+`,
			h.total_appointments, h.completed, h.no_shows, h.no_show_rate,
			to_char(h.last_appointment_date, 'YYYY-MM-DD'), h.recent_reschedules
		FROM appointments a
		JOIN patients p ON a.patient_id = p.patient_id
		JOIN providers pr ON a.provider_id = pr.provider_id
		LEFT JOIN ai_risk_assessments r ON a.appointment_id = r.appointment_id
		LEFT JOIN patient_history_summary h ON a.patient_id = h.patient_id
		WHERE a.appointment_id = $1`, id).Scan(dest...)
	if err != nil {
		return nil, notFound(err, "appointment", id)
	}
	if factors != nil {
		d.ContributingFactors = factors
	}
	d.ScheduledTime = d.ScheduledTime.In(r.loc)
	return &d, nil
}

func (r *appointmentRepoPG) Confirm(ctx context.Context, id, chiefComplaint string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET status = $2, chief_complaint = $3
		WHERE appointment_id = $1`, id, StatusConfirmed, chiefComplaint)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *appointmentRepoPG) CountScheduled(ctx context.Context, f AppointmentFilter) (int, error) {
	f.Status = StatusScheduled
	clause, args, err := f.where("a", 1, r.loc)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments a WHERE 1=1`+clause, args...).Scan(&n)
	return n, err
}

func (r *appointmentRepoPG) CountHighRisk(ctx context.Context, f AppointmentFilter) (int, error) {
	f.Status = StatusScheduled
	clause, args, err := f.where("a", 1, r.loc)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM ai_risk_assessments r
		JOIN appointments a ON r.appointment_id = a.appointment_id
		WHERE r.risk_badge = 'High'`+clause, args...).Scan(&n)
	return n, err
}

// =========== Waitlist Repository ===========

type waitlistRepoPG struct{ q db.Querier }

func NewWaitlistRepoPG(q db.Querier) WaitlistRepository { return &waitlistRepoPG{q: q} }

func (r *waitlistRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.q) }

const waitlistCols = `waitlist_id, patient_name, chief_complaint, reason, preferred_timeframe,
	provider_preference, requested_provider_id, added_at, status, filled_appointment_id, filled_at`

func scanWaitlist(row pgx.Row) (*WaitlistEntry, error) {
	var w WaitlistEntry
	err := row.Scan(&w.WaitlistID, &w.PatientName, &w.ChiefComplaint, &w.Reason, &w.PreferredTimeframe,
		&w.ProviderPreference, &w.RequestedProviderID, &w.AddedAt, &w.Status, &w.FilledAppointmentID, &w.FilledAt)
	return &w, err
}

func (r *waitlistRepoPG) ListWaiting(ctx context.Context, providerID string) ([]*WaitlistEntry, error) {
	query := `SELECT ` + waitlistCols + ` FROM waitlist_patients WHERE status = $1`
	args := []interface{}{WaitlistWaiting}
	if providerID != "" {
		query += ` AND requested_provider_id = $2`
		args = append(args, providerID)
	}
	query += ` ORDER BY added_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*WaitlistEntry
	for rows.Next() {
		w, err := scanWaitlist(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (r *waitlistRepoPG) CountWaiting(ctx context.Context, providerID string) (int, error) {
	query := `SELECT COUNT(*) FROM waitlist_patients WHERE status = $1`
	args := []interface{}{WaitlistWaiting}
	if providerID != "" {
		query += ` AND requested_provider_id = $2`
		args = append(args, providerID)
	}
	var n int
	err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *waitlistRepoPG) GetForUpdate(ctx context.Context, id string) (*WaitlistEntry, error) {
	w, err := scanWaitlist(r.conn(ctx).QueryRow(ctx,
		`SELECT `+waitlistCols+` FROM waitlist_patients WHERE waitlist_id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "waitlist entry", id)
	}
	return w, nil
}

func (r *waitlistRepoPG) MarkFilled(ctx context.Context, id, appointmentID string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE waitlist_patients
		SET status = $2, filled_appointment_id = $3, filled_at = $4
		WHERE waitlist_id = $1`, id, WaitlistFilled, appointmentID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("waitlist entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// =========== Weather Repository ===========

type weatherRepoPG struct{ q db.Querier }

func NewWeatherRepoPG(q db.Querier) WeatherRepository { return &weatherRepoPG{q: q} }

func (r *weatherRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.q) }

func (r *weatherRepoPG) Get(ctx context.Context, date, zipCode string) (*Weather, error) {
	day, _, err := parseDay(date, time.UTC)
	if err != nil {
		return nil, err
	}

	var w Weather
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT weather_id, to_char(date, 'YYYY-MM-DD'), zip_code, condition,
			temperature_f, precipitation_pct
		FROM weather_data WHERE date = $1 AND zip_code = $2`, day, zipCode).
		Scan(&w.WeatherID, &w.Date, &w.ZipCode, &w.Condition, &w.TemperatureF, &w.PrecipitationPct)
	if err != nil {
		return nil, notFound(err, "weather", date+"/"+zipCode)
	}
	return &w, nil
}
