package scheduling

import (
	"encoding/json"
	"time"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
	StatusCancelled = "cancelled"
)

// Waitlist statuses.
const (
	WaitlistWaiting = "waiting"
	WaitlistFilled  = "filled"
)

var validAppointmentStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCompleted: true,
	StatusNoShow: true, StatusCancelled: true,
}

type Provider struct {
	ProviderID    string `db:"provider_id" json:"provider_id"`
	Name          string `db:"name" json:"name"`
	Specialty     string `db:"specialty" json:"specialty"`
	MaxDailySlots int    `db:"max_daily_slots" json:"max_daily_slots"`
}

type Patient struct {
	PatientID        string          `db:"patient_id" json:"patient_id"`
	Name             string          `db:"name" json:"name"`
	Age              int             `db:"age" json:"age"`
	DistanceMiles    float64         `db:"distance_miles" json:"distance_miles"`
	ZipCode          string          `db:"zip_code" json:"zip_code"`
	Phone            *string         `db:"phone" json:"phone,omitempty"`
	Email            *string         `db:"email" json:"email,omitempty"`
	CommuteType      string          `db:"commute_type" json:"commute_type"`
	PreferredVirtual bool            `db:"preferred_virtual" json:"preferred_virtual"`
	History          *PatientHistory `json:"history"`
}

// PatientHistory is the rolled-up attendance record for a patient.
type PatientHistory struct {
	PatientID           string  `db:"patient_id" json:"patient_id"`
	TotalAppointments   int     `db:"total_appointments" json:"total_appointments"`
	Completed           int     `db:"completed" json:"completed"`
	NoShows             int     `db:"no_shows" json:"no_shows"`
	NoShowRate          float64 `db:"no_show_rate" json:"no_show_rate"`
	LastAppointmentDate *string `db:"last_appointment_date" json:"last_appointment_date"`
	RecentReschedules   int     `db:"recent_reschedules" json:"recent_reschedules"`
}

type Appointment struct {
	AppointmentID   string     `db:"appointment_id" json:"appointment_id"`
	PatientID       string     `db:"patient_id" json:"patient_id"`
	ProviderID      string     `db:"provider_id" json:"provider_id"`
	ScheduledTime   time.Time  `db:"scheduled_time" json:"scheduled_time"`
	BookedAt        *time.Time `db:"booked_at" json:"booked_at"`
	AppointmentType string     `db:"appointment_type" json:"appointment_type"`
	ChiefComplaint  *string    `db:"chief_complaint" json:"chief_complaint"`
	Status          string     `db:"status" json:"status"`
	DurationMins    int        `db:"duration_mins" json:"duration_mins"`
}

// RiskColumns are the assessment fields joined onto appointment rows. All are
// null when the appointment has not been scored.
type RiskColumns struct {
	RiskScore                *int            `json:"risk_score"`
	RiskBadge                *string         `json:"risk_badge"`
	PrimaryRiskFactor        *string         `json:"primary_risk_factor"`
	SecondaryRiskFactor      *string         `json:"secondary_risk_factor"`
	ContributingFactors      json.RawMessage `json:"contributing_factors"`
	PredictedShowProbability *float64        `json:"predicted_show_probability"`
	WeatherCondition         *string         `json:"weather_condition"`
	WeatherImpactScore       *int            `json:"weather_impact_score"`
	VirtualEligible          *bool           `json:"virtual_eligible"`
	VirtualReason            *string         `json:"virtual_reason"`
}

// AppointmentView is one row of the dashboard appointment list.
type AppointmentView struct {
	Appointment
	PatientName  string `json:"patient_name"`
	CommuteType  string `json:"commute_type"`
	ProviderName string `json:"provider_name"`
	RiskColumns
}

// AppointmentDetails backs the patient detail page.
type AppointmentDetails struct {
	Appointment
	PatientName       string  `json:"patient_name"`
	Age               int     `json:"age"`
	DistanceMiles     float64 `json:"distance_miles"`
	ZipCode           string  `json:"zip_code"`
	Phone             *string `json:"phone"`
	Email             *string `json:"email"`
	CommuteType       string  `json:"commute_type"`
	PreferredVirtual  bool    `json:"preferred_virtual"`
	ProviderName      string  `json:"provider_name"`
	ProviderSpecialty string  `json:"provider_specialty"`

	AssessmentID      *string  `json:"assessment_id"`
	VirtualConfidence *float64 `json:"virtual_confidence"`
	RiskColumns

	TotalAppointments   *int     `json:"total_appointments"`
	Completed           *int     `json:"completed"`
	NoShows             *int     `json:"no_shows"`
	NoShowRate          *float64 `json:"no_show_rate"`
	LastAppointmentDate *string  `json:"last_appointment_date"`
	RecentReschedules   *int     `json:"recent_reschedules"`
}

// AppointmentFilter narrows list and KPI queries. Empty fields match everything.
type AppointmentFilter struct {
	Date       string // YYYY-MM-DD, matched against the calendar date of scheduled_time
	ProviderID string
	Status     string
}

type KPIs struct {
	TotalAppointments int `json:"total_appointments"`
	HighRiskPatients  int `json:"high_risk_patients"`
	WaitlistCount     int `json:"waitlist_count"`
}

type WaitlistEntry struct {
	WaitlistID          string     `db:"waitlist_id" json:"waitlist_id"`
	PatientName         string     `db:"patient_name" json:"patient_name"`
	ChiefComplaint      string     `db:"chief_complaint" json:"chief_complaint"`
	Reason              *string    `db:"reason" json:"reason"`
	PreferredTimeframe  *string    `db:"preferred_timeframe" json:"preferred_timeframe"`
	ProviderPreference  *string    `db:"provider_preference" json:"provider_preference"`
	RequestedProviderID *string    `db:"requested_provider_id" json:"requested_provider_id"`
	AddedAt             time.Time  `db:"added_at" json:"added_at"`
	Status              string     `db:"status" json:"status"`
	FilledAppointmentID *string    `db:"filled_appointment_id" json:"filled_appointment_id"`
	FilledAt            *time.Time `db:"filled_at" json:"filled_at"`
}

type Weather struct {
	WeatherID        string  `db:"weather_id" json:"weather_id"`
	Date             string  `db:"date" json:"date"`
	ZipCode          string  `db:"zip_code" json:"zip_code"`
	Condition        string  `db:"condition" json:"condition"`
	TemperatureF     float64 `db:"temperature_f" json:"temperature_f"`
	PrecipitationPct int     `db:"precipitation_pct" json:"precipitation_pct"`
}

type AssignRequest struct {
	WaitlistID    string `json:"waitlist_id"`
	AppointmentID string `json:"appointment_id"`
}

type AssignResult struct {
	AppointmentID string    `json:"appointment_id"`
	WaitlistID    string    `json:"waitlist_id"`
	PatientName   string    `json:"patient_name"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Message       string    `json:"message"`
}
