package agents

import (
	"math"
	"sort"
	"time"

	"github.com/pulse/pulse/internal/domain/scheduling"
)

// Weather conditions recorded in the weather table.
const (
	WeatherSunny  = "Sunny"
	WeatherCloudy = "Cloudy"
	WeatherRainy  = "Rainy"
	WeatherSnowy  = "Snowy"
	WeatherFoggy  = "Foggy"
)

func exposedCommute(commute string) bool {
	return commute == "bike" || commute == "public_transport"
}

// WeatherImpact is the number of risk points a forecast adds for a patient's
// commute. A nil forecast adds nothing.
func WeatherImpact(w *scheduling.Weather, commute string) int {
	if w == nil {
		return 0
	}
	switch w.Condition {
	case WeatherSnowy:
		if exposedCommute(commute) {
			return 25
		}
		return 10
	case WeatherRainy:
		if exposedCommute(commute) {
			return 15
		}
		return 5
	}
	return 0
}

// LeadTimeDays is the booking lead time rounded up to whole days. A missing
// booking time counts as now.
func LeadTimeDays(scheduled time.Time, bookedAt *time.Time, now time.Time) int {
	booked := now
	if bookedAt != nil {
		booked = *bookedAt
	}
	return int(math.Ceil(scheduled.Sub(booked).Hours() / 24))
}

// WaitTimeDays is the number of whole days since addedAt.
func WaitTimeDays(addedAt, now time.Time) int {
	return int(math.Floor(now.Sub(addedAt).Hours() / 24))
}

// assumedVisit is the slot length used for schedule metrics regardless of the
// booked duration.
const assumedVisit = 30 * time.Minute

type BreakHour struct {
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	DurationMins float64   `json:"duration_mins"`
}

// DailyMetrics are the deterministic figures behind a daily summary.
type DailyMetrics struct {
	TotalAppointments     int         `json:"total_appointments"`
	NewPatients           int         `json:"new_patients"`
	ReturningPatients     int         `json:"returning_patients"`
	HighRiskCount         int         `json:"high_risk_count"`
	MediumRiskCount       int         `json:"medium_risk_count"`
	LowRiskCount          int         `json:"low_risk_count"`
	VirtualEligibleCount  int         `json:"virtual_eligible_count"`
	TotalScheduledHours   float64     `json:"total_scheduled_hours"`
	TotalAvailableHours   float64     `json:"total_available_hours"`
	UtilizationPercentage float64     `json:"utilization_percentage"`
	BreakHours            []BreakHour `json:"break_hours"`
}

// ComputeDailyMetrics derives the schedule figures for one provider-day.
// Every appointment counts as a returning patient.
func ComputeDailyMetrics(appts []*scheduling.AppointmentView) DailyMetrics {
	m := DailyMetrics{
		TotalAppointments: len(appts),
		ReturningPatients: len(appts),
		BreakHours:        []BreakHour{},
	}

	for _, a := range appts {
		if a.RiskBadge != nil {
			switch *a.RiskBadge {
			case "High":
				m.HighRiskCount++
			case "Medium":
				m.MediumRiskCount++
			case "Low":
				m.LowRiskCount++
			}
		}
		if a.VirtualEligible != nil && *a.VirtualEligible {
			m.VirtualEligibleCount++
		}
	}

	times := make([]time.Time, len(appts))
	for i, a := range appts {
		times[i] = a.ScheduledTime
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	for i := 0; i+1 < len(times); i++ {
		end := times[i].Add(assumedVisit)
		gap := times[i+1].Sub(end)
		if gap >= assumedVisit {
			m.BreakHours = append(m.BreakHours, BreakHour{
				StartTime:    end,
				EndTime:      times[i+1],
				DurationMins: gap.Minutes(),
			})
		}
	}

	m.TotalScheduledHours = float64(len(appts)) * assumedVisit.Hours()
	m.TotalAvailableHours = 8
	if len(times) > 0 {
		m.TotalAvailableHours = (times[len(times)-1].Sub(times[0]) + assumedVisit).Hours()
	}
	if m.TotalAvailableHours > 0 {
		m.UtilizationPercentage = m.TotalScheduledHours / m.TotalAvailableHours * 100
	}
	return m
}
