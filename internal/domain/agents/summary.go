package agents

import (
	"context"
	"time"

	"github.com/pulse/pulse/internal/domain/audit"
	"github.com/pulse/pulse/internal/domain/scheduling"
	"github.com/pulse/pulse/pkg/apierror"
)

// topWaitlistMatches is how many ranked waitlist patients a briefing carries.
const topWaitlistMatches = 3

type SummaryRequest struct {
	Date             string   `json:"date"`
	ProviderID       string   `json:"provider_id"`
	WeatherCondition string   `json:"weather_condition,omitempty"`
	WeatherTempF     *float64 `json:"weather_temp_f,omitempty"`
	Model            string   `json:"model,omitempty"`
}

type PatientBrief struct {
	PatientName     string    `json:"patient_name"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	AppointmentType string    `json:"appointment_type"`
	ChiefComplaint  string    `json:"chief_complaint"`
	RiskLevel       string    `json:"risk_level"`
	IsNewPatient    bool      `json:"is_new_patient"`
	VirtualEligible bool      `json:"virtual_eligible"`
}

type DailySummary struct {
	DailyMetrics
	WaitlistCount           int               `json:"waitlist_count"`
	HighRiskPatients        int               `json:"high_risk_patients"`
	NewPatientOpportunities int               `json:"new_patient_opportunities"`
	PatientSummaries        []PatientBrief    `json:"patient_summaries"`
	TopWaitlistMatches      []PriorityPatient `json:"top_waitlist_matches,omitempty"`
	ExecutiveSummary        string            `json:"executive_summary"`
	KeyInsights             []string          `json:"key_insights"`
	Recommendations         []string          `json:"recommendations"`
}

type summaryNarrative struct {
	ExecutiveSummary string   `json:"executive_summary"`
	KeyInsights      []string `json:"key_insights"`
	Recommendations  []string `json:"recommendations"`
}

type summaryPatient struct {
	Time            string
	PatientName     string
	AppointmentType string
	ChiefComplaint  string
	RiskLevel       string
}

type summaryPrompt struct {
	ProviderName     string
	Date             string
	Metrics          DailyMetrics
	WaitlistCount    int
	WeatherCondition string
	WeatherTempF     *float64
	Patients         []summaryPatient
}

func patientBriefs(appts []*scheduling.AppointmentView) []PatientBrief {
	out := make([]PatientBrief, len(appts))
	for i, a := range appts {
		b := PatientBrief{
			PatientName:     a.PatientName,
			ScheduledTime:   a.ScheduledTime,
			AppointmentType: a.AppointmentType,
			ChiefComplaint:  deref(a.ChiefComplaint),
			RiskLevel:       "Unknown",
			VirtualEligible: a.VirtualEligible != nil && *a.VirtualEligible,
		}
		if a.RiskBadge != nil {
			b.RiskLevel = *a.RiskBadge
		}
		out[i] = b
	}
	return out
}

// DailySummary builds the next-day briefing for one provider: computed
// schedule metrics, the top of the ranked waitlist and a model-written
// narrative. A failing waitlist analysis is logged and left out.
func (s *Service) DailySummary(ctx context.Context, req SummaryRequest) (*DailySummary, error) {
	if req.ProviderID == "" {
		return nil, apierror.Invalid("provider_id is required")
	}
	if err := validateDate(req.Date); err != nil {
		return nil, err
	}
	m, err := s.model(req.Model)
	if err != nil {
		return nil, err
	}

	prov, err := s.sched.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	appts, err := s.sched.ListAppointments(ctx, scheduling.AppointmentFilter{Date: req.Date, ProviderID: req.ProviderID})
	if err != nil {
		return nil, err
	}
	waiting, err := s.sched.ListWaitlist(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}

	metrics := ComputeDailyMetrics(appts)
	sum := &DailySummary{
		DailyMetrics:            metrics,
		WaitlistCount:           len(waiting),
		HighRiskPatients:        metrics.HighRiskCount,
		NewPatientOpportunities: metrics.HighRiskCount,
		PatientSummaries:        patientBriefs(appts),
	}

	if len(waiting) > 0 && prov.Specialty != "" {
		analysis, err := s.analyzeWaitlist(ctx, prov, waiting, m)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider_id", req.ProviderID).Msg("daily summary without waitlist matches")
		} else {
			top := analysis.PriorityPatients
			if len(top) > topWaitlistMatches {
				top = top[:topWaitlistMatches]
			}
			sum.TopWaitlistMatches = top
		}
	}

	patients := make([]summaryPatient, len(sum.PatientSummaries))
	for i, b := range sum.PatientSummaries {
		patients[i] = summaryPatient{
			Time:            b.ScheduledTime.Format("15:04"),
			PatientName:     b.PatientName,
			AppointmentType: b.AppointmentType,
			ChiefComplaint:  b.ChiefComplaint,
			RiskLevel:       b.RiskLevel,
		}
	}

	var narrative summaryNarrative
	err = s.invoke(ctx, call{
		agent:      audit.AgentDailySummary,
		model:      m,
		promptName: "summary",
		promptData: summaryPrompt{
			ProviderName:     prov.Name,
			Date:             req.Date,
			Metrics:          metrics,
			WaitlistCount:    len(waiting),
			WeatherCondition: req.WeatherCondition,
			WeatherTempF:     req.WeatherTempF,
			Patients:         patients,
		},
		tool: dailySummaryTool,
	}, &narrative)
	if err != nil {
		return nil, err
	}

	sum.ExecutiveSummary = narrative.ExecutiveSummary
	sum.KeyInsights = narrative.KeyInsights
	sum.Recommendations = narrative.Recommendations
	return sum, nil
}
