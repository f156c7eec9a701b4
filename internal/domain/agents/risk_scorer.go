package agents

import (
	"context"
	"fmt"
	"math"

	"github.com/pulse/pulse/internal/domain/audit"
	"github.com/pulse/pulse/internal/domain/risk"
	"github.com/pulse/pulse/internal/domain/scheduling"
	"github.com/pulse/pulse/internal/platform/llm"
)

// RiskResult is the model's assessment plus the weather context it was given.
type RiskResult struct {
	RiskScore                float64  `json:"risk_score"`
	RiskBadge                string   `json:"risk_badge"`
	PrimaryRiskFactor        string   `json:"primary_risk_factor"`
	SecondaryRiskFactor      string   `json:"secondary_risk_factor,omitempty"`
	ContributingFactors      []string `json:"contributing_factors,omitempty"`
	PredictedShowProbability float64  `json:"predicted_show_probability"`
	Recommendation           string   `json:"recommendation,omitempty"`
	WeatherCondition         *string  `json:"weather_condition"`
	WeatherImpactScore       int      `json:"weather_impact_score"`
}

type riskPrompt struct {
	Patient       *scheduling.Patient
	Appointment   *scheduling.Appointment
	History       scheduling.PatientHistory
	LeadTimeDays  int
	Weather       *scheduling.Weather
	WeatherImpact int
}

// forecast looks up the weather for the appointment's calendar date at the
// patient's zip code. A missing record is nil, nil.
func (s *Service) forecast(ctx context.Context, appt *scheduling.Appointment, p *scheduling.Patient) (*scheduling.Weather, error) {
	w, err := s.sched.GetWeather(ctx, appt.ScheduledTime.Format(dateLayout), p.ZipCode)
	if err != nil {
		return nil, fmt.Errorf("weather for %s: %w", appt.AppointmentID, err)
	}
	return w, nil
}

// ScoreRisk predicts whether the patient will miss the appointment. History
// may be nil for a patient without a summary row.
func (s *Service) ScoreRisk(ctx context.Context, p *scheduling.Patient, appt *scheduling.Appointment, modelName string) (*RiskResult, error) {
	m, err := s.model(modelName)
	if err != nil {
		return nil, err
	}
	w, err := s.forecast(ctx, appt, p)
	if err != nil {
		return nil, err
	}
	return s.scoreRisk(ctx, p, appt, w, m)
}

func (s *Service) scoreRisk(ctx context.Context, p *scheduling.Patient, appt *scheduling.Appointment,
	w *scheduling.Weather, m llm.Model) (*RiskResult, error) {
	data := riskPrompt{
		Patient:       p,
		Appointment:   appt,
		LeadTimeDays:  LeadTimeDays(appt.ScheduledTime, appt.BookedAt, s.now()),
		Weather:       w,
		WeatherImpact: WeatherImpact(w, p.CommuteType),
	}
	if p.History != nil {
		data.History = *p.History
	}

	var out RiskResult
	err := s.invoke(ctx, call{
		agent:         audit.AgentRiskScorer,
		model:         m,
		promptName:    "risk",
		promptData:    data,
		tool:          riskAssessmentTool,
		appointmentID: appt.AppointmentID,
		patientID:     p.PatientID,
	}, &out)
	if err != nil {
		return nil, err
	}

	if w != nil {
		cond := w.Condition
		out.WeatherCondition = &cond
	}
	out.WeatherImpactScore = data.WeatherImpact
	return &out, nil
}

// ScoreAppointment runs the full scoring flow for one appointment and stores
// the resulting assessment: patient lookup, risk score, weather, virtual
// eligibility, save.
func (s *Service) ScoreAppointment(ctx context.Context, appointmentID, modelName string) (*risk.Assessment, error) {
	m, err := s.model(modelName)
	if err != nil {
		return nil, err
	}
	appt, err := s.sched.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return s.scoreOne(ctx, appt, m)
}

func (s *Service) scoreOne(ctx context.Context, appt *scheduling.Appointment, m llm.Model) (*risk.Assessment, error) {
	p, err := s.sched.GetPatientWithHistory(ctx, appt.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient %s: %w", appt.PatientID, err)
	}
	w, err := s.forecast(ctx, appt, p)
	if err != nil {
		return nil, err
	}

	rr, err := s.scoreRisk(ctx, p, appt, w, m)
	if err != nil {
		return nil, err
	}
	ve, err := s.assessVirtual(ctx, virtualPromptFor(appt, p, w), m)
	if err != nil {
		return nil, err
	}

	a := assessmentFrom(appt.AppointmentID, rr, ve, m.Name)
	if err := s.assessments.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save assessment %s: %w", appt.AppointmentID, err)
	}
	return a, nil
}

func assessmentFrom(appointmentID string, rr *RiskResult, ve *VirtualResult, modelName string) *risk.Assessment {
	score := int(math.Round(rr.RiskScore))
	score = max(0, min(100, score))

	a := &risk.Assessment{
		AssessmentID:             risk.AssessmentIDFor(appointmentID),
		AppointmentID:            appointmentID,
		RiskScore:                score,
		RiskBadge:                rr.RiskBadge,
		PrimaryRiskFactor:        rr.PrimaryRiskFactor,
		ContributingFactors:      rr.ContributingFactors,
		PredictedShowProbability: rr.PredictedShowProbability,
		WeatherCondition:         rr.WeatherCondition,
		WeatherImpactScore:       rr.WeatherImpactScore,
		VirtualEligible:          ve.VirtualEligible,
		VirtualReason:            optional(ve.VirtualReason),
		VirtualConfidence:        &ve.Confidence,
		ModelVersion:             modelName,
	}
	if rr.SecondaryRiskFactor != "" {
		a.SecondaryRiskFactor = &rr.SecondaryRiskFactor
	}
	return a
}
