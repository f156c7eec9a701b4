package agents

import (
	"context"

	"github.com/pulse/pulse/internal/domain/audit"
	"github.com/pulse/pulse/internal/domain/scheduling"
	"github.com/pulse/pulse/internal/platform/llm"
)

type VirtualResult struct {
	VirtualEligible bool    `json:"virtual_eligible"`
	VirtualReason   string  `json:"virtual_reason"`
	Confidence      float64 `json:"confidence"`
}

// PatientContext is the optional patient detail given to the eligibility agent.
type PatientContext struct {
	DistanceMiles    float64
	CommuteType      string
	PreferredVirtual bool
	ZipCode          string
}

type virtualPrompt struct {
	AppointmentID   string
	PatientID       string
	AppointmentType string
	ChiefComplaint  string
	Patient         *PatientContext
	Weather         *scheduling.Weather
}

func virtualPromptFor(appt *scheduling.Appointment, p *scheduling.Patient, w *scheduling.Weather) virtualPrompt {
	vp := virtualPrompt{
		AppointmentID:   appt.AppointmentID,
		PatientID:       appt.PatientID,
		AppointmentType: appt.AppointmentType,
		Weather:         w,
	}
	if appt.ChiefComplaint != nil {
		vp.ChiefComplaint = *appt.ChiefComplaint
	}
	if p != nil {
		vp.Patient = &PatientContext{
			DistanceMiles:    p.DistanceMiles,
			CommuteType:      p.CommuteType,
			PreferredVirtual: p.PreferredVirtual,
			ZipCode:          p.ZipCode,
		}
	}
	return vp
}

// AssessVirtualEligibility decides whether an appointment can be held as a
// video visit, using the patient's commute and the forecast when available.
func (s *Service) AssessVirtualEligibility(ctx context.Context, appointmentID, modelName string) (*VirtualResult, error) {
	m, err := s.model(modelName)
	if err != nil {
		return nil, err
	}
	appt, err := s.sched.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	p, err := s.sched.GetPatientWithHistory(ctx, appt.PatientID)
	if err != nil {
		return nil, err
	}
	// eligibility can be judged without a forecast
	w, err := s.forecast(ctx, appt, p)
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", appointmentID).Msg("virtual eligibility without weather")
		w = nil
	}
	return s.assessVirtual(ctx, virtualPromptFor(appt, p, w), m)
}

func (s *Service) assessVirtual(ctx context.Context, vp virtualPrompt, m llm.Model) (*VirtualResult, error) {
	var out VirtualResult
	err := s.invoke(ctx, call{
		agent:         audit.AgentVirtualEligibility,
		model:         m,
		promptName:    "virtual",
		promptData:    vp,
		tool:          virtualEligibilityTool,
		appointmentID: vp.AppointmentID,
		patientID:     vp.PatientID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
