package agents

import (
	"context"
	"time"

	"github.com/pulse/pulse/internal/domain/audit"
	"github.com/pulse/pulse/internal/domain/scheduling"
	"github.com/pulse/pulse/internal/platform/llm"
	"github.com/pulse/pulse/pkg/apierror"
)

type WaitlistRequest struct {
	ProviderID string `json:"provider_id"`
	Model      string `json:"model,omitempty"`
}

type PriorityPatient struct {
	WaitlistID         string  `json:"waitlist_id"`
	PatientName        string  `json:"patient_name"`
	PriorityScore      float64 `json:"priority_score"`
	Ranking            int     `json:"ranking"`
	UrgencyLevel       string  `json:"urgency_level"`
	WaitTimeDays       float64 `json:"wait_time_days"`
	RecommendedAction  string  `json:"recommended_action"`
	ClinicalSummary    string  `json:"clinical_summary"`
	ChiefComplaint     string  `json:"chief_complaint"`
	ProviderPreference string  `json:"provider_preference"`
}

type WaitlistAnalysis struct {
	TotalPatients    int               `json:"total_patients"`
	PriorityPatients []PriorityPatient `json:"priority_patients"`
	Summary          string            `json:"summary"`
	Recommendations  []string          `json:"recommendations"`
}

// waitlistPatient is one entry as shown to the model.
type waitlistPatient struct {
	WaitlistID          string    `json:"waitlist_id"`
	PatientName         string    `json:"patient_name"`
	ChiefComplaint      string    `json:"chief_complaint"`
	Reason              string    `json:"reason"`
	PreferredTimeframe  string    `json:"preferred_timeframe"`
	ProviderPreference  string    `json:"provider_preference"`
	RequestedProviderID string    `json:"requested_provider_id"`
	AddedAt             time.Time `json:"added_at"`
	WaitTimeDays        int       `json:"wait_time_days"`
}

type waitlistPrompt struct {
	ProviderName      string
	ProviderSpecialty string
	Patients          []waitlistPatient
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// AnalyzeWaitlist ranks a provider's waiting patients by priority. An empty
// waitlist returns an empty analysis without calling the model.
func (s *Service) AnalyzeWaitlist(ctx context.Context, req WaitlistRequest) (*WaitlistAnalysis, error) {
	if req.ProviderID == "" {
		return nil, apierror.Invalid("provider_id is required")
	}
	m, err := s.model(req.Model)
	if err != nil {
		return nil, err
	}
	prov, err := s.sched.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	entries, err := s.sched.ListWaitlist(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	return s.analyzeWaitlist(ctx, prov, entries, m)
}

func (s *Service) analyzeWaitlist(ctx context.Context, prov *scheduling.Provider,
	entries []*scheduling.WaitlistEntry, m llm.Model) (*WaitlistAnalysis, error) {
	if len(entries) == 0 {
		return &WaitlistAnalysis{
			PriorityPatients: []PriorityPatient{},
			Summary:          "No patients are waiting for " + prov.Name + ".",
			Recommendations:  []string{},
		}, nil
	}

	now := s.now()
	patients := make([]waitlistPatient, len(entries))
	waited := make(map[string]int, len(entries))
	for i, e := range entries {
		days := WaitTimeDays(e.AddedAt, now)
		waited[e.WaitlistID] = days
		patients[i] = waitlistPatient{
			WaitlistID:          e.WaitlistID,
			PatientName:         e.PatientName,
			ChiefComplaint:      e.ChiefComplaint,
			Reason:              deref(e.Reason),
			PreferredTimeframe:  deref(e.PreferredTimeframe),
			ProviderPreference:  deref(e.ProviderPreference),
			RequestedProviderID: deref(e.RequestedProviderID),
			AddedAt:             e.AddedAt,
			WaitTimeDays:        days,
		}
	}

	var out WaitlistAnalysis
	err := s.invoke(ctx, call{
		agent:      audit.AgentWaitlistAnalyzer,
		model:      m,
		promptName: "waitlist",
		promptData: waitlistPrompt{
			ProviderName:      prov.Name,
			ProviderSpecialty: prov.Specialty,
			Patients:          patients,
		},
		tool: waitlistAnalysisTool,
	}, &out)
	if err != nil {
		return nil, err
	}

	out.TotalPatients = len(entries)
	for i := range out.PriorityPatients {
		pp := &out.PriorityPatients[i]
		pp.Ranking = i + 1
		// trust our own arithmetic over the model's
		if d, ok := waited[pp.WaitlistID]; ok {
			pp.WaitTimeDays = float64(d)
		}
	}
	if out.PriorityPatients == nil {
		out.PriorityPatients = []PriorityPatient{}
	}
	return &out, nil
}
