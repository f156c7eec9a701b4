package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pulse/pulse/pkg/apierror"
)

type Service struct {
	repo         Repository
	defaultModel string
}

// NewService stamps assessments saved without a model_version with defaultModel.
func NewService(repo Repository, defaultModel string) *Service {
	return &Service{repo: repo, defaultModel: defaultModel}
}

// Get returns nil, nil when the appointment has no assessment yet.
func (s *Service) Get(ctx context.Context, appointmentID string) (*Assessment, error) {
	if appointmentID == "" {
		return nil, apierror.Invalid("appointment id is required")
	}
	a, err := s.repo.Get(ctx, appointmentID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return a, err
}

func (s *Service) Save(ctx context.Context, a *Assessment) error {
	a.AppointmentID = strings.TrimSpace(a.AppointmentID)
	if err := validate(a); err != nil {
		return err
	}
	if a.AssessmentID == "" {
		a.AssessmentID = AssessmentIDFor(a.AppointmentID)
	}
	if a.ModelVersion == "" {
		a.ModelVersion = s.defaultModel
	}
	if a.ContributingFactors == nil {
		a.ContributingFactors = []string{}
	}
	if err := s.repo.Upsert(ctx, a); err != nil {
		return fmt.Errorf("save risk assessment: %w", err)
	}
	return nil
}

func validate(a *Assessment) error {
	if a.AppointmentID == "" {
		return apierror.Invalid("appointment_id is required")
	}
	if a.RiskScore < 0 || a.RiskScore > 100 {
		return apierror.Invalid("risk_score must be between 0 and 100, got %d", a.RiskScore)
	}
	if !validBadges[a.RiskBadge] {
		return apierror.Invalid("invalid risk_badge: %q", a.RiskBadge)
	}
	if a.PredictedShowProbability < 0 || a.PredictedShowProbability > 1 {
		return apierror.Invalid("predicted_show_probability must be between 0 and 1, got %g", a.PredictedShowProbability)
	}
	if c := a.VirtualConfidence; c != nil && (*c < 0 || *c > 1) {
		return apierror.Invalid("virtual_confidence must be between 0 and 1, got %g", *c)
	}
	return nil
}
