package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulse/pulse/pkg/apierror"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewLogID returns a fresh audit log id.
func NewLogID() string { return "log_" + uuid.NewString() }

// NewRequestID returns a fresh id for one agent invocation.
func NewRequestID() string { return "req_" + uuid.NewString() }

// Save validates and stores an entry, filling in log_id and timestamp when
// they are missing.
func (s *Service) Save(ctx context.Context, e *Entry) error {
	if e.RequestID == "" {
		return apierror.Invalid("request_id is required")
	}
	if !validAgentTypes[e.AgentType] {
		return apierror.Invalid("invalid agent_type: %q", e.AgentType)
	}
	if !validStatuses[e.Status] {
		return apierror.Invalid("invalid status: %q", e.Status)
	}
	if e.Model == "" {
		return apierror.Invalid("model is required")
	}
	if e.LatencyMs < 0 || e.InputTokens < 0 || e.OutputTokens < 0 || e.TotalTokens < 0 || e.EstimatedCostUSD < 0 {
		return apierror.Invalid("latency, token and cost fields must not be negative")
	}

	if e.LogID == "" {
		e.LogID = NewLogID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	if f.AgentType != "" && !validAgentTypes[f.AgentType] {
		return nil, 0, apierror.Invalid("invalid agent_type: %q", f.AgentType)
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apierror.Invalid("invalid status: %q", f.Status)
	}
	if f.Limit <= 0 {
		f.Limit = ListBounds.Default
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return items, total, nil
}
