// Package agents hosts the model-backed scheduling assistants: no-show risk
// scoring, virtual-visit eligibility, outreach campaigns, waitlist analysis
// and the daily briefing. Every model call is forced through a single tool
// and recorded in the audit log.
package agents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulse/pulse/internal/domain/audit"
	"github.com/pulse/pulse/internal/domain/risk"
	"github.com/pulse/pulse/internal/domain/scheduling"
	"github.com/pulse/pulse/internal/platform/jobs"
	"github.com/pulse/pulse/internal/platform/llm"
	"github.com/pulse/pulse/pkg/apierror"
)

// SchedulingReader is the read side of the scheduling service used by the agents.
type SchedulingReader interface {
	GetProvider(ctx context.Context, id string) (*scheduling.Provider, error)
	GetAppointment(ctx context.Context, id string) (*scheduling.Appointment, error)
	ListAppointments(ctx context.Context, f scheduling.AppointmentFilter) ([]*scheduling.AppointmentView, error)
	GetPatientWithHistory(ctx context.Context, id string) (*scheduling.Patient, error)
	GetWeather(ctx context.Context, date, zipCode string) (*scheduling.Weather, error)
	ListWaitlist(ctx context.Context, providerID string) ([]*scheduling.WaitlistEntry, error)
}

type AssessmentSaver interface {
	Save(ctx context.Context, a *risk.Assessment) error
}

type AuditRecorder interface {
	Record(e *audit.Entry)
}

type Config struct {
	DefaultModel string
	// Concurrency bounds the appointments scored at once by a bulk job.
	Concurrency int
	// JobTimeout bounds a whole background job.
	JobTimeout time.Duration
}

type Service struct {
	llm         llm.Client
	sched       SchedulingReader
	assessments AssessmentSaver
	audit       AuditRecorder
	jobs        jobs.Store
	cfg         Config
	logger      zerolog.Logger
	now         func() time.Time

	// background jobs run under base and are cancelled by Shutdown
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(client llm.Client, sched SchedulingReader, assessments AssessmentSaver,
	rec AuditRecorder, store jobs.Store, cfg Config, logger zerolog.Logger) *Service {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = llm.ModelGPT5Nano
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &Service{
		llm:         client,
		sched:       sched,
		assessments: assessments,
		audit:       rec,
		jobs:        store,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		base:        base,
		cancel:      cancel,
	}
}

// Shutdown cancels running background jobs and waits for them to stop or for
// ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// model resolves a requested model name. Unknown names are a validation error.
func (s *Service) model(name string) (llm.Model, error) {
	m, err := llm.LookupModel(name, s.cfg.DefaultModel)
	if errors.Is(err, llm.ErrUnknownModel) {
		return llm.Model{}, apierror.Invalid("unknown model %q, expected one of %v", name, llm.Models())
	}
	return m, err
}

// call is one forced-tool model request plus its audit context.
type call struct {
	agent         string
	model         llm.Model
	promptName    string
	promptData    any
	tool          llm.Tool
	appointmentID string
	patientID     string
}

// invoke renders the prompts, calls the model, decodes the tool arguments into
// out and records an audit entry. Failed calls are recorded with status error
// and zero usage, and the error is returned unchanged.
func (s *Service) invoke(ctx context.Context, c call, out any) error {
	system, user, err := prompt(c.promptName, c.promptData)
	if err != nil {
		return err
	}

	start := s.now()
	res, err := s.llm.CallTool(ctx, llm.Request{Model: c.model, System: system, User: user, Tool: c.tool})
	if err == nil && res.ToolName != c.tool.Name {
		err = fmt.Errorf("%w: expected tool %s, got %q", llm.ErrInvalidResponse, c.tool.Name, res.ToolName)
	}
	if err == nil {
		err = res.Decode(out)
	}
	end := s.now()

	e := &audit.Entry{
		LogID:         audit.NewLogID(),
		RequestID:     audit.NewRequestID(),
		AgentType:     c.agent,
		Timestamp:     end.UTC(),
		LatencyMs:     end.Sub(start).Milliseconds(),
		Model:         c.model.Name,
		Status:        audit.StatusSuccess,
		AppointmentID: optional(c.appointmentID),
		PatientID:     optional(c.patientID),
	}
	if err != nil {
		e.Status = audit.StatusError
		msg := err.Error()
		e.ErrorMessage = &msg
	} else {
		e.InputTokens = res.Usage.InputTokens
		e.OutputTokens = res.Usage.OutputTokens
		e.TotalTokens = res.Usage.TotalTokens
		e.EstimatedCostUSD = audit.EstimateCost(res.Usage.InputTokens, res.Usage.OutputTokens)
	}
	s.audit.Record(e)
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func validateDate(v string) error {
	if v == "" {
		return apierror.Invalid("date is required")
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return apierror.Invalid("date must be YYYY-MM-DD, got %q", v)
	}
	return nil
}

const dateLayout = "2006-01-02"
