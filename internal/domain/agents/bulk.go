package agents

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pulse/pulse/internal/domain/scheduling"
	"github.com/pulse/pulse/internal/platform/jobs"
	"github.com/pulse/pulse/internal/platform/llm"
)

// JobKindRiskScoring labels bulk risk scoring jobs in the progress store.
const JobKindRiskScoring = "risk_scoring"

type BulkRequest struct {
	Date       string `json:"date"`
	ProviderID string `json:"provider_id"`
	Model      string `json:"model,omitempty"`
}

func (s *Service) bulkTargets(ctx context.Context, req BulkRequest) ([]*scheduling.AppointmentView, llm.Model, error) {
	if err := validateDate(req.Date); err != nil {
		return nil, llm.Model{}, err
	}
	m, err := s.model(req.Model)
	if err != nil {
		return nil, llm.Model{}, err
	}
	appts, err := s.sched.ListAppointments(ctx, scheduling.AppointmentFilter{Date: req.Date, ProviderID: req.ProviderID})
	if err != nil {
		return nil, llm.Model{}, err
	}
	return appts, m, nil
}

// StartBulkScoring scores every appointment matching the request in the
// background and returns the initial progress record to poll.
func (s *Service) StartBulkScoring(ctx context.Context, req BulkRequest) (*jobs.Progress, error) {
	appts, m, err := s.bulkTargets(ctx, req)
	if err != nil {
		return nil, err
	}
	p, err := s.jobs.Start(ctx, JobKindRiskScoring, len(appts))
	if err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		jobCtx, cancel := context.WithTimeout(s.base, s.cfg.JobTimeout)
		defer cancel()
		s.runBulk(jobCtx, p.ID, appts, m)
	}()
	return p, nil
}

// ScoreBulk is the synchronous form of StartBulkScoring and returns the final
// progress.
func (s *Service) ScoreBulk(ctx context.Context, req BulkRequest) (*jobs.Progress, error) {
	appts, m, err := s.bulkTargets(ctx, req)
	if err != nil {
		return nil, err
	}
	p, err := s.jobs.Start(ctx, JobKindRiskScoring, len(appts))
	if err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	s.runBulk(ctx, p.ID, appts, m)
	return s.jobs.Get(context.WithoutCancel(ctx), p.ID)
}

func (s *Service) JobProgress(ctx context.Context, id string) (*jobs.Progress, error) {
	return s.jobs.Get(ctx, id)
}

// runBulk scores appointments with at most cfg.Concurrency in flight. A failed
// appointment is counted and logged; it never stops the others.
func (s *Service) runBulk(ctx context.Context, jobID string, appts []*scheduling.AppointmentView, m llm.Model) {
	// progress must be written even after ctx is cancelled
	pctx := context.WithoutCancel(ctx)
	log := s.logger.With().Str("job_id", jobID).Logger()
	log.Info().Int("total", len(appts)).Str("model", m.Name).Msg("bulk risk scoring started")

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, a := range appts {
		appt := a.Appointment
		g.Go(func() error {
			_, err := s.scoreOne(ctx, &appt, m)
			if err != nil {
				log.Warn().Err(err).Str("appointment_id", appt.AppointmentID).Msg("risk scoring failed")
			}
			if perr := s.jobs.Advance(pctx, jobID, err == nil); perr != nil {
				log.Error().Err(perr).Msg("failed to record job progress")
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := s.jobs.Finish(pctx, jobID, ctx.Err()); err != nil {
		log.Error().Err(err).Msg("failed to finish job")
	}
	log.Info().Msg("bulk risk scoring finished")
}
