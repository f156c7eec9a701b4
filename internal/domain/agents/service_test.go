package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse/pulse/internal/domain/audit"
	"github.com/pulse/pulse/internal/domain/scheduling"
	"github.com/pulse/pulse/internal/platform/llm"
	"github.com/pulse/pulse/pkg/apierror"
)

func TestScoreRisk(t *testing.T) {
	f := newFixture()
	p := f.sched.patients["PAT001"]
	appt := f.sched.appts["APT001"].Appointment

	res, err := f.svc.ScoreRisk(context.Background(), p, &appt, "")
	require.NoError(t, err)
	assert.Equal(t, 72.4, res.RiskScore)
	assert.Equal(t, "High", res.RiskBadge)
	require.NotNil(t, res.WeatherCondition)
	assert.Equal(t, WeatherRainy, *res.WeatherCondition)
	assert.Equal(t, 15, res.WeatherImpactScore)

	reqs := f.llm.requestsFor(toolRiskAssessment)
	require.Len(t, reqs, 1)
	assert.Equal(t, llm.ModelGPT5Nano, reqs[0].Model.Name)
	assert.Contains(t, reqs[0].User, "Ada Park")

	entries := f.audit.byAgent(audit.AgentRiskScorer)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, audit.StatusSuccess, e.Status)
	assert.Equal(t, 1000, e.InputTokens)
	assert.Equal(t, 200, e.OutputTokens)
	assert.Equal(t, 1200, e.TotalTokens)
	assert.InDelta(t, audit.EstimateCost(1000, 200), e.EstimatedCostUSD, 1e-9)
	require.NotNil(t, e.AppointmentID)
	assert.Equal(t, "APT001", *e.AppointmentID)
	require.NotNil(t, e.PatientID)
	assert.Equal(t, "PAT001", *e.PatientID)
	assert.Nil(t, e.ErrorMessage)
}

func TestScoreRisk_NoWeather(t *testing.T) {
	f := newFixture()
	p := f.sched.patients["PAT002"]
	appt := f.sched.appts["APT002"].Appointment

	res, err := f.svc.ScoreRisk(context.Background(), p, &appt, "")
	require.NoError(t, err)
	assert.Nil(t, res.WeatherCondition)
	assert.Equal(t, 0, res.WeatherImpactScore)
}

func TestScoreRisk_EveningVisitUsesClinicDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	f := newFixture()
	p := f.sched.patients["PAT001"]
	appt := f.sched.appts["APT001"].Appointment
	// already March 15 in UTC
	appt.ScheduledTime = time.Date(2025, 3, 14, 21, 0, 0, 0, ny)

	res, err := f.svc.ScoreRisk(context.Background(), p, &appt, "")
	require.NoError(t, err)
	require.NotNil(t, res.WeatherCondition, "weather should be the March 14 record")
	assert.Equal(t, WeatherRainy, *res.WeatherCondition)
}

func TestScoreRisk_ModelError(t *testing.T) {
	f := newFixture()
	f.llm.errs[toolRiskAssessment] = errUpstream
	p := f.sched.patients["PAT001"]
	appt := f.sched.appts["APT001"].Appointment

	_, err := f.svc.ScoreRisk(context.Background(), p, &appt, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUpstream))

	entries := f.audit.byAgent(audit.AgentRiskScorer)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusError, entries[0].Status)
	assert.Zero(t, entries[0].TotalTokens)
	assert.Zero(t, entries[0].EstimatedCostUSD)
	require.NotNil(t, entries[0].ErrorMessage)
	assert.Contains(t, *entries[0].ErrorMessage, "upstream")
}

func TestScoreRisk_WrongTool(t *testing.T) {
	f := newFixture()
	f.llm.wrongTool = true
	p := f.sched.patients["PAT001"]
	appt := f.sched.appts["APT001"].Appointment

	_, err := f.svc.ScoreRisk(context.Background(), p, &appt, "")
	assert.ErrorIs(t, err, llm.ErrInvalidResponse)
	assert.Equal(t, audit.StatusError, f.audit.byAgent(audit.AgentRiskScorer)[0].Status)
}

func TestScoreRisk_MalformedArguments(t *testing.T) {
	f := newFixture()
	f.llm.responses[toolRiskAssessment] = `{"risk_score":"high"}`
	p := f.sched.patients["PAT001"]
	appt := f.sched.appts["APT001"].Appointment

	_, err := f.svc.ScoreRisk(context.Background(), p, &appt, "")
	assert.ErrorIs(t, err, llm.ErrInvalidResponse)
}

func TestScoreRisk_UnknownModel(t *testing.T) {
	f := newFixture()
	p := f.sched.patients["PAT001"]
	appt := f.sched.appts["APT001"].Appointment

	_, err := f.svc.ScoreRisk(context.Background(), p, &appt, "gpt-2")
	assert.ErrorIs(t, err, apierror.ErrValidation)
	assert.Empty(t, f.llm.requestsFor(toolRiskAssessment))
}

func TestScoreRisk_ExplicitModel(t *testing.T) {
	f := newFixture()
	p := f.sched.patients["PAT001"]
	appt := f.sched.appts["APT001"].Appointment

	_, err := f.svc.ScoreRisk(context.Background(), p, &appt, llm.ModelGPT41)
	require.NoError(t, err)
	assert.Equal(t, llm.ModelGPT41, f.llm.requestsFor(toolRiskAssessment)[0].Model.Name)
	assert.Equal(t, llm.ModelGPT41, f.audit.byAgent(audit.AgentRiskScorer)[0].Model)
}

func TestScoreAppointment(t *testing.T) {
	f := newFixture()

	a, err := f.svc.ScoreAppointment(context.Background(), "APT001", "")
	require.NoError(t, err)
	assert.Equal(t, "ASSESS_APT001", a.AssessmentID)
	assert.Equal(t, 72, a.RiskScore)
	assert.Equal(t, "High", a.RiskBadge)
	assert.Equal(t, llm.ModelGPT5Nano, a.ModelVersion)
	assert.True(t, a.VirtualEligible)
	require.NotNil(t, a.VirtualConfidence)
	assert.Equal(t, 0.86, *a.VirtualConfidence)
	require.NotNil(t, a.SecondaryRiskFactor)
	assert.Equal(t, []string{"Long lead time"}, a.ContributingFactors)

	assert.Same(t, a, f.assessments.saved["APT001"])
	assert.Len(t, f.audit.byAgent(audit.AgentRiskScorer), 1)
	assert.Len(t, f.audit.byAgent(audit.AgentVirtualEligibility), 1)
}

func TestScoreAppointment_ClampsScore(t *testing.T) {
	f := newFixture()
	f.llm.responses[toolRiskAssessment] = `{"risk_score":140,"risk_badge":"High","primary_risk_factor":"x","predicted_show_probability":0.1}`

	a, err := f.svc.ScoreAppointment(context.Background(), "APT001", "")
	require.NoError(t, err)
	assert.Equal(t, 100, a.RiskScore)
	assert.Nil(t, a.SecondaryRiskFactor)
}

func TestScoreAppointment_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ScoreAppointment(context.Background(), "APT999", "")
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
	assert.Empty(t, f.audit.entries)
}

func TestScoreAppointment_VirtualFailureSkipsSave(t *testing.T) {
	f := newFixture()
	f.llm.errs[toolVirtualEligibility] = errUpstream

	_, err := f.svc.ScoreAppointment(context.Background(), "APT001", "")
	assert.ErrorIs(t, err, errUpstream)
	assert.Empty(t, f.assessments.saved)
}

func TestAssessVirtualEligibility(t *testing.T) {
	f := newFixture()

	res, err := f.svc.AssessVirtualEligibility(context.Background(), "APT003", "")
	require.NoError(t, err)
	assert.True(t, res.VirtualEligible)
	assert.Equal(t, 0.86, res.Confidence)

	reqs := f.llm.requestsFor(toolVirtualEligibility)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].User, "Medication refill")
	assert.Contains(t, reqs[0].User, "Yes (prefers virtual)")
	assert.Contains(t, reqs[0].User, "Condition: Rainy")
}

func TestGenerateCampaigns(t *testing.T) {
	f := newFixture()
	temp := 31.0

	res, err := f.svc.GenerateCampaigns(context.Background(), CampaignRequest{
		Date: "2025-03-14", ProviderID: "PROV001", WeatherCondition: WeatherSnowy, WeatherTempF: &temp,
	})
	require.NoError(t, err)
	require.Len(t, res.Campaigns, 1)
	assert.Equal(t, "low", res.Campaigns[0].Category)
	assert.Equal(t, "Reminder", res.Campaigns[0].Touchpoints[0].Messages.Email.Subject)

	reqs := f.llm.requestsFor(toolBulkCampaigns)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].User, "Friday, March 14, 2025")
	assert.Contains(t, reqs[0].User, "Mar 14")
	assert.Contains(t, reqs[0].User, "Dr. Smith")
	assert.Contains(t, reqs[0].User, "Snowy")
	assert.Len(t, f.audit.byAgent(audit.AgentOutreachSequencer), 1)
}

func TestGenerateCampaigns_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.GenerateCampaigns(ctx, CampaignRequest{Date: "2025-03-14"})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	_, err = f.svc.GenerateCampaigns(ctx, CampaignRequest{Date: "tomorrow", ProviderID: "PROV001"})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	_, err = f.svc.GenerateCampaigns(ctx, CampaignRequest{Date: "2025-03-14", ProviderID: "PROV404"})
	assert.ErrorIs(t, err, scheduling.ErrNotFound)
}

func TestAnalyzeWaitlist(t *testing.T) {
	f := newFixture()

	res, err := f.svc.AnalyzeWaitlist(context.Background(), WaitlistRequest{ProviderID: "PROV001"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalPatients)
	require.Len(t, res.PriorityPatients, 2)

	assert.Equal(t, "WL002", res.PriorityPatients[0].WaitlistID)
	assert.Equal(t, 1, res.PriorityPatients[0].Ranking)
	assert.Equal(t, float64(45), res.PriorityPatients[0].WaitTimeDays)
	assert.Equal(t, "WL001", res.PriorityPatients[1].WaitlistID)
	assert.Equal(t, 2, res.PriorityPatients[1].Ranking)
	assert.Equal(t, float64(10), res.PriorityPatients[1].WaitTimeDays)

	reqs := f.llm.requestsFor(toolWaitlistAnalysis)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].User, `"wait_time_days": 45`)
	assert.Len(t, f.audit.byAgent(audit.AgentWaitlistAnalyzer), 1)
}

func TestAnalyzeWaitlist_Empty(t *testing.T) {
	f := newFixture()
	f.sched.waitlist = nil

	res, err := f.svc.AnalyzeWaitlist(context.Background(), WaitlistRequest{ProviderID: "PROV001"})
	require.NoError(t, err)
	assert.Zero(t, res.TotalPatients)
	assert.NotNil(t, res.PriorityPatients)
	assert.Empty(t, f.llm.requestsFor(toolWaitlistAnalysis))
	assert.Empty(t, f.audit.entries)
}

func TestAnalyzeWaitlist_RequiresProvider(t *testing.T) {
	f := newFixture()
	_, err := f.svc.AnalyzeWaitlist(context.Background(), WaitlistRequest{})
	assert.ErrorIs(t, err, apierror.ErrValidation)
}

func TestDailySummary(t *testing.T) {
	f := newFixture()

	sum, err := f.svc.DailySummary(context.Background(), SummaryRequest{Date: "2025-03-14", ProviderID: "PROV001"})
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalAppointments)
	assert.Equal(t, 1, sum.HighRiskCount)
	assert.Equal(t, 1, sum.LowRiskCount)
	assert.Equal(t, 1, sum.VirtualEligibleCount)
	assert.Equal(t, 1, sum.HighRiskPatients)
	assert.Equal(t, 1, sum.NewPatientOpportunities)
	assert.Equal(t, 2, sum.WaitlistCount)
	assert.Len(t, sum.BreakHours, 2)
	assert.Equal(t, 1.5, sum.TotalScheduledHours)
	assert.Equal(t, 4.5, sum.TotalAvailableHours)
	assert.InDelta(t, 33.33, sum.UtilizationPercentage, 0.01)

	require.Len(t, sum.TopWaitlistMatches, 2)
	assert.Equal(t, "WL002", sum.TopWaitlistMatches[0].WaitlistID)

	require.Len(t, sum.PatientSummaries, 3)
	assert.Equal(t, "Three visits tomorrow.", sum.ExecutiveSummary)
	assert.Len(t, sum.KeyInsights, 3)
	assert.Len(t, sum.Recommendations, 2)

	reqs := f.llm.requestsFor(toolDailySummary)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].User, "Total appointments: 3")
	assert.Contains(t, reqs[0].User, "Gaps of 30 minutes or more: 2")
	assert.Len(t, f.audit.byAgent(audit.AgentDailySummary), 1)
}

func TestDailySummary_WaitlistFailureTolerated(t *testing.T) {
	f := newFixture()
	f.llm.errs[toolWaitlistAnalysis] = errUpstream

	sum, err := f.svc.DailySummary(context.Background(), SummaryRequest{Date: "2025-03-14", ProviderID: "PROV001"})
	require.NoError(t, err)
	assert.Empty(t, sum.TopWaitlistMatches)
	assert.Equal(t, 2, sum.WaitlistCount)
	assert.Equal(t, audit.StatusError, f.audit.byAgent(audit.AgentWaitlistAnalyzer)[0].Status)
}

func TestDailySummary_NarrativeFailure(t *testing.T) {
	f := newFixture()
	f.llm.errs[toolDailySummary] = errUpstream

	_, err := f.svc.DailySummary(context.Background(), SummaryRequest{Date: "2025-03-14", ProviderID: "PROV001"})
	assert.ErrorIs(t, err, errUpstream)
}

func TestDailySummary_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.DailySummary(ctx, SummaryRequest{ProviderID: "PROV001"})
	assert.ErrorIs(t, err, apierror.ErrValidation)

	_, err = f.svc.DailySummary(ctx, SummaryRequest{Date: "2025-03-14"})
	assert.ErrorIs(t, err, apierror.ErrValidation)
}
