package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulse/pulse/internal/domain/audit"
	"github.com/pulse/pulse/internal/domain/risk"
	"github.com/pulse/pulse/internal/domain/scheduling"
	"github.com/pulse/pulse/internal/platform/jobs"
	"github.com/pulse/pulse/internal/platform/llm"
)

var errUpstream = errors.New("upstream returned 500")

var defaultResponses = map[string]string{
	toolRiskAssessment: `{"risk_score":72.4,"risk_badge":"High","primary_risk_factor":"30% no-show rate",
		"secondary_risk_factor":"Rain with public transport","contributing_factors":["Long lead time"],
		"predicted_show_probability":0.41}`,
	toolVirtualEligibility: `{"virtual_eligible":true,"virtual_reason":"Stable hypertension follow-up suits a video visit.","confidence":0.86}`,
	toolBulkCampaigns: `{"campaigns":[{"category":"low","touchpoints":[{"timing":"1 day before",
		"messages":{"sms":"See you tomorrow","email":{"subject":"Reminder","body":"Dear patient"},"ehr_notification":"Reminder"}}]}]}`,
	toolWaitlistAnalysis: `{"priority_patients":[
		{"waitlist_id":"WL002","patient_name":"Dan Cho","priority_score":91,"urgency_level":"Critical","wait_time_days":99,
		 "recommended_action":"Call today","clinical_summary":"Chest pain","chief_complaint":"Chest pain","provider_preference":"Dr. Smith"},
		{"waitlist_id":"WL001","patient_name":"Cara Lee","priority_score":62,"urgency_level":"Medium","wait_time_days":99,
		 "recommended_action":"Offer next slot","clinical_summary":"Back pain","chief_complaint":"Back pain","provider_preference":"Any"}],
		"summary":"Two patients waiting.","recommendations":["Call Dan first"]}`,
	toolDailySummary: `{"executive_summary":"Three visits tomorrow.","key_insights":["one high risk","one virtual","two gaps"],"recommendations":["Call APT001","Offer video"]}`,
}

type fakeLLM struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	// failOn fails any call whose user prompt contains it
	failOn    string
	wrongTool bool
	delay     time.Duration
	requests  []llm.Request

	inflight    int32
	maxInflight int32
}

func newFakeLLM() *fakeLLM {
	responses := make(map[string]string, len(defaultResponses))
	for k, v := range defaultResponses {
		responses[k] = v
	}
	return &fakeLLM{responses: responses, errs: map[string]error{}}
}

func (f *fakeLLM) CallTool(ctx context.Context, req llm.Request) (*llm.Result, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		cur := atomic.LoadInt32(&f.maxInflight)
		if n <= cur || atomic.CompareAndSwapInt32(&f.maxInflight, cur, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := f.errs[req.Tool.Name]; err != nil {
		return nil, err
	}
	if f.failOn != "" && strings.Contains(req.User, f.failOn) {
		return nil, errUpstream
	}
	name := req.Tool.Name
	if f.wrongTool {
		name = "some_other_tool"
	}
	return &llm.Result{
		ToolName:  name,
		Arguments: json.RawMessage(f.responses[req.Tool.Name]),
		Usage:     llm.Usage{InputTokens: 1000, OutputTokens: 200, TotalTokens: 1200},
	}, nil
}

func (f *fakeLLM) requestsFor(tool string) []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []llm.Request
	for _, r := range f.requests {
		if r.Tool.Name == tool {
			out = append(out, r)
		}
	}
	return out
}

type fakeScheduling struct {
	providers map[string]*scheduling.Provider
	patients  map[string]*scheduling.Patient
	appts     map[string]*scheduling.AppointmentView
	weather   map[string]*scheduling.Weather
	waitlist  []*scheduling.WaitlistEntry
}

func (f *fakeScheduling) GetProvider(_ context.Context, id string) (*scheduling.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", id, scheduling.ErrNotFound)
	}
	return p, nil
}

func (f *fakeScheduling) GetAppointment(_ context.Context, id string) (*scheduling.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", id, scheduling.ErrNotFound)
	}
	cp := a.Appointment
	return &cp, nil
}

func (f *fakeScheduling) ListAppointments(_ context.Context, flt scheduling.AppointmentFilter) ([]*scheduling.AppointmentView, error) {
	var out []*scheduling.AppointmentView
	for _, a := range f.appts {
		if flt.Date != "" && a.ScheduledTime.Format(dateLayout) != flt.Date {
			continue
		}
		if flt.ProviderID != "" && a.ProviderID != flt.ProviderID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeScheduling) GetPatientWithHistory(_ context.Context, id string) (*scheduling.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, scheduling.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeScheduling) GetWeather(_ context.Context, date, zip string) (*scheduling.Weather, error) {
	return f.weather[date+"/"+zip], nil
}

func (f *fakeScheduling) ListWaitlist(_ context.Context, providerID string) ([]*scheduling.WaitlistEntry, error) {
	return f.waitlist, nil
}

type fakeAssessments struct {
	mu    sync.Mutex
	saved map[string]*risk.Assessment
}

func (f *fakeAssessments) Save(_ context.Context, a *risk.Assessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[a.AppointmentID] = a
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (f *fakeRecorder) Record(e *audit.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeRecorder) byAgent(agent string) []*audit.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*audit.Entry
	for _, e := range f.entries {
		if e.AgentType == agent {
			out = append(out, e)
		}
	}
	return out
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

var (
	testDay = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	testNow = time.Date(2025, 3, 13, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc         *Service
	llm         *fakeLLM
	sched       *fakeScheduling
	assessments *fakeAssessments
	audit       *fakeRecorder
	jobs        *jobs.MemoryStore
}

func newFixture() *fixture {
	booked := testDay.AddDate(0, 0, -20)
	sched := &fakeScheduling{
		providers: map[string]*scheduling.Provider{
			"PROV001": {ProviderID: "PROV001", Name: "Dr. Smith", Specialty: "Family Medicine", MaxDailySlots: 16},
		},
		patients: map[string]*scheduling.Patient{
			"PAT001": {PatientID: "PAT001", Name: "Ada Park", Age: 54, DistanceMiles: 12.5, ZipCode: "10001",
				CommuteType: "public_transport",
				History:     &scheduling.PatientHistory{PatientID: "PAT001", TotalAppointments: 10, Completed: 7, NoShows: 3, NoShowRate: 0.3}},
			"PAT002": {PatientID: "PAT002", Name: "Ben Ruiz", Age: 31, DistanceMiles: 3, ZipCode: "10002", CommuteType: "car"},
			"PAT003": {PatientID: "PAT003", Name: "Cleo Diaz", Age: 67, DistanceMiles: 28, ZipCode: "10001", CommuteType: "bike", PreferredVirtual: true},
		},
		appts: map[string]*scheduling.AppointmentView{
			"APT001": {Appointment: scheduling.Appointment{AppointmentID: "APT001", PatientID: "PAT001", ProviderID: "PROV001",
				ScheduledTime: testDay.Add(9 * time.Hour), BookedAt: &booked, AppointmentType: "Follow-up",
				ChiefComplaint: strPtr("Hypertension check"), Status: scheduling.StatusScheduled},
				PatientName: "Ada Park", RiskColumns: scheduling.RiskColumns{RiskBadge: strPtr("High")}},
			"APT002": {Appointment: scheduling.Appointment{AppointmentID: "APT002", PatientID: "PAT002", ProviderID: "PROV001",
				ScheduledTime: testDay.Add(10 * time.Hour), AppointmentType: "Annual Physical", Status: scheduling.StatusScheduled},
				PatientName: "Ben Ruiz", RiskColumns: scheduling.RiskColumns{RiskBadge: strPtr("Low"), VirtualEligible: boolPtr(true)}},
			"APT003": {Appointment: scheduling.Appointment{AppointmentID: "APT003", PatientID: "PAT003", ProviderID: "PROV001",
				ScheduledTime: testDay.Add(13 * time.Hour), AppointmentType: "Follow-up",
				ChiefComplaint: strPtr("Medication refill"), Status: scheduling.StatusScheduled},
				PatientName: "Cleo Diaz"},
		},
		weather: map[string]*scheduling.Weather{
			"2025-03-14/10001": {WeatherID: "W1", Date: "2025-03-14", ZipCode: "10001", Condition: WeatherRainy, TemperatureF: 48, PrecipitationPct: 80},
		},
		waitlist: []*scheduling.WaitlistEntry{
			{WaitlistID: "WL001", PatientName: "Cara Lee", ChiefComplaint: "Back pain", AddedAt: testNow.AddDate(0, 0, -10), Status: scheduling.WaitlistWaiting},
			{WaitlistID: "WL002", PatientName: "Dan Cho", ChiefComplaint: "Chest pain", AddedAt: testNow.AddDate(0, 0, -45), Status: scheduling.WaitlistWaiting},
		},
	}

	f := &fixture{
		llm:         newFakeLLM(),
		sched:       sched,
		assessments: &fakeAssessments{saved: map[string]*risk.Assessment{}},
		audit:       &fakeRecorder{},
		jobs:        jobs.NewMemoryStore(time.Hour),
	}
	f.svc = NewService(f.llm, f.sched, f.assessments, f.audit, f.jobs,
		Config{DefaultModel: llm.ModelGPT5Nano, Concurrency: 2, JobTimeout: time.Minute}, zerolog.Nop())
	f.svc.now = func() time.Time { return testNow }
	return f
}
