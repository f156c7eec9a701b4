package audit

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockRepo struct {
	mu      sync.Mutex
	entries []*Entry
	err     error
}

func (m *mockRepo) Insert(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]*Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Entry
	for _, e := range m.entries {
		if f.AgentType != "" && e.AgentType != f.AgentType {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (m *mockRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newEntry(agent, status string) *Entry {
	return &Entry{
		RequestID:    NewRequestID(),
		AgentType:    agent,
		Model:        "gpt-5-nano",
		Status:       status,
		InputTokens:  1000,
		OutputTokens: 200,
		TotalTokens:  1200,
	}
}

func TestEstimateCost(t *testing.T) {
	got := EstimateCost(1_000_000, 1_000_000)
	if math.Abs(got-12.5) > 1e-9 {
		t.Errorf("expected 12.50, got %f", got)
	}
	got = EstimateCost(2000, 500)
	if math.Abs(got-0.01) > 1e-9 {
		t.Errorf("expected 0.01, got %f", got)
	}
	if EstimateCost(0, 0) != 0 {
		t.Error("expected zero cost for zero tokens")
	}
}

func TestService_Save_FillsDefaults(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	fixed := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	e := newEntry(AgentRiskScorer, StatusSuccess)
	if err := svc.Save(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(e.LogID, "log_") {
		t.Errorf("expected generated log id, got %q", e.LogID)
	}
	if !e.Timestamp.Equal(fixed) {
		t.Errorf("expected timestamp %v, got %v", fixed, e.Timestamp)
	}
	if repo.count() != 1 {
		t.Errorf("expected 1 stored entry, got %d", repo.count())
	}
}

func TestService_Save_Validation(t *testing.T) {
	svc := NewService(&mockRepo{})
	tests := []struct {
		name   string
		mutate func(e *Entry)
	}{
		{"request id", func(e *Entry) { e.RequestID = "" }},
		{"agent type", func(e *Entry) { e.AgentType = "scheduler_bot" }},
		{"status", func(e *Entry) { e.Status = "ok" }},
		{"model", func(e *Entry) { e.Model = "" }},
		{"negative tokens", func(e *Entry) { e.InputTokens = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEntry(AgentDailySummary, StatusSuccess)
			tt.mutate(e)
			if err := svc.Save(context.Background(), e); !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_List_FiltersAndOrder(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, agent := range []string{AgentRiskScorer, AgentRiskScorer, AgentDailySummary} {
		e := newEntry(agent, StatusSuccess)
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		svc.Save(context.Background(), e)
	}
	failed := newEntry(AgentRiskScorer, StatusError)
	failed.Timestamp = base.Add(time.Hour)
	svc.Save(context.Background(), failed)

	items, total, err := svc.List(context.Background(), Filter{AgentType: AgentRiskScorer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 risk_scorer entries, got %d/%d", len(items), total)
	}
	if items[0].Status != StatusError {
		t.Errorf("expected newest entry first, got %+v", items[0])
	}

	items, _, _ = svc.List(context.Background(), Filter{Status: StatusError})
	if len(items) != 1 {
		t.Errorf("expected 1 error entry, got %d", len(items))
	}
}

func TestService_List_DefaultLimit(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	for i := 0; i < 120; i++ {
		svc.Save(context.Background(), newEntry(AgentRiskScorer, StatusSuccess))
	}
	items, total, err := svc.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 100 || total != 120 {
		t.Errorf("expected 100 of 120, got %d of %d", len(items), total)
	}
}

func TestService_List_BadFilter(t *testing.T) {
	svc := NewService(&mockRepo{})
	if _, _, err := svc.List(context.Background(), Filter{Status: "done"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
