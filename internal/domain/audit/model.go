package audit

import (
	"time"

	"github.com/pulse/pulse/pkg/pagination"
)

// Agent types recorded in the audit log.
const (
	AgentRiskScorer         = "risk_scorer"
	AgentVirtualEligibility = "virtual_eligibility"
	AgentOutreachSequencer  = "outreach_sequencer"
	AgentWaitlistMatcher    = "waitlist_matcher"
	AgentDailySummary       = "daily_summary"
	AgentWaitlistAnalyzer   = "waitlist_analyzer"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"
)

var validAgentTypes = map[string]bool{
	AgentRiskScorer: true, AgentVirtualEligibility: true, AgentOutreachSequencer: true,
	AgentWaitlistMatcher: true, AgentDailySummary: true, AgentWaitlistAnalyzer: true,
}

var validStatuses = map[string]bool{StatusSuccess: true, StatusError: true, StatusPartial: true}

// Entry is one model call.
type Entry struct {
	LogID            string    `db:"log_id" json:"log_id"`
	RequestID        string    `db:"request_id" json:"request_id"`
	AgentType        string    `db:"agent_type" json:"agent_type"`
	Timestamp        time.Time `db:"timestamp" json:"timestamp"`
	LatencyMs        int64     `db:"latency_ms" json:"latency_ms"`
	Model            string    `db:"model" json:"model"`
	InputTokens      int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens     int       `db:"output_tokens" json:"output_tokens"`
	TotalTokens      int       `db:"total_tokens" json:"total_tokens"`
	EstimatedCostUSD float64   `db:"estimated_cost_usd" json:"estimated_cost_usd"`
	Status           string    `db:"status" json:"status"`
	ErrorMessage     *string   `db:"error_message" json:"error_message"`
	AppointmentID    *string   `db:"appointment_id" json:"appointment_id"`
	PatientID        *string   `db:"patient_id" json:"patient_id"`
}

type Filter struct {
	AgentType string
	Status    string
	pagination.Params
}

// ListBounds are the page sizes accepted by List.
var ListBounds = pagination.Bounds{Default: 100, Max: 1000}

// Per-million-token prices used for cost estimates, whatever the model.
const (
	inputCostPerMillion  = 2.50
	outputCostPerMillion = 10.00
)

// EstimateCost returns the USD cost of a call.
func EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*inputCostPerMillion + float64(outputTokens)/1e6*outputCostPerMillion
}
