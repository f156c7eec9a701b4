package risk

import "time"

// Risk badges as produced by the risk scorer.
const (
	BadgeLow    = "Low"
	BadgeMedium = "Medium"
	BadgeHigh   = "High"
)

var validBadges = map[string]bool{BadgeLow: true, BadgeMedium: true, BadgeHigh: true}

// Assessment is the model-produced no-show and virtual-eligibility record for
// one appointment. There is at most one per appointment.
type Assessment struct {
	AssessmentID             string    `db:"assessment_id" json:"assessment_id"`
	AppointmentID            string    `db:"appointment_id" json:"appointment_id"`
	RiskScore                int       `db:"risk_score" json:"risk_score"`
	RiskBadge                string    `db:"risk_badge" json:"risk_badge"`
	PrimaryRiskFactor        string    `db:"primary_risk_factor" json:"primary_risk_factor"`
	SecondaryRiskFactor      *string   `db:"secondary_risk_factor" json:"secondary_risk_factor"`
	ContributingFactors      []string  `db:"contributing_factors" json:"contributing_factors"`
	PredictedShowProbability float64   `db:"predicted_show_probability" json:"predicted_show_probability"`
	WeatherCondition         *string   `db:"weather_condition" json:"weather_condition"`
	WeatherImpactScore       int       `db:"weather_impact_score" json:"weather_impact_score"`
	VirtualEligible          bool      `db:"virtual_eligible" json:"virtual_eligible"`
	VirtualReason            *string   `db:"virtual_reason" json:"virtual_reason"`
	VirtualConfidence        *float64  `db:"virtual_confidence" json:"virtual_confidence"`
	ModelVersion             string    `db:"model_version" json:"model_version"`
	GeneratedAt              time.Time `db:"generated_at" json:"generated_at"`
}

// AssessmentIDFor is the stable id used for an appointment's assessment.
func AssessmentIDFor(appointmentID string) string {
	return "ASSESS_" + appointmentID
}
