package agents

import "github.com/pulse/pulse/internal/platform/llm"

// Tool names the model is forced to call.
const (
	toolRiskAssessment     = "generate_risk_assessment"
	toolVirtualEligibility = "assess_virtual_eligibility"
	toolBulkCampaigns      = "generate_bulk_campaigns"
	toolWaitlistAnalysis   = "analyze_general_waitlist"
	toolDailySummary       = "generate_daily_summary"
)

// Campaign categories.
const (
	CategoryLow                = "low"
	CategoryMedium             = "medium"
	CategoryVirtual            = "virtual"
	CategoryNewPatient         = "new_patient"
	CategoryHighRiskVirtual    = "high_risk_virtual"
	CategoryHighRiskNonVirtual = "high_risk_non_virtual"
)

var riskAssessmentTool = llm.Tool{
	Name:        toolRiskAssessment,
	Description: "Generate a no-show risk assessment for a patient appointment",
	Parameters: llm.Object(map[string]*llm.Schema{
		"risk_score":                 llm.Number("Risk score from 0 (will show) to 100 (will no-show)", 0, 100),
		"risk_badge":                 llm.Enum("Risk category for UI display", "Low", "Medium", "High"),
		"primary_risk_factor":        llm.String(""),
		"secondary_risk_factor":      llm.String(""),
		"contributing_factors":       llm.Array("Additional risk factors", llm.String("")),
		"predicted_show_probability": llm.Number("Probability patient will show (0-1)", 0, 1),
		"recommendation":             llm.String(""),
	}, "risk_score", "risk_badge", "primary_risk_factor", "predicted_show_probability"),
}

var virtualEligibilityTool = llm.Tool{
	Name:        toolVirtualEligibility,
	Description: "Determine if an appointment can be conducted virtually",
	Parameters: llm.Object(map[string]*llm.Schema{
		"virtual_eligible": llm.Boolean("Can this appointment be virtual?"),
		"virtual_reason":   llm.String("Clinical rationale first, then supporting context (max 250 chars)"),
		"confidence":       llm.Number("Confidence in assessment", 0, 1),
	}, "virtual_eligible", "virtual_reason", "confidence"),
}

var bulkCampaignsTool = llm.Tool{
	Name:        toolBulkCampaigns,
	Description: "Generate outreach campaigns for all risk categories",
	Parameters: llm.Object(map[string]*llm.Schema{
		"campaigns": llm.Array("List of campaigns by category", llm.Object(map[string]*llm.Schema{
			"category": llm.Enum("Risk category",
				CategoryLow, CategoryMedium, CategoryVirtual, CategoryNewPatient,
				CategoryHighRiskVirtual, CategoryHighRiskNonVirtual),
			"touchpoints": llm.Array("List of touchpoints for this category", llm.Object(map[string]*llm.Schema{
				"timing": llm.String(`e.g. "1 day before"`),
				"messages": llm.Object(map[string]*llm.Schema{
					"sms": llm.String("SMS message (max 160 chars)"),
					"email": llm.Object(map[string]*llm.Schema{
						"subject": llm.String(""),
						"body":    llm.String(""),
					}, "subject", "body"),
					"ehr_notification": llm.String("Patient portal notification (max 200 chars)"),
				}, "sms", "email", "ehr_notification"),
			}, "timing", "messages")),
		}, "category", "touchpoints")),
	}, "campaigns"),
}

var waitlistAnalysisTool = llm.Tool{
	Name:        toolWaitlistAnalysis,
	Description: "Analyze entire waitlist and prioritize patients by urgency, wait time, and clinical need",
	Parameters: llm.Object(map[string]*llm.Schema{
		"priority_patients": llm.Array("Patients ranked by priority (highest to lowest)", llm.Object(map[string]*llm.Schema{
			"waitlist_id":         llm.String(""),
			"patient_name":        llm.String(""),
			"priority_score":      llm.Number("Priority score 0-100 (100 = most urgent)", 0, 100),
			"urgency_level":       llm.Enum("Urgency classification", "Critical", "High", "Medium", "Low"),
			"wait_time_days":      llm.Integer(""),
			"recommended_action":  llm.String("Specific action to take for this patient"),
			"clinical_summary":    llm.String("Why this patient is prioritized"),
			"chief_complaint":     llm.String(""),
			"provider_preference": llm.String(""),
		}, "waitlist_id", "patient_name", "priority_score", "urgency_level", "wait_time_days",
			"recommended_action", "clinical_summary", "chief_complaint", "provider_preference")),
		"summary":         llm.String("Overall summary of waitlist status (2-3 sentences)"),
		"recommendations": llm.Array("Actionable recommendations for waitlist management", llm.String("")),
	}, "priority_patients", "summary", "recommendations"),
}

var dailySummaryTool = llm.Tool{
	Name:        toolDailySummary,
	Description: "Generate a daily briefing for a doctor one day before their appointments",
	Parameters: llm.Object(map[string]*llm.Schema{
		"executive_summary": llm.String("High-level overview of the day (3-4 sentences)"),
		"key_insights":      llm.Array("3-5 key insights for the day", llm.String("")),
		"recommendations":   llm.Array("2-4 actionable recommendations", llm.String("")),
	}, "executive_summary", "key_insights", "recommendations"),
}
