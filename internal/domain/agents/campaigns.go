package agents

import (
	"context"
	"time"

	"github.com/pulse/pulse/internal/domain/audit"
	"github.com/pulse/pulse/pkg/apierror"
)

type CampaignRequest struct {
	Date             string   `json:"date"`
	ProviderID       string   `json:"provider_id"`
	WeatherCondition string   `json:"weather_condition,omitempty"`
	WeatherTempF     *float64 `json:"weather_temp_f,omitempty"`
	Model            string   `json:"model,omitempty"`
}

type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Messages struct {
	SMS             string `json:"sms"`
	Email           Email  `json:"email"`
	EHRNotification string `json:"ehr_notification"`
}

type Touchpoint struct {
	Timing   string   `json:"timing"`
	Messages Messages `json:"messages"`
}

type Campaign struct {
	Category    string       `json:"category"`
	Touchpoints []Touchpoint `json:"touchpoints"`
}

type CampaignResult struct {
	Campaigns []Campaign `json:"campaigns"`
}

type campaignPrompt struct {
	DateLong         string
	DateShort        string
	ProviderName     string
	WeatherCondition string
	WeatherTempF     *float64
}

// appointmentDates renders a YYYY-MM-DD date in the long and short forms used
// in patient messages. The date is a calendar date and never shifts with the
// server's time zone.
func appointmentDates(date string) (long, short string, err error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", "", apierror.Invalid("date must be YYYY-MM-DD, got %q", date)
	}
	return d.Format("Monday, January 2, 2006"), d.Format("Jan 2"), nil
}

// GenerateCampaigns writes outreach copy for every risk category for one
// provider-day.
func (s *Service) GenerateCampaigns(ctx context.Context, req CampaignRequest) (*CampaignResult, error) {
	if req.ProviderID == "" {
		return nil, apierror.Invalid("provider_id is required")
	}
	long, short, err := appointmentDates(req.Date)
	if err != nil {
		return nil, err
	}
	m, err := s.model(req.Model)
	if err != nil {
		return nil, err
	}
	prov, err := s.sched.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}

	var out CampaignResult
	err = s.invoke(ctx, call{
		agent:      audit.AgentOutreachSequencer,
		model:      m,
		promptName: "campaigns",
		promptData: campaignPrompt{
			DateLong:         long,
			DateShort:        short,
			ProviderName:     prov.Name,
			WeatherCondition: req.WeatherCondition,
			WeatherTempF:     req.WeatherTempF,
		},
		tool: bulkCampaignsTool,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
