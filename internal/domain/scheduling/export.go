package scheduling

import (
	"bytes"
	"fmt"

	"github.com/pulse/pulse/internal/platform/reporting"
)

var exportColumns = []reporting.Column{
	{Header: "Appointment ID", Width: 16},
	{Header: "Scheduled Time", Width: 18},
	{Header: "Patient", Width: 22},
	{Header: "Provider", Width: 20},
	{Header: "Type", Width: 14},
	{Header: "Status", Width: 12},
	{Header: "Commute", Width: 16},
	{Header: "Risk Score", Width: 10},
	{Header: "Risk Badge", Width: 10},
	{Header: "Primary Risk Factor", Width: 40},
	{Header: "Show Probability", Width: 14},
	{Header: "Weather", Width: 10},
	{Header: "Virtual Eligible", Width: 14},
	{Header: "Virtual Reason", Width: 40},
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// ExportAppointments renders the appointment list as an XLSX workbook.
func ExportAppointments(items []*AppointmentView) (*bytes.Buffer, error) {
	rows := make([][]any, 0, len(items))
	for _, a := range items {
		rows = append(rows, []any{
			a.AppointmentID,
			a.ScheduledTime.Format("2006-01-02 15:04"),
			a.PatientName,
			a.ProviderName,
			a.AppointmentType,
			a.Status,
			a.CommuteType,
			deref(a.RiskScore),
			deref(a.RiskBadge),
			deref(a.PrimaryRiskFactor),
			deref(a.PredictedShowProbability),
			deref(a.WeatherCondition),
			deref(a.VirtualEligible),
			deref(a.VirtualReason),
		})
	}

	buf, err := reporting.Workbook(reporting.Sheet{
		Name:    "Appointments",
		Columns: exportColumns,
		Rows:    rows,
	})
	if err != nil {
		return nil, fmt.Errorf("export appointments: %w", err)
	}
	return buf, nil
}
