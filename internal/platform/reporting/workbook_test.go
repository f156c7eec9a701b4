package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbook_WritesHeaderAndRows(t *testing.T) {
	buf, err := Workbook(Sheet{
		Name:    "Appointments",
		Columns: []Column{{Header: "Appointment", Width: 14}, {Header: "Risk Score"}, {Header: "Badge"}},
		Rows: [][]any{
			{"APT_001", 72, "High"},
			{"APT_002", nil, nil},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Appointments"}, f.GetSheetList())

	rows, err := f.GetRows("Appointments")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Appointment", "Risk Score", "Badge"}, rows[0])
	assert.Equal(t, []string{"APT_001", "72", "High"}, rows[1])
	assert.Equal(t, []string{"APT_002"}, rows[2])
}

func TestWorkbook_RowWidthMismatch(t *testing.T) {
	_, err := Workbook(Sheet{
		Name:    "Appointments",
		Columns: []Column{{Header: "A"}, {Header: "B"}},
		Rows:    [][]any{{"only one"}},
	})
	assert.Error(t, err)
}

func TestWorkbook_NoSheets(t *testing.T) {
	_, err := Workbook()
	assert.Error(t, err)
}
