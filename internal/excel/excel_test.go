package excel

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/violin-academy/academy-back/internal/models"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &row))
	}
	buf := new(bytes.Buffer)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf
}

func TestParseRoster(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Name", "Email", "Phone", "Level", "Parent"},
		{"Ana Petrova", "Ana@Example.com", "555-0101", "Beginner", "Maria Petrova"},
		{"", "", "", "", ""},
		{"No Email", "not-an-email", "", "", ""},
		{"Ana Again", "ana@example.com", "", "", ""},
		{"Liu Wei", "liu@example.com", "", "virtuoso", ""},
		{"Sam Cole", "sam@example.com", "", "adv", ""},
		{"Bob Smith", "Bob Smith <bob@example.com>", "", "", ""},
	})

	roster, err := ParseRoster(buf, discard())
	require.NoError(t, err)

	require.Len(t, roster.Students, 2)
	assert.Equal(t, RosterRow{
		Row: 2, Name: "Ana Petrova", Email: "ana@example.com", Phone: "555-0101",
		Level: models.LevelBeginner, ParentName: "Maria Petrova",
	}, roster.Students[0])
	assert.Equal(t, models.LevelAdvanced, roster.Students[1].Level)
	assert.Equal(t, 7, roster.Students[1].Row)

	require.Len(t, roster.Skipped, 4)
	assert.Equal(t, 4, roster.Skipped[0].Row)
	assert.Contains(t, roster.Skipped[1].Reason, "duplicate")
	assert.Contains(t, roster.Skipped[2].Reason, "unknown level")
	assert.Equal(t, SkippedRow{Row: 8, Reason: `invalid email "bob smith <bob@example.com>"`}, roster.Skipped[3])
}

func TestParseRosterRequiresColumns(t *testing.T) {
	buf := workbook(t, [][]interface{}{{"Student", "Phone"}, {"Ana", "555"}})
	_, err := ParseRoster(buf, discard())
	assert.ErrorContains(t, err, "missing Email column")

	_, err = ParseRoster(bytes.NewBufferString("not a workbook"), discard())
	assert.Error(t, err)
}

func TestWriteFees(t *testing.T) {
	paid := models.DateOf(2024, 3, 5)
	fee := models.FeeRecord{Amount: 120.5, Date: models.DateOf(2024, 3, 1), Status: models.FeePaid, PaymentDate: &paid}

	buf := new(bytes.Buffer)
	require.NoError(t, WriteFees(buf, []FeeRow{{Student: "Ana", Fee: fee, Details: fee.Details(models.LevelBeginner)}}))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(feesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Student", rows[0][0])
	assert.Equal(t, []string{"Ana", "2024-03-01", "120.5", "paid", "beginner", "unspecified", "2024-03-05"}, rows[1])
}

func TestWriteAttendance(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteAttendance(buf, []AttendanceRow{
		{Student: "Ana", Attendance: models.Attendance{Date: models.DateOf(2024, 3, 4), Status: models.AttendanceLate, Notes: "bus"}},
	}))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(attendanceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Ana", "2024-03-04", "late", "bus"}, rows[1])
}
