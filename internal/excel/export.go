package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/violin-academy/academy-back/internal/models"
)

// FeeRow is a fee with its student name and resolved optional fields.
type FeeRow struct {
	Student string
	Fee     models.FeeRecord
	Details models.FeeDetails
}

type AttendanceRow struct {
	Student    string
	Attendance models.Attendance
}

const (
	feesSheet       = "Fees"
	attendanceSheet = "Attendance"
)

var (
	feeHeader        = []interface{}{"Student", "Billing date", "Amount", "Status", "Level", "Payment method", "Payment date", "Notes"}
	attendanceHeader = []interface{}{"Student", "Date", "Status", "Notes"}
)

// WriteFees writes rows as a single-sheet workbook to w.
func WriteFees(w io.Writer, rows []FeeRow) error {
	data := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		paid := ""
		if r.Details.PaymentDate != nil {
			paid = r.Details.PaymentDate.String()
		}
		data = append(data, []interface{}{
			r.Student,
			r.Fee.Date.String(),
			r.Fee.Amount,
			string(r.Fee.Status),
			r.Details.Level,
			r.Details.PaymentMethod,
			paid,
			r.Details.Notes,
		})
	}
	return writeSheet(w, feesSheet, feeHeader, data)
}

func WriteAttendance(w io.Writer, rows []AttendanceRow) error {
	data := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		data = append(data, []interface{}{
			r.Student,
			r.Attendance.Date.String(),
			string(r.Attendance.Status),
			r.Attendance.Notes,
		})
	}
	return writeSheet(w, attendanceSheet, attendanceHeader, data)
}

func writeSheet(w io.Writer, sheetName string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return err
	}

	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, row); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}
