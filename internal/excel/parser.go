package excel

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/validate"
)

// RosterRow is one student read from an admission spreadsheet.
type RosterRow struct {
	Row        int          `json:"row"`
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone,omitempty"`
	Level      models.Level `json:"level,omitempty"`
	ParentName string       `json:"parent_name,omitempty"`
}

type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type Roster struct {
	Students []RosterRow  `json:"students"`
	Skipped  []SkippedRow `json:"skipped"`
}

// header names accepted for each roster column, lower-cased
var rosterHeaders = map[string][]string{
	"name":   {"name", "student", "student name"},
	"email":  {"email", "e-mail"},
	"phone":  {"phone", "phone number"},
	"level":  {"level"},
	"parent": {"parent", "parent name", "guardian"},
}

// ParseRoster reads students from the first sheet of an xlsx workbook. The
// first row is the header; Name and Email columns are required.
func ParseRoster(r io.Reader, log *slog.Logger) (Roster, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Roster{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Roster{}, fmt.Errorf("workbook has no sheets")
	}
	sheetName := sheets[0]

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return Roster{}, fmt.Errorf("error reading sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return Roster{}, fmt.Errorf("sheet %s is empty", sheetName)
	}

	cols := headerColumns(rows[0])
	if _, ok := cols["name"]; !ok {
		return Roster{}, fmt.Errorf("sheet %s: missing Name column", sheetName)
	}
	if _, ok := cols["email"]; !ok {
		return Roster{}, fmt.Errorf("sheet %s: missing Email column", sheetName)
	}

	roster := Roster{Students: []RosterRow{}, Skipped: []SkippedRow{}}
	seen := make(map[string]bool)

	for rowIndex, row := range rows[1:] {
		line := rowIndex + 2
		cell := func(key string) string {
			i, ok := cols[key]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		student := RosterRow{
			Row:        line,
			Name:       cell("name"),
			Email:      strings.ToLower(cell("email")),
			Phone:      cell("phone"),
			ParentName: cell("parent"),
		}
		if student.Name == "" && student.Email == "" {
			continue
		}

		skip := func(reason string) {
			roster.Skipped = append(roster.Skipped, SkippedRow{Row: line, Reason: reason})
			log.Debug("skipped roster row", "sheet", sheetName, "row", line, "reason", reason)
		}

		if student.Name == "" {
			skip("missing name")
			continue
		}
		if err := validate.Var(student.Email, "required,email"); err != nil {
			skip(fmt.Sprintf("invalid email %q", student.Email))
			continue
		}
		if seen[student.Email] {
			skip("duplicate email " + student.Email)
			continue
		}

		level, ok := parseLevel(cell("level"))
		if !ok {
			skip(fmt.Sprintf("unknown level %q", cell("level")))
			continue
		}
		student.Level = level

		seen[student.Email] = true
		roster.Students = append(roster.Students, student)
	}

	log.Info("parsed roster", "sheet", sheetName, "students", len(roster.Students), "skipped", len(roster.Skipped))
	return roster, nil
}

func headerColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, title := range header {
		title = strings.ToLower(strings.TrimSpace(title))
		for key, names := range rosterHeaders {
			if _, taken := cols[key]; taken {
				continue
			}
			for _, n := range names {
				if title == n {
					cols[key] = i
				}
			}
		}
	}
	return cols
}

func parseLevel(s string) (models.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "beginner", "beg":
		return models.LevelBeginner, true
	case "intermediate", "int":
		return models.LevelIntermediate, true
	case "advanced", "adv":
		return models.LevelAdvanced, true
	}
	return "", false
}
