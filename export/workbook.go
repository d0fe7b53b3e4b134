package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"autolog.dev/autolog/core"
	"autolog.dev/autolog/utils"
)

const (
	summarySheet  = "Summary"
	maxSheetName  = 31
	ContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout    = "2006-01-02"
	monthYearForm = "January 2006"
)

var dayHeader = []any{"Date", "Day", "Hours", "Weekend", "Edited"}

// Workbook renders a timesheet as XLSX: a summary sheet followed by one sheet
// per project with a row per day of the month.
func Workbook(record *core.Timesheet) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeSummary(f, record); err != nil {
		return nil, err
	}

	start, hasPeriod := periodStart(record.MonthYear)
	used := map[string]bool{summarySheet: true}

	for _, project := range record.Timesheets {
		name := sheetName(project.Namespace, used)
		used[name] = true

		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if err := f.SetSheetRow(name, "A1", &dayHeader); err != nil {
			return nil, fmt.Errorf("failed to write header for %s: %w", name, err)
		}

		for i, day := range project.Timesheet {
			date := fmt.Sprintf("%d", i+1)
			weekday := ""
			if hasPeriod {
				d := start.AddDate(0, 0, i)
				date = d.Format(dateLayout)
				weekday = d.Weekday().String()
			}

			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return nil, err
			}
			row := []any{date, weekday, day.Hours, day.Weekend, day.UserEdited}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return nil, fmt.Errorf("failed to write day %d for %s: %w", i+1, name, err)
			}
		}

		total, err := excelize.CoordinatesToCellName(1, len(project.Timesheet)+2)
		if err != nil {
			return nil, err
		}
		totalRow := []any{"Total", "", project.TotalHours}
		if err := f.SetSheetRow(name, total, &totalRow); err != nil {
			return nil, fmt.Errorf("failed to write total for %s: %w", name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func writeSummary(f *excelize.File, record *core.Timesheet) error {
	total := utils.Sum(record.Timesheets, func(p core.ProjectTimesheet) float64 { return p.TotalHours })

	rows := [][]any{
		{"Client", record.Client.Name},
		{"Contact", record.Client.ContactPerson},
		{"Name", record.User.Name},
		{"Email", record.User.Email},
		{"Period", record.MonthYear},
		{"Approver", record.ApproverName()},
		{"Approved", record.Approved},
		{"Total hours", total},
		{},
		{"Project", "Number", "Hours"},
	}
	// projects without logged hours are left off the summary
	billable := utils.Filter(record.Timesheets, func(p core.ProjectTimesheet) bool { return p.TotalHours > 0 })
	rows = append(rows, utils.Map(billable, func(p core.ProjectTimesheet) []any {
		return []any{p.Namespace, utils.Deref(p.ProjectNumber), p.TotalHours}
	})...)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}

func periodStart(monthYear string) (time.Time, bool) {
	t, err := time.Parse(monthYearForm, strings.TrimSpace(monthYear))
	return t, err == nil
}

// sheetName strips characters Excel rejects, truncates to 31 runes and
// de-duplicates against names already used.
func sheetName(namespace string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(namespace))
	if clean == "" {
		clean = "Project"
	}

	name := truncate(clean, maxSheetName)
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncate(clean, maxSheetName-len(suffix)) + suffix
	}
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
