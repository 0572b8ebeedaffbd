package rollup

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxSheetNameLen is the Excel sheet name limit.
const maxSheetNameLen = 31

// WriteSummaryWorkbook writes an Excel workbook with one sheet per
// rolled-up file, each holding that file's daily rows plus a per-student
// total block.
func WriteSummaryWorkbook(path string, summaries []FileSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool)
	for i, summary := range summaries {
		sheet := sheetName(summary.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}
		if err := writeSheet(f, sheet, summary); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, summary FileSummary) error {
	header := []interface{}{"student_id", "student_name", "date", "page_views"}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}

	totals := make(map[int64]int64)
	names := make(map[int64]string)
	var order []int64

	rowNum := 2
	for _, row := range summary.Rows {
		values := []interface{}{row.StudentID, row.StudentName, row.Date, row.PageViews}
		if err := setRow(f, sheet, rowNum, values); err != nil {
			return err
		}
		rowNum++

		if _, seen := totals[row.StudentID]; !seen {
			order = append(order, row.StudentID)
			names[row.StudentID] = row.StudentName
		}
		totals[row.StudentID] += row.PageViews
	}

	// Per-student total block below the data, separated by a blank row.
	rowNum++
	if err := setRow(f, sheet, rowNum, []interface{}{"student_id", "student_name", "total_page_views"}); err != nil {
		return err
	}
	rowNum++
	for _, id := range order {
		if err := setRow(f, sheet, rowNum, []interface{}{id, names[id], totals[id]}); err != nil {
			return err
		}
		rowNum++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// sheetName derives a valid, unique sheet name from a CSV file name.
func sheetName(fileName string, index int, used map[string]bool) string {
	name := strings.TrimSuffix(fileName, ".csv")
	for _, forbidden := range []string{":", "\\", "/", "?", "*", "[", "]"} {
		name = strings.ReplaceAll(name, forbidden, "_")
	}
	if name == "" {
		name = fmt.Sprintf("sheet%d", index+1)
	}
	if len(name) > maxSheetNameLen {
		name = name[:maxSheetNameLen]
	}
	if used[name] {
		suffix := fmt.Sprintf("~%d", index+1)
		if len(name)+len(suffix) > maxSheetNameLen {
			name = name[:maxSheetNameLen-len(suffix)]
		}
		name += suffix
	}
	used[name] = true
	return name
}
