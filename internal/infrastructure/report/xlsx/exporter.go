// Package xlsx renders the per-employee status board as a spreadsheet.
package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetName   = "Statuses"
)

var header = []any{"Employee", "Email", "Department", "Status", "Comment", "Updated at"}

type Exporter struct{}

func NewExporter() Exporter {
	return Exporter{}
}

func (Exporter) Export(board domain.StatusBoard, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "F1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, s := range board.Statuses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		comment := ""
		if s.Comment != nil {
			comment = *s.Comment
		}
		row := []any{
			s.EmployeeName,
			s.EmployeeEmail,
			s.DepartmentName,
			string(s.Status),
			comment,
			s.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheetName, "A", "F", 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename suggests a download name for a document's board.
func Filename(board domain.StatusBoard) string {
	return fmt.Sprintf("status-board-%s.xlsx", board.DocumentID)
}
