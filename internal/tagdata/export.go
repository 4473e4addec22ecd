package tagdata

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{"Tag Number", "Description", "Category", "Area", "Discipline", "Version", "Last Synced"}

// WriteContainerWorkbook renders a container's tags as an XLSX workbook with
// one sheet named after the revision code.
func WriteContainerWorkbook(w io.Writer, container *ContainerDTO) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := fmt.Sprintf("Rev %s", container.RevisionCode)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, tag := range container.Tags {
		// Row 1 holds the headers
		row := i + 2
		values := []interface{}{
			tag.TagNumber,
			stringOrEmpty(tag.Description),
			stringOrEmpty(tag.Category),
			stringOrEmpty(tag.Area),
			stringOrEmpty(tag.Discipline),
			tag.Version,
			"",
		}
		if tag.LastSyncedAt != nil {
			values[6] = tag.LastSyncedAt.Format("2006-01-02 15:04")
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write tag %s: %w", tag.TagNumber, err)
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 22); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
