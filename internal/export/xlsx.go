package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"planextract/internal/domain"
)

const sheetName = "Plans"

// WriteXLSX renders the plans of res as a single-sheet workbook. Cell text
// longer than the worksheet limit is truncated by excelize.
func WriteXLSX(out io.Writer, res *domain.Result) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}

	for r := range res.Plans {
		for c, v := range planToRow(res, &res.Plans[r]) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("xlsx row %d: %w", r+2, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "C", 18)
	_ = f.SetColWidth(sheetName, "D", "D", 12)
	_ = f.SetColWidth(sheetName, "E", "E", 36)
	_ = f.SetColWidth(sheetName, "F", "F", 80)
	_ = f.SetColWidth(sheetName, "G", "G", 40)

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
