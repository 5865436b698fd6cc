package planilla

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/yurifrl/planillas/pkg/csv"
	"github.com/yurifrl/planillas/pkg/models"
)

const sheetName = "Sheet1"

// ContentTypeXLSX is the media type of WriteXLSX output.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX writes one row per planilla below a bold header row.
func WriteXLSX(w io.Writer, columns []string, records []models.Planilla) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if len(columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		f.SetCellStyle(sheetName, "A1", last, style)
	}

	for r, p := range records {
		for c, name := range columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheetName, cell, p.Get(name))
		}
	}

	for i, name := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len([]rune(name)) + 4)
		if width < 12 {
			width = 12
		}
		f.SetColWidth(sheetName, col, col, width)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

// WriteCSV writes the planillas accepted by filter as CSV.
func WriteCSV(w io.Writer, columns []string, records []models.Planilla, filter csv.FilterFunc[models.Planilla]) error {
	data, err := csv.Create(columns, records, filter)
	if err != nil {
		return fmt.Errorf("failed to render csv: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ByNIT keeps the planillas of one contributor.
func ByNIT(nit string) csv.FilterFunc[models.Planilla] {
	return func(p models.Planilla) bool {
		return p.Get(NITField) == nit
	}
}

// NITField is the header field holding the contributor's identification.
const NITField = "No. Identificación Aportante"
