// Package aportantes loads the contributor spreadsheet and answers NIT and
// geography queries over it.
package aportantes

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// NITColumn must be present in every contributor spreadsheet.
const NITColumn = "NIT"

// xls sheets cannot hold more rows than this.
const maxXLSRows = 65536

var (
	ErrMissingNIT  = errors.New("el archivo no contiene la columna 'NIT'")
	ErrUnsupported = errors.New("unsupported spreadsheet format")
)

// Table is the first sheet of a contributor spreadsheet: a header row and
// the data rows padded to the header width.
type Table struct {
	Columns []string
	Rows    [][]string

	nit  int
	dept int
	mun  int
}

// Load reads an .xlsx or .xls spreadsheet. The extension of filename picks
// the reader.
func Load(data []byte, filename string) (*Table, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rows, err = readXLSX(data)
	case ".xls":
		rows, err = readXLS(data)
	default:
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}
	return NewTable(rows)
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read xlsx rows: %w", err)
	}
	return rows, nil
}

func readXLS(data []byte) ([][]string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "cp1252")
	if err != nil {
		return nil, fmt.Errorf("error creating workbook: %w", err)
	}
	return workbook.ReadAllCells(maxXLSRows), nil
}

// NewTable builds a Table from raw rows, the first of which is the header.
// Blank rows are dropped.
func NewTable(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrMissingNIT
	}
	t := &Table{nit: -1, dept: -1, mun: -1}
	for _, h := range rows[0] {
		t.Columns = append(t.Columns, strings.TrimSpace(h))
	}
	for i, c := range t.Columns {
		if c == NITColumn {
			t.nit = i
			break
		}
	}
	if t.nit < 0 {
		return nil, ErrMissingNIT
	}

	for _, raw := range rows[1:] {
		row := make([]string, len(t.Columns))
		blank := true
		for i := 0; i < len(row) && i < len(raw); i++ {
			row[i] = strings.TrimSpace(raw[i])
			if row[i] != "" {
				blank = false
			}
		}
		if !blank {
			t.Rows = append(t.Rows, row)
		}
	}

	t.dept = t.resolve(departamentoColumn)
	t.mun = t.resolve(municipioColumn)
	return t, nil
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// DepartamentoColumn returns the resolved department column name.
func (t *Table) DepartamentoColumn() (string, bool) {
	if t.dept < 0 {
		return "", false
	}
	return t.Columns[t.dept], true
}

// MunicipioColumn returns the resolved municipality column name.
func (t *Table) MunicipioColumn() (string, bool) {
	if t.mun < 0 {
		return "", false
	}
	return t.Columns[t.mun], true
}

func (t *Table) hasValues(col int) bool {
	for _, r := range t.Rows {
		if r[col] != "" {
			return true
		}
	}
	return false
}

// Record returns row i keyed by column name.
func (t *Table) Record(i int) map[string]string {
	m := make(map[string]string, len(t.Columns))
	for j, c := range t.Columns {
		m[c] = t.Rows[i][j]
	}
	return m
}
