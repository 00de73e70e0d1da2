// Package export writes joined tables to CSV or XLSX files.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/corpmatch/internal/model"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Matches"

// WriteTable writes t to path, as XLSX when the extension is .xlsx and as
// CSV otherwise. NULL values are written as empty cells.
func WriteTable(path string, t *model.Table) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return WriteXLSX(path, t)
	}
	return WriteCSV(path, t)
}

// WriteCSV writes t as a comma-separated file with a header row.
func WriteCSV(path string, t *model.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, row := range t.Rows {
		if err := w.Write(row.Strings()); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush")
	}

	return eris.Wrap(f.Close(), "export: close file")
}

// WriteXLSX writes t to a single-sheet workbook.
func WriteXLSX(path string, t *model.Table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addRow(sheet, t.Header)
	for _, row := range t.Rows {
		addRow(sheet, row.Strings())
	}

	return eris.Wrap(f.Save(path), "export: save workbook")
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
