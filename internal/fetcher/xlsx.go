package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX returns every row of one worksheet, header included. sheet is
// matched case-insensitively; empty selects the first sheet. Trailing empty
// cells are trimmed from each row.
func ReadXLSX(path, sheet string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sh, err := findSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sh.Rows))
	for _, row := range sh.Rows {
		rows = append(rows, rowValues(row))
	}
	return rows, nil
}

func findSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	if name == "" {
		return f.Sheets[0], nil
	}

	names := make([]string, 0, len(f.Sheets))
	for _, sh := range f.Sheets {
		if strings.EqualFold(strings.TrimSpace(sh.Name), strings.TrimSpace(name)) {
			return sh, nil
		}
		names = append(names, sh.Name)
	}
	return nil, eris.Errorf("xlsx: sheet %q not found (have %s)", name, strings.Join(names, ", "))
}

func rowValues(row *xlsx.Row) []string {
	end := len(row.Cells)
	for end > 0 && row.Cells[end-1].String() == "" {
		end--
	}
	vals := make([]string, end)
	for i := range end {
		vals[i] = row.Cells[i].String()
	}
	return vals
}
