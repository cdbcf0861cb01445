package excel

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"manifest-relay/internal/model"
	"manifest-relay/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// Sheet is one decoded worksheet, rows in sheet order.
type Sheet struct {
	Name string
	Rows []model.Row
}

type Workbook struct {
	Sheets []Sheet
}

func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// Parser reads manifest workbooks. Everything above HeaderRow is title
// material, HeaderRow holds column names, and the final data row is the
// daily total which is discarded.
type Parser struct {
	headerRow int
}

func NewParser(headerRow int) *Parser {
	if headerRow < 1 {
		headerRow = 1
	}
	return &Parser{headerRow: headerRow}
}

func (p *Parser) Parse(ctx context.Context, data []byte) (*Workbook, error) {
	if len(data) == 0 {
		return nil, errors.NewDecodeError(fmt.Errorf("empty file"))
	}

	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewDecodeError(err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.FormatError{Message: "workbook has no sheets"}
	}

	wb := &Workbook{Sheets: make([]Sheet, 0, len(sheets))}
	for _, name := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Raw values keep times unformatted; the cell type decides whether
		// they become numbers.
		rows, err := file.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, errors.NewDecodeError(fmt.Errorf("sheet %q: %w", name, err))
		}

		wb.Sheets = append(wb.Sheets, Sheet{
			Name: name,
			Rows: p.extractRows(rows, numericCells(file, name)),
		})
	}

	return wb, nil
}

// numericCells reports whether the cell at 0-based (col, row) is stored as a
// number. Numbers carry no type attribute or "n"; shared, inline and formula
// strings, dates, booleans and errors are text.
func numericCells(file *excelize.File, sheet string) func(col, row int) bool {
	return func(col, row int) bool {
		cell, err := excelize.CoordinatesToCellName(col+1, row+1)
		if err != nil {
			return false
		}
		typ, err := file.GetCellType(sheet, cell)
		if err != nil {
			return false
		}
		return typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber
	}
}

func (p *Parser) extractRows(rows [][]string, numeric func(col, row int) bool) []model.Row {
	if len(rows) < p.headerRow {
		return nil
	}

	header := headerNames(rows[p.headerRow-1])

	var out []model.Row
	for i, raw := range rows[p.headerRow:] {
		if isBlank(raw) {
			continue
		}
		out = append(out, parseRow(raw, header, p.headerRow+i, numeric))
	}

	if len(out) == 0 {
		return nil
	}
	return out[:len(out)-1]
}

func parseRow(raw []string, header []string, rowIdx int, numeric func(col, row int) bool) model.Row {
	row := make(model.Row, len(header))
	for i, col := range header {
		if col == "" {
			continue
		}
		switch {
		case i >= len(raw) || strings.TrimSpace(raw[i]) == "":
			row[col] = model.Empty
		case numeric(i, rowIdx):
			row[col] = model.NumberCell(raw[i])
		default:
			row[col] = model.Text(raw[i])
		}
	}
	return row
}

// headerNames trims column names and disambiguates repeats as name_1, name_2.
func headerNames(cells []string) []string {
	seen := make(map[string]int, len(cells))
	names := make([]string, len(cells))
	for i, cell := range cells {
		name := strings.TrimSpace(cell)
		if name == "" {
			continue
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
