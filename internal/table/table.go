package table

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Options controls how raw instrument exports are turned into a cell grid.
type Options struct {
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t'.
	Delimiter rune
	// Encoding of CSV input: "auto", "utf-8" or "iso-8859-1".
	Encoding string
	// DecimalSeparator used by numeric cells. If 0, '.' is assumed.
	DecimalSeparator rune
	// Sheet selects an XLSX worksheet by name. Empty means the first sheet.
	Sheet string
}

// DefaultOptions returns the settings used for lab instrument exports.
func DefaultOptions() Options {
	return Options{Encoding: "auto", DecimalSeparator: '.'}
}

// naTokens are cell values treated as missing, matching what spreadsheet
// tooling writes for empty or undefined results.
var naTokens = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// RawTable is an immutable grid of cell strings addressed by 0-based
// (row, col). It carries no header row: row 0 is the first line of the file.
type RawTable struct {
	Name    string
	rows    [][]string
	decimal rune
}

// New builds a RawTable from rows. The rows are copied.
func New(name string, rows [][]string, opt Options) *RawTable {
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	dec := opt.DecimalSeparator
	if dec == 0 {
		dec = '.'
	}
	return &RawTable{Name: name, rows: cp, decimal: dec}
}

// Rows returns the number of rows in the grid.
func (t *RawTable) Rows() int { return len(t.rows) }

// Cols returns the number of cells in row r, or 0 when r is out of range.
func (t *RawTable) Cols(r int) int {
	if r < 0 || r >= len(t.rows) {
		return 0
	}
	return len(t.rows[r])
}

// Raw returns the untrimmed cell content; out-of-range cells read as "".
func (t *RawTable) Raw(r, c int) string {
	if r < 0 || r >= len(t.rows) || c < 0 || c >= len(t.rows[r]) {
		return ""
	}
	return t.rows[r][c]
}

// Text returns the trimmed cell content, or "" for missing cells.
func (t *RawTable) Text(r, c int) string {
	v := strings.TrimSpace(t.Raw(r, c))
	if _, na := naTokens[v]; na {
		return ""
	}
	return v
}

// Blank reports whether a cell is empty, out of range, or an NA token.
func (t *RawTable) Blank(r, c int) bool {
	return t.Text(r, c) == ""
}

// Number parses the cell as a finite float.
func (t *RawTable) Number(r, c int) (float64, bool) {
	return parseNumeric(t.Text(r, c), t.decimal)
}

// NumberOf parses a string already pulled out of the table with the table's
// decimal separator.
func (t *RawTable) NumberOf(s string) (float64, bool) {
	return parseNumeric(strings.TrimSpace(s), t.decimal)
}

// ParseNumber applies the same numeric rules as RawTable.Number to a free
// string, using '.' as the decimal separator.
func ParseNumber(s string) (float64, bool) {
	return parseNumeric(strings.TrimSpace(s), '.')
}

func parseNumeric(s string, dec rune) (float64, bool) {
	raw := strings.ReplaceAll(s, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if _, na := naTokens[raw]; na {
		return 0, false
	}
	// hex floats and digit separators are not something an instrument writes
	if strings.ContainsAny(raw, "xX_") {
		return 0, false
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, " ", "")
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Read parses data as XLSX when the name or content says so, otherwise as CSV.
func Read(name string, data []byte, opt Options) (*RawTable, error) {
	if isXLSX(name, data) {
		return ParseXLSX(name, data, opt)
	}
	return ParseCSV(name, data, opt)
}

func isXLSX(name string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	case ".csv", ".tsv", ".txt":
		return false
	}
	return len(data) >= 4 && string(data[:4]) == "PK\x03\x04"
}
