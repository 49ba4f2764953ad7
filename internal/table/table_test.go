package table

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestParseCSV_GridAddressing(t *testing.T) {
	data := "a,b,c\n,,\n1,2.5,x\n"
	tb, err := ParseCSV("grid.csv", []byte(data), DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tb.Rows() != 3 {
		t.Fatalf("rows = %d, want 3", tb.Rows())
	}
	if got := tb.Text(0, 1); got != "b" {
		t.Fatalf("Text(0,1) = %q", got)
	}
	if !tb.Blank(1, 0) || !tb.Blank(10, 10) || !tb.Blank(-1, 0) {
		t.Fatalf("expected blank cells for empty and out-of-range addresses")
	}
	if v, ok := tb.Number(2, 1); !ok || v != 2.5 {
		t.Fatalf("Number(2,1) = %v,%v", v, ok)
	}
	if _, ok := tb.Number(2, 2); ok {
		t.Fatalf("expected non-numeric for 'x'")
	}
}

func TestBlank_NATokens(t *testing.T) {
	rows := [][]string{{"NA", "#N/A", " nan ", "NULL", "None", "<NA>", "0", "n/a"}}
	tb := New("na", rows, DefaultOptions())
	for c := 0; c < 8; c++ {
		want := c != 6
		if got := tb.Blank(0, c); got != want {
			t.Errorf("Blank(0,%d) [%q] = %v, want %v", c, rows[0][c], got, want)
		}
	}
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		dec  rune
		want float64
		ok   bool
	}{
		{"1.5", '.', 1.5, true},
		{" -2e-3 ", '.', -0.002, true},
		{"3,25", ',', 3.25, true},
		{"1.000,5", ',', 1000.5, true},
		{"1,5", '.', 0, false},
		{"inf", '.', 0, false},
		{"NaN", '.', 0, false},
		{"0x1p-2", '.', 0, false},
		{"12 mM", '.', 0, false},
		{"", '.', 0, false},
	}
	for _, tc := range cases {
		got, ok := parseNumeric(tc.in, tc.dec)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("parseNumeric(%q,%q) = %v,%v want %v,%v", tc.in, tc.dec, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSniffDelimiter(t *testing.T) {
	cases := map[string]rune{
		"a,b,c\n1,2,3\n":                 ',',
		"a;b;c\n1,5;2,5;3\n4,1;5;6,0\n":  ';',
		"a\tb\tc\n1\t2\t3\n":             '\t',
		"single column\nno delimiter\n": ',',
	}
	for in, want := range cases {
		if got := sniffDelimiter([]byte(in)); got != want {
			t.Errorf("sniffDelimiter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCSV_SemicolonWithDecimalComma(t *testing.T) {
	opt := DefaultOptions()
	opt.DecimalSeparator = ','
	tb, err := ParseCSV("eu.csv", []byte("x;y\n0,5;1,25\n"), opt)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, ok := tb.Number(1, 1); !ok || v != 1.25 {
		t.Fatalf("Number(1,1) = %v,%v", v, ok)
	}
}

func TestDecode_BOMAndLatin1(t *testing.T) {
	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Row,1\n")...)
	tb, err := ParseCSV("bom.csv", bom, DefaultOptions())
	if err != nil {
		t.Fatalf("parse bom: %v", err)
	}
	if got := tb.Text(0, 0); got != "Row" {
		t.Fatalf("BOM not stripped: %q", got)
	}

	// "(µM)" in ISO-8859-1: µ is 0xB5
	latin := []byte{'(', 0xB5, 'M', ')', ',', '1', '\n'}
	tb, err = ParseCSV("latin.csv", latin, DefaultOptions())
	if err != nil {
		t.Fatalf("parse latin1: %v", err)
	}
	if got := tb.Text(0, 0); got != "(µM)" {
		t.Fatalf("latin1 decode = %q", got)
	}

	if _, err := ParseCSV("x.csv", []byte("a"), Options{Encoding: "ebcdic"}); err == nil {
		t.Fatalf("expected error for unsupported encoding")
	}
}

func TestRead_DispatchesOnContent(t *testing.T) {
	x := buildXLSX(t, map[string]string{"A1": "Row", "C3": "0.25"})
	tb, err := Read("upload", x, DefaultOptions())
	if err != nil {
		t.Fatalf("read xlsx: %v", err)
	}
	if tb.Text(0, 0) != "Row" {
		t.Fatalf("expected xlsx content, got %q", tb.Text(0, 0))
	}
	tb, err = Read("upload.csv", []byte("a,b\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if tb.Text(0, 1) != "b" {
		t.Fatalf("expected csv content")
	}
}

func TestParseXLSX_PlacesCellsByReference(t *testing.T) {
	x := buildXLSX(t, map[string]string{
		"B2": "(mg/mL)",
		"G3": "2.0",
		"C5": "#shared",
		"AA1": "far",
	})
	tb, err := ParseXLSX("plate.xlsx", x, DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := tb.Text(1, 1); got != "(mg/mL)" {
		t.Fatalf("B2 = %q", got)
	}
	if v, ok := tb.Number(2, 6); !ok || v != 2.0 {
		t.Fatalf("G3 = %v,%v", v, ok)
	}
	if got := tb.Text(4, 2); got != "shared text" {
		t.Fatalf("C5 shared string = %q", got)
	}
	if got := tb.Text(0, 26); got != "far" {
		t.Fatalf("AA1 = %q", got)
	}
	if !tb.Blank(3, 0) {
		t.Fatalf("row 4 should be blank")
	}
}

func TestParseXLSX_UnknownSheet(t *testing.T) {
	x := buildXLSX(t, map[string]string{"A1": "x"})
	opt := DefaultOptions()
	opt.Sheet = "Missing"
	_, err := ParseXLSX("plate.xlsx", x, opt)
	if err == nil || !strings.Contains(err.Error(), "Available sheets: Data") {
		t.Fatalf("expected sheet-not-found error, got %v", err)
	}
}

func TestNormalizeRelPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
	}
	for _, tt := range tests {
		if got := normalizeRelPath(tt.in); got != tt.want {
			t.Errorf("normalizeRelPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColIndexFromRef(t *testing.T) {
	for ref, want := range map[string]int{"A1": 0, "C12": 2, "Z3": 25, "AA1": 26, "ab7": 27} {
		if got := colIndexFromRef(ref); got != want {
			t.Errorf("colIndexFromRef(%q) = %d, want %d", ref, got, want)
		}
	}
}

// buildXLSX writes a minimal one-sheet workbook named "Data". A value of
// "#shared" is stored as a shared string reading "shared text"; numeric
// values are written as plain <v> cells and anything else as inline strings.
func buildXLSX(t *testing.T, cells map[string]string) []byte {
	t.Helper()
	byRow := map[int][]string{}
	maxRow := 0
	for ref := range cells {
		r := 0
		for _, c := range ref {
			if c >= '0' && c <= '9' {
				r = r*10 + int(c-'0')
			}
		}
		byRow[r] = append(byRow[r], ref)
		if r > maxRow {
			maxRow = r
		}
	}
	var sheet strings.Builder
	sheet.WriteString(`<?xml version="1.0" encoding="UTF-8"?><worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)
	for r := 1; r <= maxRow; r++ {
		refs, ok := byRow[r]
		if !ok {
			continue
		}
		sheet.WriteString(`<row r="` + itoa(r) + `">`)
		for _, ref := range refs {
			v := cells[ref]
			switch {
			case v == "#shared":
				sheet.WriteString(`<c r="` + ref + `" t="s"><v>0</v></c>`)
			case isNumber(v):
				sheet.WriteString(`<c r="` + ref + `"><v>` + v + `</v></c>`)
			default:
				sheet.WriteString(`<c r="` + ref + `" t="inlineStr"><is><t>` + v + `</t></is></c>`)
			}
		}
		sheet.WriteString(`</row>`)
	}
	sheet.WriteString(`</sheetData></worksheet>`)

	files := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0" encoding="UTF-8"?><workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets><sheet name="Data" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="/xl/worksheets/sheet1.xml"/></Relationships>`,
		"xl/sharedStrings.xml": `<?xml version="1.0" encoding="UTF-8"?><sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><si><r><t>shared </t></r><r><t>text</t></r></si></sst>`,
		"xl/worksheets/sheet1.xml": sheet.String(),
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func isNumber(s string) bool {
	_, ok := ParseNumber(s)
	return ok
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}
