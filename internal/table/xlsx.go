package table

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

type xlsxWorkbook struct {
	Sheets []struct {
		Name    string `xml:"name,attr"`
		SheetID int    `xml:"sheetId,attr"`
		RID     string `xml:"id,attr"`
	} `xml:"sheets>sheet"`
}

type xlsxRelationships struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// xlsxText covers both plain <t> and rich-text runs <r><t>.
type xlsxText struct {
	T    string `xml:"t"`
	Runs []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

func (x xlsxText) String() string {
	var b strings.Builder
	b.WriteString(x.T)
	for _, r := range x.Runs {
		b.WriteString(r.T)
	}
	return b.String()
}

type xlsxSharedStrings struct {
	Items []xlsxText `xml:"si"`
}

type xlsxCell struct {
	Ref    string   `xml:"r,attr"`
	Type   string   `xml:"t,attr"`
	Value  string   `xml:"v"`
	Inline xlsxText `xml:"is"`
}

type xlsxWorksheet struct {
	Rows []struct {
		Index int        `xml:"r,attr"`
		Cells []xlsxCell `xml:"c"`
	} `xml:"sheetData>row"`
}

// ParseXLSX reads one worksheet of an .xlsx export into a RawTable. Cells are
// placed by their A1 reference so sparse sheets keep the same coordinates the
// CSV export of that sheet would have.
func ParseXLSX(name string, data []byte, opt Options) (*RawTable, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	target, err := resolveSheet(zr, opt.Sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	var shared xlsxSharedStrings
	if b := readZipFile(zr, "xl/sharedStrings.xml"); len(b) > 0 {
		if err := xml.Unmarshal(b, &shared); err != nil {
			return nil, fmt.Errorf("parse shared strings: %w", err)
		}
	}
	sheetXML := readZipFile(zr, target)
	if sheetXML == nil {
		return nil, fmt.Errorf("%s: worksheet %s missing from archive", name, target)
	}
	var ws xlsxWorksheet
	if err := xml.Unmarshal(sheetXML, &ws); err != nil {
		return nil, fmt.Errorf("parse worksheet: %w", err)
	}

	var rows [][]string
	next := 0
	for _, row := range ws.Rows {
		ri := next
		if row.Index > 0 {
			ri = row.Index - 1
		}
		next = ri + 1
		for len(rows) <= ri {
			rows = append(rows, nil)
		}
		col := 0
		for _, c := range row.Cells {
			ci := col
			if c.Ref != "" {
				ci = colIndexFromRef(c.Ref)
			}
			col = ci + 1
			if ci < 0 {
				continue
			}
			for len(rows[ri]) <= ci {
				rows[ri] = append(rows[ri], "")
			}
			rows[ri][ci] = cellText(c, shared.Items)
		}
	}
	return New(name, rows, opt), nil
}

func cellText(c xlsxCell, shared []xlsxText) string {
	switch c.Type {
	case "s":
		idx, ok := atoi(c.Value)
		if !ok || idx >= len(shared) {
			return ""
		}
		return shared[idx].String()
	case "inlineStr":
		return c.Inline.String()
	case "b":
		if c.Value == "1" {
			return "TRUE"
		}
		return "FALSE"
	case "e":
		// #DIV/0!, #N/A and friends read as missing
		return ""
	}
	return c.Value
}

// resolveSheet maps a sheet name (or the first sheet) to its ZIP entry path.
func resolveSheet(zr *zip.Reader, sheet string) (string, error) {
	var wb xlsxWorkbook
	if b := readZipFile(zr, "xl/workbook.xml"); len(b) > 0 {
		if err := xml.Unmarshal(b, &wb); err != nil {
			return "", fmt.Errorf("parse workbook: %w", err)
		}
	}
	var rels xlsxRelationships
	if b := readZipFile(zr, "xl/_rels/workbook.xml.rels"); len(b) > 0 {
		if err := xml.Unmarshal(b, &rels); err != nil {
			return "", fmt.Errorf("parse workbook relationships: %w", err)
		}
	}
	targets := map[string]string{}
	for _, r := range rels.Rels {
		targets[r.ID] = r.Target
	}
	if sheet != "" {
		names := make([]string, 0, len(wb.Sheets))
		for _, s := range wb.Sheets {
			if strings.EqualFold(s.Name, sheet) {
				if t, ok := targets[s.RID]; ok {
					return normalizeRelPath(t), nil
				}
				return fmt.Sprintf("xl/worksheets/sheet%d.xml", s.SheetID), nil
			}
			names = append(names, s.Name)
		}
		return "", fmt.Errorf("sheet '%s' not found. Available sheets: %s", sheet, strings.Join(names, ", "))
	}
	if len(wb.Sheets) > 0 {
		if t, ok := targets[wb.Sheets[0].RID]; ok {
			return normalizeRelPath(t), nil
		}
	}
	return "xl/worksheets/sheet1.xml", nil
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

// colIndexFromRef converts the column letters of an A1 reference to a 0-based index.
func colIndexFromRef(ref string) int {
	idx := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
	}
	return idx - 1
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// normalizeRelPath turns a relationship target ("/xl/worksheets/sheet1.xml",
// "worksheets/sheet1.xml") into the ZIP entry name.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
