package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseCSV reads a header-less CSV export into a RawTable. Blank lines are
// skipped, so row indexes count only lines that carry at least one field.
func ParseCSV(name string, data []byte, opt Options) (*RawTable, error) {
	text, err := decode(data, opt.Encoding)
	if err != nil {
		return nil, err
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(text)
	}
	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = delim

	var rows [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read csv %s: %w", name, err)
		}
		rows = append(rows, rec)
	}
	return New(name, rows, opt), nil
}

// decode returns UTF-8 text with any byte order mark removed. In "auto" mode
// input that is not valid UTF-8 is read as ISO-8859-1, which is what older
// plate readers on Windows emit.
func decode(data []byte, enc string) ([]byte, error) {
	var t transform.Transformer
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "auto":
		if utf8.Valid(data) {
			t = unicode.UTF8BOM.NewDecoder()
		} else {
			t = charmap.ISO8859_1.NewDecoder()
		}
	case "utf-8", "utf8":
		t = unicode.UTF8BOM.NewDecoder()
	case "iso-8859-1", "latin1", "latin-1":
		t = charmap.ISO8859_1.NewDecoder()
	default:
		return nil, fmt.Errorf("unsupported encoding: %s (use auto, utf-8 or iso-8859-1)", enc)
	}
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", enc, err)
	}
	return out, nil
}

// sniffDelimiter picks the candidate that splits the most lines into the same
// number of fields. Exports pad every row to the sheet width, so the real
// delimiter shows a stable per-line count while a decimal comma does not.
func sniffDelimiter(text []byte) rune {
	candidates := []rune{',', ';', '\t'}
	lines := strings.Split(string(text), "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}
	best, bestScore := ',', 0
	for _, c := range candidates {
		counts := map[int]int{}
		for _, ln := range lines {
			if strings.TrimSpace(ln) == "" {
				continue
			}
			if n := strings.Count(ln, string(c)); n > 0 {
				counts[n]++
			}
		}
		score := 0
		for _, v := range counts {
			if v > score {
				score = v
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}
