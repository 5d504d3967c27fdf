// Package tabular reads semi-structured marketplace exports (CSV, TSV, XLSX)
// into header-keyed rows.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// MaxLeadingSkip is how many blank or separator-only lines may precede the header
var MaxLeadingSkip = 5

// MinNonEmptyCells is the noise threshold: rows with this many non-empty cells or fewer are dropped
var MinNonEmptyCells = 3

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row maps a header column name to the cell value
type Row map[string]string

// Get returns the trimmed value for column, or ""
func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// Table is a parsed file
type Table struct {
	Header    []string
	Delimiter rune
	Rows      []Row
}

// ParseError means the content could not be tokenized at all
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("file unreadable: %s: %v", e.Reason, e.Err)
	}
	return "file unreadable: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is or wraps a ParseError
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Parse reads raw file content. XLSX workbooks are recognized by their ZIP signature,
// everything else is treated as delimited text.
func Parse(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Reason: "empty input"}
	}
	if isXLSX(data) {
		return parseXLSX(data)
	}
	return parseDelimited(data)
}

func parseDelimited(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = sanitizeUTF8(data)

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	headerIdx := -1
	for i := 0; i < len(lines) && i <= MaxLeadingSkip; i++ {
		if !isSeparatorOnly(lines[i]) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, &ParseError{Reason: "no header row found"}
	}

	delim := DetectDelimiter(lines[headerIdx])

	r := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, &ParseError{Reason: "cannot read header", Err: err}
	}
	header = cleanHeader(header)

	table := &Table{Header: header, Delimiter: delim}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Lenient: a malformed record ends the readable part of the file
			// unless nothing at all could be read.
			if len(table.Rows) == 0 {
				return nil, &ParseError{Reason: "cannot tokenize rows", Err: err}
			}
			break
		}
		if row := buildRow(header, record); row != nil {
			table.Rows = append(table.Rows, row)
		}
	}

	return table, nil
}

// DetectDelimiter picks tab whenever the header contains one, otherwise
// whichever of comma and semicolon occurs more often (comma on ties).
func DetectDelimiter(headerLine string) rune {
	if strings.Contains(headerLine, "\t") {
		return '\t'
	}
	commas := strings.Count(headerLine, ",")
	semicolons := strings.Count(headerLine, ";")
	if semicolons > commas {
		return ';'
	}
	return ','
}

func buildRow(header []string, record []string) Row {
	nonEmpty := 0
	row := make(Row, len(header))
	for i, col := range header {
		if i >= len(record) {
			break
		}
		if col == "" {
			continue
		}
		if _, exists := row[col]; exists {
			continue
		}
		value := strings.TrimSpace(record[i])
		row[col] = value
		if value != "" {
			nonEmpty++
		}
	}
	if nonEmpty <= MinNonEmptyCells {
		return nil
	}
	return row
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\uFEFF")
		out[i] = strings.Trim(strings.TrimSpace(h), `"`)
	}
	return out
}

func isSeparatorOnly(line string) bool {
	return strings.TrimFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == '\t' || r == ' ' || r == '"'
	}) == ""
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
