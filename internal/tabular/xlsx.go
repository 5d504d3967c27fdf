package tabular

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

var zipSignature = []byte{'P', 'K', 0x03, 0x04}

func isXLSX(data []byte) bool {
	return bytes.HasPrefix(data, zipSignature)
}

// parseXLSX reads the first worksheet of a workbook with the same header and noise rules as text input
func parseXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Reason: "cannot open workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Reason: "workbook has no sheets"}
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Reason: "cannot read worksheet", Err: err}
	}

	headerIdx := -1
	for i := 0; i < len(records) && i <= MaxLeadingSkip; i++ {
		if !isEmptyRecord(records[i]) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, &ParseError{Reason: "no header row found"}
	}

	header := cleanHeader(records[headerIdx])
	table := &Table{Header: header}
	for _, record := range records[headerIdx+1:] {
		if row := buildRow(header, record); row != nil {
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}

func isEmptyRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
