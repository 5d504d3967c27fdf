package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParse_CommaSeparated(t *testing.T) {
	data := []byte("order-item-id,purchase-date,recipient-name,ship-country\nA1-X,2024-03-01,Jane Doe,DE\n")

	table, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, ',', table.Delimiter)
	assert.Equal(t, []string{"order-item-id", "purchase-date", "recipient-name", "ship-country"}, table.Header)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "A1-X", table.Rows[0].Get("order-item-id"))
	assert.Equal(t, "Jane Doe", table.Rows[0].Get("recipient-name"))
}

func TestParse_TabWinsOverCommaAndSemicolon(t *testing.T) {
	data := []byte("order-id\torder-item-id\tproduct-name\tsku\n" +
		"111\t222\tScrew, M4; steel\tSKU-1\n")

	table, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, '\t', table.Delimiter)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Screw, M4; steel", table.Rows[0].Get("product-name"))
}

func TestParse_SemicolonDelimited(t *testing.T) {
	data := []byte("Bestellnummer;Verkaufsprotokollnummer;Name des Käufers;Anzahl\n" +
		"12-345;1001;Max Mustermann;2\n")

	table, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, ';', table.Delimiter)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Max Mustermann", table.Rows[0].Get("Name des Käufers"))
}

func TestParse_SkipsLeadingSeparatorLines(t *testing.T) {
	data := []byte("\n;;;;\n\"\";\"\"\n\nBestellnummer;Verkaufsprotokollnummer;Name;Anzahl\n12-345;1001;Max Mustermann;2\n")

	table, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "Bestellnummer", table.Header[0])
	assert.Len(t, table.Rows, 1)
}

func TestParse_TooManyLeadingBlankLines(t *testing.T) {
	data := []byte("\n\n\n\n\n\n\na,b,c,d\n1,2,3,4\n")

	_, err := Parse(data)
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestParse_StripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("order-item-id,sku,quantity-purchased,ship-city\nX1,S1,1,Berlin\n")...)

	table, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "order-item-id", table.Header[0])
	assert.Equal(t, "X1", table.Rows[0].Get("order-item-id"))
}

func TestParse_QuotedFieldsAndRaggedRows(t *testing.T) {
	data := []byte("a,b,c,d,e\n" +
		"\"1, one\",2,3,4\n" +
		"1,2,3,4,5,6,7\n")

	table, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1, one", table.Rows[0].Get("a"))
	_, hasE := table.Rows[0]["e"]
	assert.False(t, hasE)
	assert.Equal(t, "5", table.Rows[1].Get("e"))
}

func TestParse_DropsNoiseRows(t *testing.T) {
	data := []byte("a,b,c,d,e\n" +
		"1,2,3,,\n" +
		",,,,\n" +
		"1,2,3,4,\n")

	table, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "4", table.Rows[0].Get("d"))
}

func TestParse_EmptyInput(t *testing.T) {
	for _, data := range [][]byte{nil, []byte(""), []byte("  \n\t\n")} {
		_, err := Parse(data)
		require.Error(t, err)
		assert.True(t, IsParseError(err))
		assert.Contains(t, err.Error(), "file unreadable")
	}
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   rune
	}{
		{"tab only", "a\tb\tc", '\t'},
		{"tab with commas", "a,x\tb;y\tc", '\t'},
		{"comma", "a,b,c", ','},
		{"semicolon", "a;b;c", ';'},
		{"more semicolons", "a,b;c;d", ';'},
		{"tie prefers comma", "a,b;c", ','},
		{"single column", "a", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.header))
		})
	}
}

func TestParse_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"order-item-id", "purchase-date", "recipient-name", "ship-country"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"A1-X", "2024-03-01", "Jane Doe", "DE"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{"", "", "", ""}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := Parse(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "order-item-id", table.Header[0])
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Jane Doe", table.Rows[0].Get("recipient-name"))
}

func TestParse_CorruptXLSX(t *testing.T) {
	_, err := Parse([]byte("PK\x03\x04this is not a workbook"))
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}
