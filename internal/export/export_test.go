package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadscout/internal/model"
)

func sampleBusinesses() []model.Business {
	addr := "1 Main St"
	phone := "555-0100"
	site := "https://b.example.com"
	rating := 4.6
	reviews := 120
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	return []model.Business{
		{
			PlaceID:     "p1",
			Name:        "Ace Plumbing",
			Address:     &addr,
			Phone:       &phone,
			Rating:      &rating,
			ReviewCount: &reviews,
			LeadScore:   100,
			SearchID:    "s1",
			CreatedAt:   created,
		},
		{
			PlaceID:   "p2",
			Name:      "B, Inc \"Quoted\"",
			Website:   &site,
			LeadScore: 10,
			SearchID:  "s1",
			CreatedAt: created,
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleBusinesses()))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, header, rows[0])

	first := rows[1]
	assert.Equal(t, "p1", first[0])
	assert.Equal(t, "Ace Plumbing", first[1])
	assert.Equal(t, "4.6", first[5])
	assert.Equal(t, "120", first[6])
	assert.Equal(t, "100", first[7])
	assert.Equal(t, "hot", first[8])

	second := rows[2]
	assert.Equal(t, "", second[2], "absent address exports as empty cell")
	assert.Equal(t, "", second[5], "absent rating exports as empty cell")
	assert.Equal(t, "https://b.example.com", second[4])
	assert.Equal(t, "cold", second[8])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, nil))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleBusinesses()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Leads", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "place_id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Ace Plumbing", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "hot", sheet.Rows[1].Cells[8].String())
}
