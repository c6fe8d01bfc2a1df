// Package export renders business lists as CSV or XLSX for operators.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/scorer"
)

// Format identifies an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a user-supplied string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unsupported format %q (want csv or xlsx)", s)
	}
}

var header = []string{
	"place_id", "name", "address", "phone", "website",
	"rating", "review_count", "lead_score", "band", "search_id", "created_at",
}

// Write renders businesses in the given format.
func Write(w io.Writer, format Format, businesses []model.Business) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, businesses)
	case FormatXLSX:
		return writeXLSX(w, businesses)
	default:
		return eris.Errorf("export: unsupported format %q", format)
	}
}

func writeCSV(w io.Writer, businesses []model.Business) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, b := range businesses {
		if err := cw.Write(row(b)); err != nil {
			return eris.Wrapf(err, "export: write row %s", b.PlaceID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

func writeXLSX(w io.Writer, businesses []model.Business) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, col := range header {
		hr.AddCell().SetString(col)
	}
	for _, b := range businesses {
		r := sheet.AddRow()
		for _, cell := range row(b) {
			r.AddCell().SetString(cell)
		}
	}

	return eris.Wrap(f.Write(w), "export: write workbook")
}

// row flattens one business; optional fields render as empty cells.
func row(b model.Business) []string {
	rating := ""
	if b.Rating != nil {
		rating = strconv.FormatFloat(*b.Rating, 'f', 1, 64)
	}
	reviews := ""
	if b.ReviewCount != nil {
		reviews = strconv.Itoa(*b.ReviewCount)
	}
	return []string{
		b.PlaceID,
		b.Name,
		deref(b.Address),
		deref(b.Phone),
		deref(b.Website),
		rating,
		reviews,
		fmt.Sprintf("%d", b.LeadScore),
		string(scorer.BandFor(b.LeadScore)),
		b.SearchID,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
