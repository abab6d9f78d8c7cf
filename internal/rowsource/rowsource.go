// Package rowsource tokenizes broker statements into ingest rows.
package rowsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rustyeddy/tradeledger/ingest"
)

const bom = "\ufeff"

// CSV reads every record of r. Rows may have different widths; a leading
// byte order mark is dropped.
func CSV(ctx context.Context, r io.Reader, comma rune) ([]ingest.Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows []ingest.Row
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", i, err)
		}
		if i == 0 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], bom)
		}
		rows = append(rows, ingest.Row{Index: i, Fields: rec})
	}
}

// XLSX reads the formatted cell values of one sheet. An empty sheet name
// selects the first sheet of the workbook.
func XLSX(path, sheet string) ([]ingest.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	rows := make([]ingest.Row, len(cells))
	for i, c := range cells {
		rows[i] = ingest.Row{Index: i, Fields: c}
	}
	return rows, nil
}

// Open picks the reader by extension: .xlsx goes through XLSX, anything
// else is read as delimited text using the vendor's separator.
func Open(ctx context.Context, path string, v *ingest.Vendor, sheet string) ([]ingest.Row, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return XLSX(path, sheet)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return CSV(ctx, f, v.CommaRune())
}
