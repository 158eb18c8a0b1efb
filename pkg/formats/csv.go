package formats

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tablekit/pkg/logging"
	"tablekit/pkg/table"
)

// CSVWriter writes a header line of column names followed by one record
// per row. Null cells are empty; arrays use the parenthesised form.
type CSVWriter struct{}

func (CSVWriter) FormatName() string { return "csv" }

func (CSVWriter) LooksLikeFile(location string) bool {
	return strings.HasSuffix(strings.ToLower(location), ".csv")
}

func (CSVWriter) WriteStream(t table.Table, out io.Writer) error {
	cw := csv.NewWriter(out)
	cols := table.Columns(t)

	record := make([]string, len(cols))
	for i, col := range cols {
		record[i] = col.Name
	}
	if err := cw.Write(record); err != nil {
		return err
	}

	err := table.ForEachRow(t, func(row []any) error {
		for i, col := range cols {
			record[i] = col.FormatValue(row[i], 0)
		}
		return cw.Write(record)
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// CSVLoader reads a CSV file with a header line. Column types are inferred
// from the data: Long if every non-empty cell is an integer, Double if every
// one is a number, Boolean if every one is true or false, otherwise String.
// Empty cells of non-string columns are null.
type CSVLoader struct{}

func (CSVLoader) FormatName() string { return "csv" }

func (CSVLoader) LooksLikeFile(location string) bool {
	return strings.HasSuffix(strings.ToLower(location), ".csv")
}

func (l CSVLoader) Load(ctx context.Context, location string) (table.Table, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(location), filepath.Ext(location))
	tbl, err := ReadCSV(ctx, name, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return tbl, nil
}

// ReadCSV reads a whole CSV stream into a columnar table.
func ReadCSV(ctx context.Context, name string, r io.Reader) (*table.ColumnarTable, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cols := make([]table.ColumnInfo, len(header))
	for icol, colName := range header {
		cols[icol] = table.NewColumnInfo(strings.TrimSpace(colName), inferType(records, icol))
	}

	tbl, err := table.NewColumnarTable(name, cols)
	if err != nil {
		return nil, err
	}
	row := make([]any, len(cols))
	for i, record := range records {
		if len(record) != len(cols) {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(record), len(cols))
		}
		for icol, value := range record {
			v, err := cols[icol].ParseValue(value)
			if err != nil {
				return nil, fmt.Errorf("row %d, col %s: %w", i, cols[icol].Name, err)
			}
			row[icol] = v
		}
		if err := tbl.AppendRow(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	logging.WithComponent("formats").Debug("read CSV", "table", name, "columns", len(cols), "rows", len(records))
	return tbl, nil
}

func inferType(records [][]string, icol int) table.ValueType {
	isLong, isDouble, isBool := true, true, true
	seen := false
	for _, record := range records {
		if icol >= len(record) || record[icol] == "" {
			continue
		}
		seen = true
		v := record[icol]
		if isLong {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isLong = false
			}
		}
		if isDouble {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isDouble = false
			}
		}
		if isBool {
			_, err := strconv.ParseBool(v)
			lv := strings.ToLower(v)
			isBool = err == nil && (lv == "true" || lv == "false")
		}
	}
	switch {
	case !seen:
		return table.TypeString
	case isLong:
		return table.TypeLong
	case isDouble:
		return table.TypeDouble
	case isBool:
		return table.TypeBoolean
	}
	return table.TypeString
}
