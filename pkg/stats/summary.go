package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"tablekit/pkg/table"
)

// ColumnSummary describes the values of one column. Mean, Min and Max are
// set for numeric scalar columns and are NaN when no value was seen. Bytes
// and ASCIIChars are set for string columns.
type ColumnSummary struct {
	Name       string
	Type       table.ValueType
	TypeName   string
	Count      int64
	Nulls      int64
	Mean       float64
	Min        float64
	Max        float64
	Bytes      int64
	ASCIIChars int64

	numeric bool
	values  int64
	sum     float64
}

// Numeric reports whether Mean, Min and Max apply to this column.
func (c *ColumnSummary) Numeric() bool { return c.numeric }

type Summary struct {
	Table   string
	Rows    int64
	Columns []ColumnSummary
}

// Summarize reads t once and summarises each of its columns.
func Summarize(t table.Table) (*Summary, error) {
	cols := table.Columns(t)
	s := &Summary{Table: t.Name(), Columns: make([]ColumnSummary, len(cols))}
	for i, col := range cols {
		s.Columns[i] = ColumnSummary{
			Name:     col.Name,
			Type:     col.Type,
			TypeName: typeName(col),
			Mean:     math.NaN(),
			Min:      math.Inf(1),
			Max:      math.Inf(-1),
			numeric:  col.Type.IsNumeric() && !col.IsArray(),
		}
	}

	err := table.ForEachRow(t, func(row []any) error {
		s.Rows++
		for i, v := range row {
			cs := &s.Columns[i]
			if v == nil {
				cs.Nulls++
				continue
			}
			cs.Count++
			if cs.numeric {
				if f, ok := table.ToFloat64(v); ok && !math.IsNaN(f) {
					cs.values++
					cs.sum += f
					cs.Min = math.Min(cs.Min, f)
					cs.Max = math.Max(cs.Max, f)
				}
			}
			if str, ok := v.(string); ok {
				cs.Bytes += int64(len(str))
				for j := 0; j < len(str); j++ {
					if str[j] < 128 {
						cs.ASCIIChars++
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range s.Columns {
		cs := &s.Columns[i]
		if cs.numeric && cs.values > 0 {
			cs.Mean = cs.sum / float64(cs.values)
		} else {
			cs.Min, cs.Max = math.NaN(), math.NaN()
		}
	}
	return s, nil
}

func typeName(col table.ColumnInfo) string {
	if col.IsArray() {
		return col.Type.String() + "[" + table.FormatShape(col.Shape) + "]"
	}
	return col.Type.String()
}

// Print writes one line per column.
func (s *Summary) Print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Table '%s': %d rows\n", s.Table, s.Rows); err != nil {
		return err
	}
	for _, cs := range s.Columns {
		var err error
		tag := strings.ToUpper(cs.TypeName)
		switch {
		case cs.numeric:
			_, err = fmt.Fprintf(w, "[%s] Column '%s': Count = %d, Nulls = %d, Mean = %.4f, Min = %g, Max = %g\n",
				tag, cs.Name, cs.Count, cs.Nulls, cs.Mean, cs.Min, cs.Max)
		case cs.Type == table.TypeString:
			_, err = fmt.Fprintf(w, "[%s] Column '%s': Count = %d, Nulls = %d, ASCII Char Count = %d (Total Bytes: %d)\n",
				tag, cs.Name, cs.Count, cs.Nulls, cs.ASCIIChars, cs.Bytes)
		default:
			_, err = fmt.Fprintf(w, "[%s] Column '%s': Count = %d, Nulls = %d\n", tag, cs.Name, cs.Count, cs.Nulls)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
