// Package arrowtable adapts Apache Arrow data to the table interfaces and
// reads and writes Parquet files through arrow-go.
package arrowtable

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"tablekit/pkg/table"
)

// Field metadata keys carrying column metadata Arrow has no slot for.
const (
	metaUnit        = "tablekit.unit"
	metaUCD         = "tablekit.ucd"
	metaUtype       = "tablekit.utype"
	metaDescription = "tablekit.description"
	metaShape       = "tablekit.shape"
	metaElementSize = "tablekit.element_size"
	metaParam       = "tablekit.param."
)

// Table is a random access table over Arrow arrays. Columns may be chunked
// independently. Call Release when done with it.
type Table struct {
	name    string
	params  []table.Param
	columns []table.ColumnInfo
	chunks  [][]arrow.Array
	starts  [][]int64
	nrows   int64
	release func()
}

// FromRecord wraps a record batch. The record is retained until Release.
func FromRecord(name string, rec arrow.Record) (*Table, error) {
	chunks := make([][]arrow.Array, rec.NumCols())
	for i := range chunks {
		chunks[i] = []arrow.Array{rec.Column(i)}
	}
	t, err := newTable(name, rec.Schema(), chunks, rec.NumRows())
	if err != nil {
		return nil, err
	}
	rec.Retain()
	t.release = rec.Release
	return t, nil
}

// FromArrowTable wraps a chunked Arrow table. It is retained until Release.
func FromArrowTable(name string, tbl arrow.Table) (*Table, error) {
	chunks := make([][]arrow.Array, tbl.NumCols())
	for i := range chunks {
		chunks[i] = tbl.Column(i).Data().Chunks()
	}
	t, err := newTable(name, tbl.Schema(), chunks, tbl.NumRows())
	if err != nil {
		return nil, err
	}
	tbl.Retain()
	t.release = tbl.Release
	return t, nil
}

func newTable(name string, schema *arrow.Schema, chunks [][]arrow.Array, nrows int64) (*Table, error) {
	verr := &table.ValidationError{}
	columns := make([]table.ColumnInfo, schema.NumFields())
	for i, f := range schema.Fields() {
		info, err := columnFor(f)
		if err != nil {
			verr.Add(err.Error(), "field "+f.Name)
			continue
		}
		columns[i] = info
	}
	if verr.HasProblems() {
		return nil, verr
	}

	starts := make([][]int64, len(chunks))
	for icol, col := range chunks {
		var off int64
		starts[icol] = make([]int64, len(col))
		for ic, chunk := range col {
			starts[icol][ic] = off
			off += int64(chunk.Len())
		}
		if off != nrows {
			return nil, fmt.Errorf("column %s holds %d rows, expected %d", columns[icol].Name, off, nrows)
		}
	}

	return &Table{
		name:    name,
		params:  paramsFrom(schema.Metadata()),
		columns: columns,
		chunks:  chunks,
		starts:  starts,
		nrows:   nrows,
	}, nil
}

// Release drops the reference to the underlying Arrow data. It is safe to
// call more than once.
func (t *Table) Release() {
	if t.release != nil {
		t.release()
		t.release = nil
	}
}

func (t *Table) Name() string { return t.name }

func (t *Table) Params() []table.Param {
	out := make([]table.Param, len(t.params))
	copy(out, t.params)
	return out
}

func (t *Table) ColumnCount() int { return len(t.columns) }

func (t *Table) Column(icol int) table.ColumnInfo { return t.columns[icol].Clone() }

func (t *Table) RowCount() int64 { return t.nrows }

func (t *Table) RowSequence() (table.RowSequence, error) {
	return table.SequenceOver(t), nil
}

func (t *Table) Cell(irow int64, icol int) (any, error) {
	if irow < 0 || irow >= t.nrows {
		return nil, &table.BoundsError{What: "row", Index: irow, Limit: t.nrows}
	}
	if icol < 0 || icol >= len(t.columns) {
		return nil, &table.BoundsError{What: "column", Index: int64(icol), Limit: int64(len(t.columns))}
	}
	return t.cell(irow, icol), nil
}

func (t *Table) Row(irow int64) ([]any, error) {
	if irow < 0 || irow >= t.nrows {
		return nil, &table.BoundsError{What: "row", Index: irow, Limit: t.nrows}
	}
	row := make([]any, len(t.columns))
	for icol := range t.columns {
		row[icol] = t.cell(irow, icol)
	}
	return row, nil
}

func (t *Table) cell(irow int64, icol int) any {
	starts := t.starts[icol]
	ic := sort.Search(len(starts), func(i int) bool { return starts[i] > irow }) - 1
	arr := t.chunks[icol][ic]
	i := int(irow - starts[ic])
	if arr.IsNull(i) {
		return nil
	}
	if list, ok := arr.(array.ListLike); ok {
		start, end := list.ValueOffsets(i)
		return sliceValues(list.ListValues(), int(start), int(end))
	}
	return scalarValue(arr, i)
}

func scalarValue(arr arrow.Array, i int) any {
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Uint8:
		return a.Value(i)
	case *array.Int8:
		return int16(a.Value(i))
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	}
	return nil
}

// sliceValues copies elements [start, end) of a list child array into the
// slice type used for array cells. Null elements read as zero values.
func sliceValues(values arrow.Array, start, end int) any {
	switch a := values.(type) {
	case *array.Boolean:
		return collect(start, end, a.Value)
	case *array.Uint8:
		return collect(start, end, a.Value)
	case *array.Int8:
		return collect(start, end, func(i int) int16 { return int16(a.Value(i)) })
	case *array.Int16:
		return collect(start, end, a.Value)
	case *array.Int32:
		return collect(start, end, a.Value)
	case *array.Int64:
		return collect(start, end, a.Value)
	case *array.Float32:
		return collect(start, end, a.Value)
	case *array.Float64:
		return collect(start, end, a.Value)
	case *array.String:
		return collect(start, end, a.Value)
	case *array.LargeString:
		return collect(start, end, a.Value)
	}
	return nil
}

func collect[T any](start, end int, get func(int) T) []T {
	out := make([]T, end-start)
	for i := range out {
		out[i] = get(start + i)
	}
	return out
}

func valueType(dt arrow.DataType) (table.ValueType, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return table.TypeBoolean, nil
	case arrow.UINT8:
		return table.TypeByte, nil
	case arrow.INT8, arrow.INT16:
		return table.TypeShort, nil
	case arrow.INT32:
		return table.TypeInt, nil
	case arrow.INT64:
		return table.TypeLong, nil
	case arrow.FLOAT32:
		return table.TypeFloat, nil
	case arrow.FLOAT64:
		return table.TypeDouble, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return table.TypeString, nil
	}
	return 0, fmt.Errorf("unsupported arrow type %s", dt)
}

func columnFor(f arrow.Field) (table.ColumnInfo, error) {
	var info table.ColumnInfo
	switch dt := f.Type.(type) {
	case *arrow.ListType:
		typ, err := valueType(dt.Elem())
		if err != nil {
			return info, err
		}
		info = table.NewColumnInfo(f.Name, typ)
		info.Shape = []int{-1}
	case *arrow.FixedSizeListType:
		typ, err := valueType(dt.Elem())
		if err != nil {
			return info, err
		}
		info = table.NewColumnInfo(f.Name, typ)
		info.Shape = []int{int(dt.Len())}
	default:
		typ, err := valueType(f.Type)
		if err != nil {
			return info, err
		}
		info = table.NewColumnInfo(f.Name, typ)
	}

	md := f.Metadata
	info.Unit = metaValue(md, metaUnit)
	info.UCD = metaValue(md, metaUCD)
	info.Utype = metaValue(md, metaUtype)
	info.Description = metaValue(md, metaDescription)
	if txt := metaValue(md, metaShape); txt != "" && info.IsArray() {
		shape, err := table.ParseShape(txt)
		if err != nil {
			return info, err
		}
		info.Shape = shape
	}
	if txt := metaValue(md, metaElementSize); txt != "" {
		n, err := strconv.Atoi(txt)
		if err != nil {
			return info, fmt.Errorf("bad element size %q", txt)
		}
		info.ElementSize = n
	}
	return info, nil
}

func metaValue(md arrow.Metadata, key string) string {
	if i := md.FindKey(key); i >= 0 {
		return md.Values()[i]
	}
	return ""
}

// paramsFrom reads table parameters stored as schema metadata. Values come
// back as their text form.
func paramsFrom(md arrow.Metadata) []table.Param {
	var params []table.Param
	for i, key := range md.Keys() {
		if name, ok := strings.CutPrefix(key, metaParam); ok {
			params = append(params, table.Param{Name: name, Value: md.Values()[i]})
		}
	}
	return params
}
