package arrowtable

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"tablekit/pkg/table"
)

// Schema describes t as an Arrow schema. Arrays of fixed element count
// become fixed size lists, other arrays become lists. Column metadata and
// table parameters travel as metadata.
func Schema(t table.Table) (*arrow.Schema, error) {
	return schemaFor(t, true)
}

func schemaFor(t table.Table, fixedLists bool) (*arrow.Schema, error) {
	cols := table.Columns(t)
	fields := make([]arrow.Field, len(cols))
	for i, col := range cols {
		f, err := fieldFor(col, fixedLists)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}

	var keys, values []string
	for _, p := range t.Params() {
		keys = append(keys, metaParam+p.Name)
		values = append(values, paramText(p.Value))
	}
	var md *arrow.Metadata
	if len(keys) > 0 {
		m := arrow.NewMetadata(keys, values)
		md = &m
	}
	return arrow.NewSchema(fields, md), nil
}

func paramText(v any) string {
	return table.ColumnInfo{}.FormatValue(v, 0)
}

func arrowType(typ table.ValueType) (arrow.DataType, error) {
	switch typ {
	case table.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case table.TypeByte:
		return arrow.PrimitiveTypes.Uint8, nil
	case table.TypeShort:
		return arrow.PrimitiveTypes.Int16, nil
	case table.TypeInt:
		return arrow.PrimitiveTypes.Int32, nil
	case table.TypeLong:
		return arrow.PrimitiveTypes.Int64, nil
	case table.TypeFloat:
		return arrow.PrimitiveTypes.Float32, nil
	case table.TypeDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case table.TypeString:
		return arrow.BinaryTypes.String, nil
	}
	return nil, fmt.Errorf("no arrow type for %s", typ)
}

func fieldFor(col table.ColumnInfo, fixedLists bool) (arrow.Field, error) {
	elem, err := arrowType(col.Type)
	if err != nil {
		return arrow.Field{}, fmt.Errorf("column %s: %w", col.Name, err)
	}

	dt := elem
	if col.IsArray() {
		if n := col.ElementCount(); n >= 0 && fixedLists {
			dt = arrow.FixedSizeListOf(int32(n), elem)
		} else {
			dt = arrow.ListOf(elem)
		}
	}

	var keys, values []string
	add := func(key, value string) {
		if value != "" {
			keys = append(keys, key)
			values = append(values, value)
		}
	}
	add(metaUnit, col.Unit)
	add(metaUCD, col.UCD)
	add(metaUtype, col.Utype)
	add(metaDescription, col.Description)
	if col.IsArray() {
		add(metaShape, table.FormatShape(col.Shape))
	}
	if col.ElementSize >= 0 {
		add(metaElementSize, strconv.Itoa(col.ElementSize))
	}

	return arrow.Field{
		Name:     col.Name,
		Type:     dt,
		Nullable: true,
		Metadata: arrow.NewMetadata(keys, values),
	}, nil
}

// ToRecord copies every row of t into one record batch allocated from mem.
// The caller owns the returned record.
func ToRecord(t table.Table, mem memory.Allocator) (arrow.Record, error) {
	schema, err := Schema(t)
	if err != nil {
		return nil, err
	}
	b := newBatchBuilder(mem, schema, table.Columns(t))
	defer b.Release()

	if err := table.ForEachRow(t, b.appendRow); err != nil {
		return nil, err
	}
	return b.NewRecord(), nil
}

type batchBuilder struct {
	*array.RecordBuilder
	columns []table.ColumnInfo
	rows    int
}

func newBatchBuilder(mem memory.Allocator, schema *arrow.Schema, columns []table.ColumnInfo) *batchBuilder {
	return &batchBuilder{
		RecordBuilder: array.NewRecordBuilder(mem, schema),
		columns:       columns,
	}
}

func (b *batchBuilder) appendRow(row []any) error {
	for icol, col := range b.columns {
		if err := appendValue(b.Field(icol), col, row[icol]); err != nil {
			return fmt.Errorf("row %d: %w", b.rows, err)
		}
	}
	b.rows++
	return nil
}

// NewRecord returns the rows gathered so far and resets the row count.
func (b *batchBuilder) NewRecord() arrow.Record {
	b.rows = 0
	return b.RecordBuilder.NewRecord()
}

func appendValue(fb array.Builder, col table.ColumnInfo, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}
	v, err := table.Coerce(col, v)
	if err != nil {
		return err
	}

	if !col.IsArray() {
		return appendScalar(fb, col, v)
	}
	if n := col.ElementCount(); n >= 0 && arrayLength(v) != n {
		return fmt.Errorf("column %s: %d elements, expected %d", col.Name, arrayLength(v), n)
	}
	switch lb := fb.(type) {
	case *array.ListBuilder:
		lb.Append(true)
		return appendElements(lb.ValueBuilder(), col, v)
	case *array.FixedSizeListBuilder:
		lb.Append(true)
		return appendElements(lb.ValueBuilder(), col, v)
	}
	return fmt.Errorf("column %s: array value for %s field", col.Name, fb.Type())
}

func appendScalar(fb array.Builder, col table.ColumnInfo, v any) error {
	ok := false
	switch b := fb.(type) {
	case *array.BooleanBuilder:
		var x bool
		if x, ok = v.(bool); ok {
			b.Append(x)
		}
	case *array.Uint8Builder:
		var x uint8
		if x, ok = v.(uint8); ok {
			b.Append(x)
		}
	case *array.Int16Builder:
		var x int16
		if x, ok = v.(int16); ok {
			b.Append(x)
		}
	case *array.Int32Builder:
		var x int32
		if x, ok = v.(int32); ok {
			b.Append(x)
		}
	case *array.Int64Builder:
		var x int64
		if x, ok = v.(int64); ok {
			b.Append(x)
		}
	case *array.Float32Builder:
		var x float32
		if x, ok = v.(float32); ok {
			b.Append(x)
		}
	case *array.Float64Builder:
		var x float64
		if x, ok = v.(float64); ok {
			b.Append(x)
		}
	case *array.StringBuilder:
		var x string
		if x, ok = v.(string); ok {
			b.Append(x)
		}
	}
	if !ok {
		return fmt.Errorf("column %s: can't store %T in %s", col.Name, v, fb.Type())
	}
	return nil
}

func appendElements(fb array.Builder, col table.ColumnInfo, v any) error {
	ok := false
	switch b := fb.(type) {
	case *array.BooleanBuilder:
		var x []bool
		if x, ok = v.([]bool); ok {
			b.AppendValues(x, nil)
		}
	case *array.Uint8Builder:
		var x []uint8
		if x, ok = v.([]uint8); ok {
			b.AppendValues(x, nil)
		}
	case *array.Int16Builder:
		var x []int16
		if x, ok = v.([]int16); ok {
			b.AppendValues(x, nil)
		}
	case *array.Int32Builder:
		var x []int32
		if x, ok = v.([]int32); ok {
			b.AppendValues(x, nil)
		}
	case *array.Int64Builder:
		var x []int64
		if x, ok = v.([]int64); ok {
			b.AppendValues(x, nil)
		}
	case *array.Float32Builder:
		var x []float32
		if x, ok = v.([]float32); ok {
			b.AppendValues(x, nil)
		}
	case *array.Float64Builder:
		var x []float64
		if x, ok = v.([]float64); ok {
			b.AppendValues(x, nil)
		}
	case *array.StringBuilder:
		var x []string
		if x, ok = v.([]string); ok {
			b.AppendValues(x, nil)
		}
	}
	if !ok {
		return fmt.Errorf("column %s: can't store %T as %s elements", col.Name, v, fb.Type())
	}
	return nil
}

func arrayLength(v any) int {
	switch x := v.(type) {
	case []bool:
		return len(x)
	case []uint8:
		return len(x)
	case []int16:
		return len(x)
	case []int32:
		return len(x)
	case []int64:
		return len(x)
	case []float32:
		return len(x)
	case []float64:
		return len(x)
	case []string:
		return len(x)
	}
	return -1
}
