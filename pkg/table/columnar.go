package table

import (
	"fmt"

	"tablekit/pkg/primlist"
)

// columnStore holds the cells of a single column.
type columnStore interface {
	append(v any)
	value(i int) any
}

type scalarStore[T primlist.Primitive] struct {
	values primlist.List[T]
	nulls  primlist.BoolList
}

func (s *scalarStore[T]) append(v any) {
	if v == nil {
		var zero T
		s.values.Add(zero)
		s.nulls.Add(true)
		return
	}
	s.values.Add(v.(T))
	s.nulls.Add(false)
}

func (s *scalarStore[T]) value(i int) any {
	if s.nulls.Get(i) {
		return nil
	}
	return s.values.Get(i)
}

// varcharStore keeps strings as start offsets into one byte buffer.
type varcharStore struct {
	offsets primlist.LongList
	data    primlist.ByteList
	nulls   primlist.BoolList
}

func (s *varcharStore) append(v any) {
	s.offsets.Add(int64(s.data.Size()))
	if v == nil {
		s.nulls.Add(true)
		return
	}
	s.data.AddArray([]byte(v.(string)))
	s.nulls.Add(false)
}

func (s *varcharStore) nextOffset(i int) int64 {
	if i == s.offsets.Size()-1 {
		return int64(s.data.Size())
	}
	return s.offsets.Get(i + 1)
}

func (s *varcharStore) value(i int) any {
	if s.nulls.Get(i) {
		return nil
	}
	start := s.offsets.Get(i)
	end := s.nextOffset(i)
	return string(s.data.Buffer()[start:end])
}

// arrayStore packs the elements of every row into one buffer.
type arrayStore[T primlist.Primitive] struct {
	elems   primlist.List[T]
	offsets primlist.LongList
	nulls   primlist.BoolList
}

func (s *arrayStore[T]) append(v any) {
	s.offsets.Add(int64(s.elems.Size()))
	if v == nil {
		s.nulls.Add(true)
		return
	}
	s.elems.AddArray(v.([]T))
	s.nulls.Add(false)
}

func (s *arrayStore[T]) value(i int) any {
	if s.nulls.Get(i) {
		return nil
	}
	start := s.offsets.Get(i)
	end := int64(s.elems.Size())
	if i < s.offsets.Size()-1 {
		end = s.offsets.Get(i + 1)
	}
	out := make([]T, end-start)
	copy(out, s.elems.Buffer()[start:end])
	return out
}

type stringArrayStore struct {
	values [][]string
}

func (s *stringArrayStore) append(v any) {
	if v == nil {
		s.values = append(s.values, nil)
		return
	}
	src := v.([]string)
	cp := make([]string, len(src))
	copy(cp, src)
	s.values = append(s.values, cp)
}

func (s *stringArrayStore) value(i int) any {
	if s.values[i] == nil {
		return nil
	}
	out := make([]string, len(s.values[i]))
	copy(out, s.values[i])
	return out
}

func newColumnStore(info ColumnInfo) (columnStore, error) {
	if info.IsArray() {
		switch info.Type {
		case TypeBoolean:
			return &arrayStore[bool]{}, nil
		case TypeByte:
			return &arrayStore[uint8]{}, nil
		case TypeShort:
			return &arrayStore[int16]{}, nil
		case TypeInt:
			return &arrayStore[int32]{}, nil
		case TypeLong:
			return &arrayStore[int64]{}, nil
		case TypeFloat:
			return &arrayStore[float32]{}, nil
		case TypeDouble:
			return &arrayStore[float64]{}, nil
		case TypeString:
			return &stringArrayStore{}, nil
		}
	} else {
		switch info.Type {
		case TypeBoolean:
			return &scalarStore[bool]{}, nil
		case TypeByte:
			return &scalarStore[uint8]{}, nil
		case TypeShort:
			return &scalarStore[int16]{}, nil
		case TypeInt:
			return &scalarStore[int32]{}, nil
		case TypeLong:
			return &scalarStore[int64]{}, nil
		case TypeFloat:
			return &scalarStore[float32]{}, nil
		case TypeDouble:
			return &scalarStore[float64]{}, nil
		case TypeString:
			return &varcharStore{}, nil
		}
	}
	return nil, fmt.Errorf("unsupported type %s for column %s", info.Type, info.Name)
}

// ColumnarTable is an in-memory random access table. It is filled with
// AppendRow and must not be appended to while it is being read.
type ColumnarTable struct {
	name    string
	params  []Param
	columns []ColumnInfo
	stores  []columnStore
	numRows int64
}

func NewColumnarTable(name string, columns []ColumnInfo) (*ColumnarTable, error) {
	t := &ColumnarTable{
		name:    name,
		columns: make([]ColumnInfo, len(columns)),
		stores:  make([]columnStore, len(columns)),
	}
	for i, col := range columns {
		store, err := newColumnStore(col)
		if err != nil {
			return nil, err
		}
		t.columns[i] = col.Clone()
		t.stores[i] = store
	}
	return t, nil
}

// CheckRow verifies that row has one compatible cell per column.
func CheckRow(columns []ColumnInfo, row []any) error {
	if len(row) != len(columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(columns))
	}
	for i, v := range row {
		if !columns[i].Accepts(v) {
			return fmt.Errorf("value %v (%T) not valid for column %s of type %s", v, v, columns[i].Name, columns[i].Type)
		}
	}
	return nil
}

func (t *ColumnarTable) AppendRow(row []any) error {
	if err := CheckRow(t.columns, row); err != nil {
		return err
	}
	for i, v := range row {
		t.stores[i].append(v)
	}
	t.numRows++
	return nil
}

func (t *ColumnarTable) SetName(name string) {
	t.name = name
}

func (t *ColumnarTable) SetParam(p Param) {
	for i := range t.params {
		if t.params[i].Name == p.Name {
			t.params[i] = p
			return
		}
	}
	t.params = append(t.params, p)
}

func (t *ColumnarTable) Name() string { return t.name }

func (t *ColumnarTable) Params() []Param {
	out := make([]Param, len(t.params))
	copy(out, t.params)
	return out
}

func (t *ColumnarTable) ColumnCount() int { return len(t.columns) }

func (t *ColumnarTable) Column(icol int) ColumnInfo { return t.columns[icol].Clone() }

func (t *ColumnarTable) RowCount() int64 { return t.numRows }

func (t *ColumnarTable) RowSequence() (RowSequence, error) {
	return SequenceOver(t), nil
}

func (t *ColumnarTable) Cell(irow int64, icol int) (any, error) {
	if err := checkRowIndex(irow, t.numRows); err != nil {
		return nil, err
	}
	if err := checkColumnIndex(icol, len(t.columns)); err != nil {
		return nil, err
	}
	return t.stores[icol].value(int(irow)), nil
}

func (t *ColumnarTable) Row(irow int64) ([]any, error) {
	if err := checkRowIndex(irow, t.numRows); err != nil {
		return nil, err
	}
	row := make([]any, len(t.stores))
	for i, store := range t.stores {
		row[i] = store.value(int(irow))
	}
	return row, nil
}
