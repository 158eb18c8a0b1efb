package view

import (
	"fmt"
	"sort"

	"tablekit/pkg/table"
)

// colSource says where a view column comes from: exactly one of base and
// sup is non-negative.
type colSource struct {
	base int
	sup  int
}

type mappedTable struct {
	base    table.Table
	sup     ColumnSupplement
	columns []table.ColumnInfo
	sources []colSource
	usesSup bool
}

// Compose returns base with the columns of sup inserted before base column
// pos, and with the base columns listed in remove left out. pos may equal
// the base column count to append. The result supports random access if
// and only if base does.
func Compose(base table.Table, sup ColumnSupplement, pos int, remove []int) (table.Table, error) {
	if sup == nil {
		sup = EmptySupplement
	}
	ncol := base.ColumnCount()
	if pos < 0 || pos > ncol {
		return nil, &table.BoundsError{What: "insertion position", Index: int64(pos), Limit: int64(ncol) + 1}
	}

	removed := make(map[int]bool, len(remove))
	ve := &table.ValidationError{}
	for _, icol := range remove {
		if icol < 0 || icol >= ncol {
			return nil, &table.BoundsError{What: "column", Index: int64(icol), Limit: int64(ncol)}
		}
		if removed[icol] {
			ve.Add(fmt.Sprintf("column $%d removed more than once", icol+1), base.Column(icol).Name)
		}
		removed[icol] = true
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var sources []colSource
	for i := 0; i < pos; i++ {
		if !removed[i] {
			sources = append(sources, colSource{base: i, sup: -1})
		}
	}
	for i := 0; i < sup.ColumnCount(); i++ {
		sources = append(sources, colSource{base: -1, sup: i})
	}
	for i := pos; i < ncol; i++ {
		if !removed[i] {
			sources = append(sources, colSource{base: i, sup: -1})
		}
	}
	return newMapped(base, sup, sources), nil
}

func AddColumns(base table.Table, sup ColumnSupplement, pos int) (table.Table, error) {
	return Compose(base, sup, pos, nil)
}

func RemoveColumns(base table.Table, icols ...int) (table.Table, error) {
	return Compose(base, EmptySupplement, base.ColumnCount(), icols)
}

// PermuteColumns presents the base columns listed in icols, in that order.
// A base column may appear more than once.
func PermuteColumns(base table.Table, icols []int) (table.Table, error) {
	ncol := base.ColumnCount()
	sources := make([]colSource, len(icols))
	for i, icol := range icols {
		if icol < 0 || icol >= ncol {
			return nil, &table.BoundsError{What: "column", Index: int64(icol), Limit: int64(ncol)}
		}
		sources[i] = colSource{base: icol, sup: -1}
	}
	return newMapped(base, EmptySupplement, sources), nil
}

// KeepColumns is PermuteColumns with the base order preserved.
func KeepColumns(base table.Table, icols []int) (table.Table, error) {
	sorted := make([]int, len(icols))
	copy(sorted, icols)
	sort.Ints(sorted)
	return PermuteColumns(base, sorted)
}

func newMapped(base table.Table, sup ColumnSupplement, sources []colSource) table.Table {
	t := &mappedTable{
		base:    base,
		sup:     sup,
		columns: make([]table.ColumnInfo, len(sources)),
		sources: sources,
	}
	for i, src := range sources {
		if src.base >= 0 {
			t.columns[i] = base.Column(src.base)
		} else {
			t.columns[i] = sup.Column(src.sup)
			t.usesSup = true
		}
	}
	if ra, ok := table.AsRandom(base); ok {
		return &randomMappedTable{mappedTable: t, ra: ra}
	}
	return t
}

func (t *mappedTable) Name() string { return t.base.Name() }
func (t *mappedTable) Params() []table.Param { return t.base.Params() }
func (t *mappedTable) ColumnCount() int { return len(t.columns) }
func (t *mappedTable) RowCount() int64 { return t.base.RowCount() }
func (t *mappedTable) Column(icol int) table.ColumnInfo { return t.columns[icol].Clone() }

func (t *mappedTable) RowSequence() (table.RowSequence, error) {
	baseSeq, err := t.base.RowSequence()
	if err != nil {
		return nil, err
	}
	return &mappedSequence{
		SeqState: table.NewSeqState(len(t.columns)),
		t:        t,
		base:     baseSeq,
	}, nil
}

// assemble builds a view row from a base row and its supplement cells.
func (t *mappedTable) assemble(baseRow, supRow []any) []any {
	row := make([]any, len(t.sources))
	for i, src := range t.sources {
		if src.base >= 0 {
			row[i] = baseRow[src.base]
		} else {
			row[i] = supRow[src.sup]
		}
	}
	return row
}

func (t *mappedTable) supCells(baseRow []any) ([]any, error) {
	if !t.usesSup {
		return nil, nil
	}
	return t.sup.Cells(baseRow)
}

type randomMappedTable struct {
	*mappedTable
	ra table.RandomAccess
}

func (t *randomMappedTable) Row(irow int64) ([]any, error) {
	baseRow, err := t.ra.Row(irow)
	if err != nil {
		return nil, err
	}
	supRow, err := t.supCells(baseRow)
	if err != nil {
		return nil, err
	}
	return t.assemble(baseRow, supRow), nil
}

func (t *randomMappedTable) Cell(irow int64, icol int) (any, error) {
	if icol < 0 || icol >= len(t.sources) {
		return nil, &table.BoundsError{What: "column", Index: int64(icol), Limit: int64(len(t.sources))}
	}
	src := t.sources[icol]
	if src.base >= 0 {
		return t.ra.Cell(irow, src.base)
	}
	baseRow, err := t.ra.Row(irow)
	if err != nil {
		return nil, err
	}
	supRow, err := t.sup.Cells(baseRow)
	if err != nil {
		return nil, err
	}
	return supRow[src.sup], nil
}

// mappedSequence computes supplement cells at most once per row, and only
// when a synthetic column is actually read.
type mappedSequence struct {
	table.SeqState
	t       *mappedTable
	base    table.RowSequence
	baseRow []any
	supRow  []any
}

func (s *mappedSequence) Next() (bool, error) {
	if ok, err := s.BeginNext(); !ok {
		return false, err
	}
	s.baseRow, s.supRow = nil, nil
	ok, err := s.base.Next()
	if err != nil {
		return false, err
	}
	return s.Advanced(ok), nil
}

func (s *mappedSequence) loadBase() error {
	if s.baseRow != nil {
		return nil
	}
	row, err := s.base.Row()
	if err != nil {
		return err
	}
	s.baseRow = row
	return nil
}

func (s *mappedSequence) loadSup() error {
	if s.supRow != nil || !s.t.usesSup {
		return nil
	}
	if err := s.loadBase(); err != nil {
		return err
	}
	cells, err := s.t.sup.Cells(s.baseRow)
	if err != nil {
		return err
	}
	s.supRow = cells
	return nil
}

func (s *mappedSequence) Cell(icol int) (any, error) {
	if err := s.CheckCell(icol); err != nil {
		return nil, err
	}
	src := s.t.sources[icol]
	if src.base >= 0 {
		if s.baseRow != nil {
			return s.baseRow[src.base], nil
		}
		return s.base.Cell(src.base)
	}
	if err := s.loadSup(); err != nil {
		return nil, err
	}
	return s.supRow[src.sup], nil
}

func (s *mappedSequence) Row() ([]any, error) {
	if err := s.CheckRow(); err != nil {
		return nil, err
	}
	if err := s.loadBase(); err != nil {
		return nil, err
	}
	if err := s.loadSup(); err != nil {
		return nil, err
	}
	return s.t.assemble(s.baseRow, s.supRow), nil
}

func (s *mappedSequence) Close() error {
	if !s.MarkClosed() {
		return nil
	}
	s.baseRow, s.supRow = nil, nil
	return s.base.Close()
}
