package view

import (
	"fmt"

	"tablekit/pkg/table"
)

type headTable struct {
	base  table.Table
	limit int64
}

// Head returns a view of at most the first n rows of base. It keeps random
// access when base has it and knows its row count.
func Head(base table.Table, n int64) (table.Table, error) {
	if n < 0 {
		return nil, fmt.Errorf("row limit must not be negative, got %d", n)
	}
	t := &headTable{base: base, limit: n}
	if ra, ok := table.AsRandom(base); ok && base.RowCount() >= 0 {
		return &randomHeadTable{headTable: t, ra: ra}, nil
	}
	return t, nil
}

func (t *headTable) Name() string { return t.base.Name() }

func (t *headTable) Params() []table.Param { return t.base.Params() }

func (t *headTable) ColumnCount() int { return t.base.ColumnCount() }

func (t *headTable) Column(icol int) table.ColumnInfo { return t.base.Column(icol) }

func (t *headTable) RowCount() int64 {
	n := t.base.RowCount()
	if n < 0 {
		return -1
	}
	return min(n, t.limit)
}

func (t *headTable) RowSequence() (table.RowSequence, error) {
	seq, err := t.base.RowSequence()
	if err != nil {
		return nil, err
	}
	return &limitSequence{
		SeqState: table.NewSeqState(t.base.ColumnCount()),
		child:    seq,
		limit:    t.limit,
	}, nil
}

type randomHeadTable struct {
	*headTable
	ra table.RandomAccess
}

func (t *randomHeadTable) Row(irow int64) ([]any, error) {
	if irow < 0 || irow >= t.RowCount() {
		return nil, &table.BoundsError{What: "row", Index: irow, Limit: t.RowCount()}
	}
	return t.ra.Row(irow)
}

func (t *randomHeadTable) Cell(irow int64, icol int) (any, error) {
	if irow < 0 || irow >= t.RowCount() {
		return nil, &table.BoundsError{What: "row", Index: irow, Limit: t.RowCount()}
	}
	return t.ra.Cell(irow, icol)
}

type limitSequence struct {
	table.SeqState
	child table.RowSequence
	limit int64
	count int64
}

func (s *limitSequence) Next() (bool, error) {
	if ok, err := s.BeginNext(); !ok {
		return false, err
	}
	if s.count >= s.limit {
		return s.Advanced(false), nil
	}
	ok, err := s.child.Next()
	if err != nil {
		return false, err
	}
	if ok {
		s.count++
	}
	return s.Advanced(ok), nil
}

func (s *limitSequence) Cell(icol int) (any, error) {
	if err := s.CheckCell(icol); err != nil {
		return nil, err
	}
	return s.child.Cell(icol)
}

func (s *limitSequence) Row() ([]any, error) {
	if err := s.CheckRow(); err != nil {
		return nil, err
	}
	return s.child.Row()
}

func (s *limitSequence) Close() error {
	if !s.MarkClosed() {
		return nil
	}
	return s.child.Close()
}

type selectTable struct {
	base      table.Table
	predicate Evaluator
}

// Select returns a sequential view of the rows of base for which predicate
// evaluates to true. Null and false results drop the row.
func Select(base table.Table, predicate Evaluator) table.Table {
	return &selectTable{base: base, predicate: predicate}
}

func (t *selectTable) Name() string { return t.base.Name() }

func (t *selectTable) Params() []table.Param { return t.base.Params() }

func (t *selectTable) ColumnCount() int { return t.base.ColumnCount() }

func (t *selectTable) Column(icol int) table.ColumnInfo { return t.base.Column(icol) }

func (t *selectTable) RowCount() int64 { return -1 }

func (t *selectTable) RowSequence() (table.RowSequence, error) {
	seq, err := t.base.RowSequence()
	if err != nil {
		return nil, err
	}
	return &filterSequence{
		SeqState:  table.NewSeqState(t.base.ColumnCount()),
		child:     seq,
		predicate: t.predicate,
	}, nil
}

type filterSequence struct {
	table.SeqState
	child     table.RowSequence
	predicate Evaluator
	row       []any
}

func (s *filterSequence) Next() (bool, error) {
	if ok, err := s.BeginNext(); !ok {
		return false, err
	}
	for {
		ok, err := s.child.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			s.row = nil
			return s.Advanced(false), nil
		}
		row, err := s.child.Row()
		if err != nil {
			return false, err
		}
		v, err := s.predicate.Evaluate(row)
		if err != nil {
			return false, &ColumnEvaluationError{Column: "<select>", Err: err}
		}
		pass, isBool := v.(bool)
		if v != nil && !isBool {
			return false, fmt.Errorf("selection expression gave %T, not boolean", v)
		}
		if pass {
			s.row = row
			return s.Advanced(true), nil
		}
	}
}

func (s *filterSequence) Cell(icol int) (any, error) {
	if err := s.CheckCell(icol); err != nil {
		return nil, err
	}
	return s.row[icol], nil
}

func (s *filterSequence) Row() ([]any, error) {
	if err := s.CheckRow(); err != nil {
		return nil, err
	}
	out := make([]any, len(s.row))
	copy(out, s.row)
	return out, nil
}

func (s *filterSequence) Close() error {
	if !s.MarkClosed() {
		return nil
	}
	s.row = nil
	return s.child.Close()
}
