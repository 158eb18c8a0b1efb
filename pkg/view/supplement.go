// Package view builds tables that present a different column set over a
// base table without copying or modifying it.
package view

import (
	"fmt"

	"tablekit/pkg/table"
)

// Evaluator computes one synthetic cell from the cells of a base row.
// Implementations must not keep state between rows: a view may be read by
// several sequences at once.
type Evaluator interface {
	Evaluate(row []any) (any, error)
}

type EvaluatorFunc func(row []any) (any, error)

func (f EvaluatorFunc) Evaluate(row []any) (any, error) {
	return f(row)
}

// ColumnSupplement provides extra columns computed from base rows.
type ColumnSupplement interface {
	ColumnCount() int
	Column(icol int) table.ColumnInfo
	Cells(baseRow []any) ([]any, error)
}

// ColumnEvaluationError wraps a failure to compute a synthetic cell.
type ColumnEvaluationError struct {
	Column string
	Err    error
}

func (e *ColumnEvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate column %s: %v", e.Column, e.Err)
}

func (e *ColumnEvaluationError) Unwrap() error {
	return e.Err
}

type emptySupplement struct{}

func (emptySupplement) ColumnCount() int { return 0 }

func (emptySupplement) Column(icol int) table.ColumnInfo {
	panic(&table.BoundsError{What: "column", Index: int64(icol), Limit: 0})
}

func (emptySupplement) Cells([]any) ([]any, error) { return nil, nil }

var EmptySupplement ColumnSupplement = emptySupplement{}

// ExpressionSupplement evaluates one Evaluator per synthetic column.
type ExpressionSupplement struct {
	columns    []table.ColumnInfo
	evaluators []Evaluator
}

func NewExpressionSupplement(columns []table.ColumnInfo, evaluators []Evaluator) (*ExpressionSupplement, error) {
	if len(columns) != len(evaluators) {
		return nil, fmt.Errorf("%d columns but %d evaluators", len(columns), len(evaluators))
	}
	cols := make([]table.ColumnInfo, len(columns))
	for i, c := range columns {
		cols[i] = c.Clone()
	}
	evals := make([]Evaluator, len(evaluators))
	copy(evals, evaluators)
	return &ExpressionSupplement{columns: cols, evaluators: evals}, nil
}

func (s *ExpressionSupplement) ColumnCount() int { return len(s.columns) }

func (s *ExpressionSupplement) Column(icol int) table.ColumnInfo { return s.columns[icol].Clone() }

func (s *ExpressionSupplement) Cells(baseRow []any) ([]any, error) {
	out := make([]any, len(s.evaluators))
	for i, e := range s.evaluators {
		v, err := e.Evaluate(baseRow)
		if err != nil {
			return nil, &ColumnEvaluationError{Column: s.columns[i].Name, Err: err}
		}
		v, err = table.Coerce(s.columns[i], v)
		if err != nil {
			return nil, &ColumnEvaluationError{Column: s.columns[i].Name, Err: err}
		}
		out[i] = v
	}
	return out, nil
}
