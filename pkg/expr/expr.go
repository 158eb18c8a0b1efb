// Package expr implements a small typed expression language evaluated
// against one table row at a time.
//
// Values flowing through an expression are normalised: integer cells become
// int64, floating cells float64. A null operand makes the result null.
package expr

import (
	"sort"

	"tablekit/pkg/table"
)

type Expression interface {
	Evaluate(row []any) (any, error)
	ResultType() table.ValueType
	GetUsedColumns() []int
}

func GetUsedColumnsFromExpressions(exprs []Expression) []int {
	uniqueCols := make(map[int]struct{})
	for _, e := range exprs {
		cols := e.GetUsedColumns()
		for _, col := range cols {
			uniqueCols[col] = struct{}{}
		}
	}
	res := make([]int, 0, len(uniqueCols))
	for col := range uniqueCols {
		res = append(res, col)
	}
	sort.Ints(res)
	return res
}

func normalize(v any) any {
	if i, ok := table.ToInt64(v); ok {
		return i
	}
	if f, ok := v.(float32); ok {
		return float64(f)
	}
	return v
}

func normalizeType(t table.ValueType) table.ValueType {
	switch {
	case t.IsInteger():
		return table.TypeLong
	case t.IsFloating():
		return table.TypeDouble
	}
	return t
}

func toFloat(v any) float64 {
	f, _ := table.ToFloat64(v)
	return f
}
