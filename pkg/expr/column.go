package expr

import (
	"fmt"

	"tablekit/pkg/table"
)

type ColumnRefExpr struct {
	ColName  string
	ColIndex int
	ColType  table.ValueType
}

func NewColumnRef(index int, info table.ColumnInfo) (*ColumnRefExpr, error) {
	if info.IsArray() {
		return nil, fmt.Errorf("array column %s cannot be used in an expression", info.Name)
	}
	return &ColumnRefExpr{
		ColName:  info.Name,
		ColIndex: index,
		ColType:  normalizeType(info.Type),
	}, nil
}

func (e *ColumnRefExpr) ResultType() table.ValueType { return e.ColType }

func (e *ColumnRefExpr) GetUsedColumns() []int {
	return []int{e.ColIndex}
}

func (e *ColumnRefExpr) Evaluate(row []any) (any, error) {
	if e.ColIndex >= len(row) {
		return nil, fmt.Errorf("internal: column %s index %d out of bounds for row of %d", e.ColName, e.ColIndex, len(row))
	}
	return normalize(row[e.ColIndex]), nil
}
