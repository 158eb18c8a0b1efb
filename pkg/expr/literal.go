package expr

import (
	"fmt"

	"tablekit/pkg/table"
)

type LiteralExpr struct {
	Value any
	Type  table.ValueType
}

func NewLiteral(v any) (*LiteralExpr, error) {
	switch x := v.(type) {
	case int64:
		return &LiteralExpr{Value: x, Type: table.TypeLong}, nil
	case float64:
		return &LiteralExpr{Value: x, Type: table.TypeDouble}, nil
	case string:
		return &LiteralExpr{Value: x, Type: table.TypeString}, nil
	case bool:
		return &LiteralExpr{Value: x, Type: table.TypeBoolean}, nil
	}
	return nil, fmt.Errorf("unsupported literal type: %T", v)
}

func (e *LiteralExpr) ResultType() table.ValueType { return e.Type }

func (e *LiteralExpr) GetUsedColumns() []int {
	return nil
}

func (e *LiteralExpr) Evaluate([]any) (any, error) {
	return e.Value, nil
}
