package expr

import (
	"fmt"

	"tablekit/pkg/table"
)

type UnaryOperator int

const (
	Not UnaryOperator = iota
	Minus
)

func (o UnaryOperator) String() string {
	var toString = map[UnaryOperator]string{
		Not:   "!",
		Minus: "-",
	}
	stringVal, ok := toString[o]
	if !ok {
		return "UNKNOWN"
	}
	return stringVal
}

type UnaryOpExpr struct {
	Operand  Expression
	Operator UnaryOperator
	resType  table.ValueType
}

func NewUnaryOp(operand Expression, op UnaryOperator) (*UnaryOpExpr, error) {
	ot := operand.ResultType()
	var resType table.ValueType

	switch op {
	case Not:
		if ot != table.TypeBoolean {
			return nil, fmt.Errorf("! operator requires boolean, got %s", ot)
		}
		resType = table.TypeBoolean
	case Minus:
		if !ot.IsNumeric() {
			return nil, fmt.Errorf("- operator requires a number, got %s", ot)
		}
		resType = ot
	default:
		return nil, fmt.Errorf("unsupported unary operator: %s", op)
	}

	return &UnaryOpExpr{
		Operand:  operand,
		Operator: op,
		resType:  resType,
	}, nil
}

func (e *UnaryOpExpr) ResultType() table.ValueType { return e.resType }

func (e *UnaryOpExpr) GetUsedColumns() []int {
	return e.Operand.GetUsedColumns()
}

func (e *UnaryOpExpr) Evaluate(row []any) (any, error) {
	v, err := e.Operand.Evaluate(row)
	if err != nil || v == nil {
		return nil, err
	}

	switch e.Operator {
	case Not:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("operand is not boolean")
		}
		return !b, nil

	case Minus:
		switch x := v.(type) {
		case int64:
			return -x, nil
		case float64:
			return -x, nil
		}
		return nil, fmt.Errorf("operand is not numeric")
	}

	return nil, fmt.Errorf("execution for %s not implemented", e.Operator)
}
