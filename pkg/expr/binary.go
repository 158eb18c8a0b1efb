package expr

import (
	"fmt"
	"math"

	"tablekit/pkg/table"
)

type BinaryOperator int

const (
	Add BinaryOperator = iota
	Subtract
	Multiply
	Divide
	Modulo
	And
	Or
	Equal
	NotEqual
	LessThan
	LessEqual
	GreaterThan
	GreaterEqual
)

func (o BinaryOperator) String() string {
	var toString = map[BinaryOperator]string{
		Add:          "+",
		Subtract:     "-",
		Multiply:     "*",
		Divide:       "/",
		Modulo:       "%",
		And:          "&&",
		Or:           "||",
		Equal:        "==",
		NotEqual:     "!=",
		LessThan:     "<",
		LessEqual:    "<=",
		GreaterThan:  ">",
		GreaterEqual: ">=",
	}
	stringVal, ok := toString[o]
	if !ok {
		return "UNKNOWN"
	}
	return stringVal
}

func BinaryOpFromString(op string) (BinaryOperator, error) {
	var fromString = map[string]BinaryOperator{
		"+":  Add,
		"-":  Subtract,
		"*":  Multiply,
		"/":  Divide,
		"%":  Modulo,
		"&&": And,
		"||": Or,
		"==": Equal,
		"!=": NotEqual,
		"<":  LessThan,
		"<=": LessEqual,
		">":  GreaterThan,
		">=": GreaterEqual,
	}
	operator, ok := fromString[op]
	if !ok {
		return 0, fmt.Errorf("unknown binary operator: %s", op)
	}
	return operator, nil
}

type BinaryOpExpr struct {
	Left     Expression
	Right    Expression
	Operator BinaryOperator
	resType  table.ValueType
}

func NewBinaryOp(left, right Expression, op BinaryOperator) (*BinaryOpExpr, error) {
	lt := left.ResultType()
	rt := right.ResultType()

	var resType table.ValueType

	switch op {
	case Add, Subtract, Multiply, Divide:
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return nil, fmt.Errorf("operator %s requires numeric operands, got %s and %s", op, lt, rt)
		}
		resType = table.TypeDouble
		if lt == table.TypeLong && rt == table.TypeLong {
			resType = table.TypeLong
		}

	case Modulo:
		if lt != table.TypeLong || rt != table.TypeLong {
			return nil, fmt.Errorf("operator %s requires integer operands, got %s and %s", op, lt, rt)
		}
		resType = table.TypeLong

	case Equal, NotEqual:
		if lt != rt && !(lt.IsNumeric() && rt.IsNumeric()) {
			return nil, fmt.Errorf("comparison %s requires compatible types, got %s and %s", op, lt, rt)
		}
		resType = table.TypeBoolean

	case LessThan, LessEqual, GreaterThan, GreaterEqual:
		ordered := (lt.IsNumeric() && rt.IsNumeric()) || (lt == table.TypeString && rt == table.TypeString)
		if !ordered {
			return nil, fmt.Errorf("comparison %s requires numeric or string operands, got %s and %s", op, lt, rt)
		}
		resType = table.TypeBoolean

	case And, Or:
		if lt != table.TypeBoolean || rt != table.TypeBoolean {
			return nil, fmt.Errorf("logical operator %s requires boolean operands", op)
		}
		resType = table.TypeBoolean
	default:
		return nil, fmt.Errorf("unsupported binary operator: %s", op)
	}

	return &BinaryOpExpr{
		Left:     left,
		Right:    right,
		Operator: op,
		resType:  resType,
	}, nil
}

func (e *BinaryOpExpr) ResultType() table.ValueType { return e.resType }

func (e *BinaryOpExpr) GetUsedColumns() []int {
	leftCols := e.Left.GetUsedColumns()
	rightCols := e.Right.GetUsedColumns()
	return append(leftCols, rightCols...)
}

func (e *BinaryOpExpr) Evaluate(row []any) (any, error) {
	l, err := e.Left.Evaluate(row)
	if err != nil {
		return nil, err
	}

	// short circuit before looking at the right operand
	if lb, ok := l.(bool); ok {
		if e.Operator == And && !lb {
			return false, nil
		}
		if e.Operator == Or && lb {
			return true, nil
		}
	}

	r, err := e.Right.Evaluate(row)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}

	switch e.Operator {
	case Add, Subtract, Multiply, Divide, Modulo:
		return e.evaluateArithmetic(l, r)
	case And, Or:
		return e.evaluateLogical(l, r)
	case Equal, NotEqual, LessThan, LessEqual, GreaterThan, GreaterEqual:
		return e.evaluateComparison(l, r)
	}

	return nil, fmt.Errorf("execution for %s not implemented", e.Operator)
}

func (e *BinaryOpExpr) evaluateArithmetic(l, r any) (any, error) {
	if e.resType == table.TypeLong {
		li, ok1 := l.(int64)
		ri, ok2 := r.(int64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("one of the operands is not an integer")
		}
		switch e.Operator {
		case Add:
			return li + ri, nil
		case Subtract:
			return li - ri, nil
		case Multiply:
			return li * ri, nil
		case Divide:
			if ri == 0 {
				return nil, fmt.Errorf("integer division by zero")
			}
			return li / ri, nil
		case Modulo:
			if ri == 0 {
				return nil, fmt.Errorf("integer modulo by zero")
			}
			return li % ri, nil
		}
	}

	lf, rf := toFloat(l), toFloat(r)
	switch e.Operator {
	case Add:
		return lf + rf, nil
	case Subtract:
		return lf - rf, nil
	case Multiply:
		return lf * rf, nil
	case Divide:
		return lf / rf, nil
	case Modulo:
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unsupported arithmetic operator: %s", e.Operator)
}

func (e *BinaryOpExpr) evaluateLogical(l, r any) (any, error) {
	lb, ok1 := l.(bool)
	rb, ok2 := r.(bool)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("one of the operands is not boolean")
	}
	if e.Operator == And {
		return lb && rb, nil
	}
	return lb || rb, nil
}

func (e *BinaryOpExpr) evaluateComparison(l, r any) (any, error) {
	li, lIsInt := l.(int64)
	ri, rIsInt := r.(int64)
	if lIsInt && rIsInt {
		return compareOrdered(e.Operator, li, ri)
	}
	if lf, ok := table.ToFloat64(l); ok {
		rf, ok := table.ToFloat64(r)
		if !ok {
			return nil, fmt.Errorf("type mismatch in comparison")
		}
		return compareOrdered(e.Operator, lf, rf)
	}
	if ls, ok := l.(string); ok {
		rs, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("type mismatch in comparison")
		}
		return compareOrdered(e.Operator, ls, rs)
	}
	if lb, ok := l.(bool); ok {
		rb, ok := r.(bool)
		if !ok {
			return nil, fmt.Errorf("type mismatch in comparison")
		}
		switch e.Operator {
		case Equal:
			return lb == rb, nil
		case NotEqual:
			return lb != rb, nil
		}
	}
	return nil, fmt.Errorf("comparison %s not implemented for %T", e.Operator, l)
}

func compareOrdered[T int64 | float64 | string](op BinaryOperator, l, r T) (any, error) {
	switch op {
	case Equal:
		return l == r, nil
	case NotEqual:
		return l != r, nil
	case LessThan:
		return l < r, nil
	case LessEqual:
		return l <= r, nil
	case GreaterThan:
		return l > r, nil
	case GreaterEqual:
		return l >= r, nil
	}
	return nil, fmt.Errorf("unsupported comparison operator: %s", op)
}
