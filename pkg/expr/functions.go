package expr

import (
	"fmt"
	"math"
	"strings"

	"tablekit/pkg/table"
)

type FunctionName string

const (
	StrLen  FunctionName = "STRLEN"
	Concat  FunctionName = "CONCAT"
	Replace FunctionName = "REPLACE"
	Upper   FunctionName = "UPPER"
	Lower   FunctionName = "LOWER"
	Abs     FunctionName = "ABS"
	Sqrt    FunctionName = "SQRT"
	Log10   FunctionName = "LOG10"
	Pow     FunctionName = "POW"
)

func FunctionNameFromString(name string) (FunctionName, error) {
	switch fn := FunctionName(strings.ToUpper(name)); fn {
	case StrLen, Concat, Replace, Upper, Lower, Abs, Sqrt, Log10, Pow:
		return fn, nil
	}
	return "", fmt.Errorf("unknown function: %s", name)
}

type FunctionExpr struct {
	Name      FunctionName
	Arguments []Expression
	resType   table.ValueType
}

func NewFunction(name FunctionName, args []Expression) (*FunctionExpr, error) {
	var resType table.ValueType

	switch name {
	case StrLen:
		if len(args) != 1 {
			return nil, fmt.Errorf("STRLEN expects 1 argument, got %d", len(args))
		}
		if args[0].ResultType() != table.TypeString {
			return nil, fmt.Errorf("STRLEN argument must be a string, got %s", args[0].ResultType())
		}
		resType = table.TypeLong

	case Concat:
		if len(args) < 2 {
			return nil, fmt.Errorf("CONCAT expects at least 2 arguments")
		}
		for i, arg := range args {
			if arg.ResultType() != table.TypeString {
				return nil, fmt.Errorf("CONCAT argument %d must be a string, got %s", i, arg.ResultType())
			}
		}
		resType = table.TypeString

	case Upper, Lower:
		if len(args) != 1 || args[0].ResultType() != table.TypeString {
			return nil, fmt.Errorf("%s expects 1 string argument", name)
		}
		resType = table.TypeString

	case Replace:
		if len(args) != 3 {
			return nil, fmt.Errorf("REPLACE expects 3 arguments (source, old, new)")
		}
		for _, arg := range args {
			if arg.ResultType() != table.TypeString {
				return nil, fmt.Errorf("REPLACE arguments must be strings")
			}
		}
		resType = table.TypeString

	case Abs:
		if len(args) != 1 || !args[0].ResultType().IsNumeric() {
			return nil, fmt.Errorf("ABS expects 1 numeric argument")
		}
		resType = args[0].ResultType()

	case Sqrt, Log10:
		if len(args) != 1 || !args[0].ResultType().IsNumeric() {
			return nil, fmt.Errorf("%s expects 1 numeric argument", name)
		}
		resType = table.TypeDouble

	case Pow:
		if len(args) != 2 || !args[0].ResultType().IsNumeric() || !args[1].ResultType().IsNumeric() {
			return nil, fmt.Errorf("POW expects 2 numeric arguments")
		}
		resType = table.TypeDouble

	default:
		return nil, fmt.Errorf("unsupported function: %s", name)
	}

	return &FunctionExpr{
		Name:      name,
		Arguments: args,
		resType:   resType,
	}, nil
}

func (e *FunctionExpr) ResultType() table.ValueType { return e.resType }

func (e *FunctionExpr) GetUsedColumns() []int {
	var cols []int
	for _, arg := range e.Arguments {
		cols = append(cols, arg.GetUsedColumns()...)
	}
	return cols
}

func (e *FunctionExpr) Evaluate(row []any) (any, error) {
	args := make([]any, len(e.Arguments))
	for i, arg := range e.Arguments {
		v, err := arg.Evaluate(row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		args[i] = v
	}

	switch e.Name {
	case StrLen:
		return int64(len(args[0].(string))), nil
	case Concat:
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.(string))
		}
		return sb.String(), nil
	case Upper:
		return strings.ToUpper(args[0].(string)), nil
	case Lower:
		return strings.ToLower(args[0].(string)), nil
	case Replace:
		return strings.ReplaceAll(args[0].(string), args[1].(string), args[2].(string)), nil
	case Abs:
		if i, ok := args[0].(int64); ok {
			if i < 0 {
				return -i, nil
			}
			return i, nil
		}
		return math.Abs(toFloat(args[0])), nil
	case Sqrt:
		return math.Sqrt(toFloat(args[0])), nil
	case Log10:
		return math.Log10(toFloat(args[0])), nil
	case Pow:
		return math.Pow(toFloat(args[0]), toFloat(args[1])), nil
	}

	return nil, fmt.Errorf("function %s not implemented", e.Name)
}
