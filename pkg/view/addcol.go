package view

import (
	"fmt"
	"strconv"

	"tablekit/pkg/table"
)

// Compiler turns expression text into an Evaluator over rows with the given
// columns, reporting the type of the values it produces.
type Compiler interface {
	Compile(expr string, columns []table.ColumnInfo) (Evaluator, table.ValueType, error)
}

// AddColumnStep adds one computed column to a table. With no PlaceColumn
// the column goes last; otherwise it goes just before the named column, or
// just after it when After is set.
type AddColumnStep struct {
	Expr        string
	Info        table.ColumnInfo
	PlaceColumn string
	After       bool
}

func (s *AddColumnStep) Position(base table.Table) (int, error) {
	if s.PlaceColumn == "" {
		return base.ColumnCount(), nil
	}
	iplace, err := table.NewColumnIdentifier(base).Index(s.PlaceColumn)
	if err != nil {
		return -1, err
	}
	if s.After {
		return iplace + 1, nil
	}
	return iplace, nil
}

func (s *AddColumnStep) Wrap(base table.Table, compiler Compiler) (table.Table, error) {
	pos, err := s.Position(base)
	if err != nil {
		return nil, err
	}
	eval, typ, err := compiler.Compile(s.Expr, table.Columns(base))
	if err != nil {
		return nil, fmt.Errorf("bad expression for column %s: %w", s.Info.Name, err)
	}
	info := s.Info.Clone()
	info.Type = typ
	sup, err := NewExpressionSupplement([]table.ColumnInfo{info}, []Evaluator{eval})
	if err != nil {
		return nil, err
	}
	return AddColumns(base, sup, pos)
}

type ArgError struct {
	Msg string
}

func (e *ArgError) Error() string {
	return e.Msg
}

// ParseAddColumnArgs reads an add-column specification of the form
//
//	[-after col-id | -before col-id] [-units u] [-ucd u] [-utype u]
//	[-desc d] [-shape n,n,*] [-elsize n] <name> <expr>
//
// from the front of args. Arguments following the expression are returned
// untouched.
func ParseAddColumnArgs(args []string) (*AddColumnStep, []string, error) {
	step := &AddColumnStep{Info: table.NewColumnInfo("", table.TypeDouble)}
	var name, expr string
	havePos := false

	i := 0
	for i < len(args) && (name == "" || expr == "") {
		arg := args[i]
		hasValue := i+1 < len(args)
		switch {
		case (arg == "-after" || arg == "-before") && !havePos && hasValue:
			step.After = arg == "-after"
			step.PlaceColumn = args[i+1]
			havePos = true
			i += 2
		case arg == "-units" && hasValue:
			step.Info.Unit = args[i+1]
			i += 2
		case arg == "-ucd" && hasValue:
			step.Info.UCD = args[i+1]
			i += 2
		case arg == "-utype" && hasValue:
			step.Info.Utype = args[i+1]
			i += 2
		case arg == "-desc" && hasValue:
			step.Info.Description = args[i+1]
			i += 2
		case arg == "-shape" && hasValue:
			shape, err := table.ParseShape(args[i+1])
			if err != nil {
				return nil, nil, &ArgError{Msg: fmt.Sprintf("bad -shape specification %q", args[i+1])}
			}
			step.Info.Shape = shape
			i += 2
		case arg == "-elsize" && hasValue:
			elsize, err := strconv.Atoi(args[i+1])
			if err != nil {
				return nil, nil, &ArgError{Msg: fmt.Sprintf("bad -elsize specification %q", args[i+1])}
			}
			if elsize >= 0 {
				step.Info.ElementSize = elsize
			}
			i += 2
		case name == "":
			name = arg
			i++
		default:
			expr = arg
			i++
		}
	}

	if name == "" || expr == "" {
		return nil, nil, &ArgError{Msg: "bad addcol specification: need <name> <expr>"}
	}
	step.Info.Name = name
	step.Expr = expr
	return step, args[i:], nil
}
