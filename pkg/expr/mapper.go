package expr

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"tablekit/pkg/table"
	"tablekit/pkg/view"
)

const positionalPrefix = "__col_"

// Mapper turns expression source text into an Expression over rows with a
// fixed set of columns. The source uses Go expression syntax; columns are
// referred to by name or as $N (1-based).
type Mapper struct {
	columns []table.ColumnInfo
	ids     *table.ColumnIdentifier
}

func NewMapper(columns []table.ColumnInfo) *Mapper {
	return &Mapper{
		columns: columns,
		ids:     table.IdentifierForColumns(columns),
	}
}

func (m *Mapper) Parse(src string) (Expression, error) {
	rewritten := table.ReplacePositionalRefs(src, positionalPrefix)
	node, err := parser.ParseExpr(rewritten)
	if err != nil {
		return nil, table.NewVErr(fmt.Sprintf("syntax error: %v", err), src)
	}
	return m.MapExpression(node)
}

func (m *Mapper) MapExpression(node ast.Expr) (Expression, error) {
	switch e := node.(type) {
	case *ast.ParenExpr:
		return m.MapExpression(e.X)
	case *ast.Ident:
		return m.mapIdent(e)
	case *ast.BasicLit:
		return m.mapLiteral(e)
	case *ast.BinaryExpr:
		return m.mapBinaryOp(e)
	case *ast.UnaryExpr:
		return m.mapUnaryOp(e)
	case *ast.CallExpr:
		return m.mapFunction(e)
	default:
		return nil, table.NewVErr(fmt.Sprintf("unsupported expression type: %T", e), "")
	}
}

func (m *Mapper) mapIdent(ident *ast.Ident) (Expression, error) {
	switch ident.Name {
	case "true":
		return &LiteralExpr{Value: true, Type: table.TypeBoolean}, nil
	case "false":
		return &LiteralExpr{Value: false, Type: table.TypeBoolean}, nil
	}

	id := ident.Name
	if strings.HasPrefix(id, positionalPrefix) {
		id = "$" + strings.TrimPrefix(id, positionalPrefix)
	}
	idx, err := m.ids.Index(id)
	if err != nil {
		return nil, table.NewVErr(err.Error(), id)
	}
	colRef, err := NewColumnRef(idx, m.columns[idx])
	if err != nil {
		return nil, table.NewVErr(err.Error(), id)
	}
	return colRef, nil
}

func (m *Mapper) mapLiteral(lit *ast.BasicLit) (Expression, error) {
	switch lit.Kind {
	case token.INT:
		v, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			return nil, table.NewVErr(fmt.Sprintf("bad integer literal: %v", err), lit.Value)
		}
		return &LiteralExpr{Value: v, Type: table.TypeLong}, nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, table.NewVErr(fmt.Sprintf("bad float literal: %v", err), lit.Value)
		}
		return &LiteralExpr{Value: v, Type: table.TypeDouble}, nil
	case token.STRING, token.CHAR:
		v, err := strconv.Unquote(lit.Value)
		if err != nil {
			return nil, table.NewVErr(fmt.Sprintf("bad string literal: %v", err), lit.Value)
		}
		return &LiteralExpr{Value: v, Type: table.TypeString}, nil
	default:
		return nil, table.NewVErr(fmt.Sprintf("unsupported literal: %s", lit.Value), "")
	}
}

func (m *Mapper) mapBinaryOp(bin *ast.BinaryExpr) (Expression, error) {
	ve := &table.ValidationError{}

	left, lErr := m.MapExpression(bin.X)
	if lErr != nil {
		ve.Extend(lErr)
	}

	right, rErr := m.MapExpression(bin.Y)
	if rErr != nil {
		ve.Extend(rErr)
	}

	if ve.HasProblems() {
		return nil, ve
	}

	op, err := BinaryOpFromString(bin.Op.String())
	if err != nil {
		return nil, table.NewVErr(err.Error(), "")
	}

	binExpr, err := NewBinaryOp(left, right, op)
	if err != nil {
		return nil, table.NewVErr(err.Error(), "")
	}

	return binExpr, nil
}

func (m *Mapper) mapUnaryOp(un *ast.UnaryExpr) (Expression, error) {
	operand, valErr := m.MapExpression(un.X)
	if valErr != nil {
		return nil, valErr
	}

	var op UnaryOperator
	switch un.Op {
	case token.ADD:
		if !operand.ResultType().IsNumeric() {
			return nil, table.NewVErr("unary + requires a number", "")
		}
		return operand, nil
	case token.SUB:
		op = Minus
	case token.NOT:
		op = Not
	default:
		return nil, table.NewVErr(fmt.Sprintf("unknown unary operator: %s", un.Op), "")
	}

	unExpr, err := NewUnaryOp(operand, op)
	if err != nil {
		return nil, table.NewVErr(err.Error(), "")
	}
	return unExpr, nil
}

func (m *Mapper) mapFunction(call *ast.CallExpr) (Expression, error) {
	ident, ok := call.Fun.(*ast.Ident)
	if !ok {
		return nil, table.NewVErr("function name must be a plain identifier", "")
	}

	ve := &table.ValidationError{}
	mappedArgs := make([]Expression, len(call.Args))

	for i, arg := range call.Args {
		mArg, err := m.MapExpression(arg)
		if err != nil {
			ve.Extend(err)
		} else {
			mappedArgs[i] = mArg
		}
	}

	funcName, err := FunctionNameFromString(ident.Name)
	if err != nil {
		ve.Add(err.Error(), ident.Name)
	}

	if ve.HasProblems() {
		return nil, ve
	}

	fnExpr, err := NewFunction(funcName, mappedArgs)
	if err != nil {
		return nil, table.NewVErr(err.Error(), ident.Name)
	}
	return fnExpr, nil
}

// Compiler compiles expressions of this package for computed columns.
type Compiler struct{}

func (Compiler) Compile(src string, columns []table.ColumnInfo) (view.Evaluator, table.ValueType, error) {
	e, err := NewMapper(columns).Parse(src)
	if err != nil {
		return nil, 0, err
	}
	return e, e.ResultType(), nil
}
