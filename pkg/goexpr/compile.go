// Package goexpr compiles computed-column expressions written as plain Go
// using the yaegi interpreter. Column values are bound to local variables
// with their natural Go types, so an expression such as
//
//	math.Hypot(RA, Dec) * 3600
//
// is evaluated with RA and Dec typed as float64. Columns whose names are not
// Go identifiers can be used as $N (1-based). The math, strings and strconv
// packages are available.
package goexpr

import (
	"fmt"
	"go/ast"
	"go/parser"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"tablekit/pkg/table"
	"tablekit/pkg/view"
)

const positionalPrefix = "__col_"

const source = `package tablekitexpr

import (
	"math"
	"strconv"
	"strings"
)

var _ = math.Pi
var _ = strconv.Itoa
var _ = strings.ToUpper

func Eval(__row []interface{}) interface{} {
%s	return %s
}
`

// Compiler compiles Go expressions. The interpreter gives no static result
// type, so the caller declares the type of the column being computed and
// results are coerced to it.
type Compiler struct {
	ResultType table.ValueType
}

func NewCompiler(resultType table.ValueType) *Compiler {
	return &Compiler{ResultType: resultType}
}

type binding struct {
	local string
	index int
}

func (c *Compiler) Compile(src string, columns []table.ColumnInfo) (view.Evaluator, table.ValueType, error) {
	if !c.ResultType.Valid() {
		return nil, 0, fmt.Errorf("invalid result type %d", c.ResultType)
	}
	rewritten := table.ReplacePositionalRefs(src, positionalPrefix)
	node, err := parser.ParseExpr(rewritten)
	if err != nil {
		return nil, 0, table.NewVErr(fmt.Sprintf("syntax error: %v", err), src)
	}

	bindings, err := resolve(node, columns)
	if err != nil {
		return nil, 0, err
	}

	var decls strings.Builder
	for _, b := range bindings {
		fmt.Fprintf(&decls, "\t%s, _ := __row[%d].(%s)\n\t_ = %s\n", b.local, b.index, goType(columns[b.index]), b.local)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, 0, fmt.Errorf("loading stdlib symbols: %w", err)
	}
	if _, err := i.Eval(fmt.Sprintf(source, decls.String(), rewritten)); err != nil {
		return nil, 0, table.NewVErr(err.Error(), src)
	}
	v, err := i.Eval("tablekitexpr.Eval")
	if err != nil {
		return nil, 0, fmt.Errorf("looking up compiled expression: %w", err)
	}
	fn, ok := v.Interface().(func([]interface{}) interface{})
	if !ok {
		return nil, 0, fmt.Errorf("compiled expression has unexpected type %s", v.Type())
	}

	used := make([]int, len(bindings))
	for k, b := range bindings {
		used[k] = b.index
	}
	return &evaluator{src: src, fn: fn, used: used, ncol: len(columns)}, c.ResultType, nil
}

// resolve finds the identifiers in the expression that name columns. Names
// following a selector dot are package members, not columns.
func resolve(node ast.Expr, columns []table.ColumnInfo) ([]binding, error) {
	ids := table.IdentifierForColumns(columns)
	seen := map[string]bool{}
	var bindings []binding
	ve := &table.ValidationError{}

	var visit func(n ast.Node) bool
	visit = func(n ast.Node) bool {
		switch e := n.(type) {
		case *ast.SelectorExpr:
			ast.Inspect(e.X, visit)
			return false
		case *ast.Ident:
			if seen[e.Name] {
				return false
			}
			seen[e.Name] = true
			id := e.Name
			positional := strings.HasPrefix(id, positionalPrefix)
			if positional {
				id = "$" + strings.TrimPrefix(id, positionalPrefix)
			}
			idx, err := ids.Index(id)
			if err != nil {
				if positional {
					ve.Add(err.Error(), id)
				}
				if _, ambiguous := err.(*table.AmbiguousColumnError); ambiguous {
					ve.Add(err.Error(), id)
				}
				return false
			}
			bindings = append(bindings, binding{local: e.Name, index: idx})
		}
		return true
	}
	ast.Inspect(node, visit)

	if ve.HasProblems() {
		return nil, ve
	}
	sort.Slice(bindings, func(a, b int) bool { return bindings[a].index < bindings[b].index })
	return bindings, nil
}

func goType(info table.ColumnInfo) string {
	var scalar string
	switch info.Type {
	case table.TypeBoolean:
		scalar = "bool"
	case table.TypeByte:
		scalar = "uint8"
	case table.TypeShort:
		scalar = "int16"
	case table.TypeInt:
		scalar = "int32"
	case table.TypeLong:
		scalar = "int64"
	case table.TypeFloat:
		scalar = "float32"
	case table.TypeDouble:
		scalar = "float64"
	default:
		scalar = "string"
	}
	if info.IsArray() {
		return "[]" + scalar
	}
	return scalar
}

type evaluator struct {
	src  string
	fn   func([]interface{}) interface{}
	used []int
	ncol int

	mu sync.Mutex
}

func (e *evaluator) Evaluate(row []any) (result any, err error) {
	if len(row) != e.ncol {
		return nil, fmt.Errorf("row has %d cells, expression compiled for %d", len(row), e.ncol)
	}
	for _, i := range e.used {
		if row[i] == nil {
			return nil, nil
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("evaluating %q: %v", e.src, r)
		}
	}()
	return e.fn(row), nil
}
