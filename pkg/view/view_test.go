package view

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekit/pkg/table"
)

// seqOnly hides the random access methods of the wrapped table.
type seqOnly struct {
	table.Table
}

func newABC(t *testing.T, n int) *table.ColumnarTable {
	t.Helper()
	tbl, err := table.NewColumnarTable("abc", []table.ColumnInfo{
		table.NewColumnInfo("A", table.TypeLong),
		table.NewColumnInfo("B", table.TypeDouble),
		table.NewColumnInfo("C", table.TypeString),
	})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, tbl.AppendRow([]any{int64(i), float64(i) / 2, fmt.Sprintf("c%d", i)}))
	}
	return tbl
}

func xySupplement(t *testing.T, calls *atomic.Int64) ColumnSupplement {
	t.Helper()
	sup, err := NewExpressionSupplement(
		[]table.ColumnInfo{
			table.NewColumnInfo("X", table.TypeLong),
			table.NewColumnInfo("Y", table.TypeDouble),
		},
		[]Evaluator{
			EvaluatorFunc(func(row []any) (any, error) {
				if calls != nil {
					calls.Add(1)
				}
				return row[0].(int64) * 10, nil
			}),
			EvaluatorFunc(func(row []any) (any, error) {
				return row[1].(float64) + 100, nil
			}),
		},
	)
	require.NoError(t, err)
	return sup
}

func columnNames(t table.Table) []string {
	names := make([]string, t.ColumnCount())
	for i := range names {
		names[i] = t.Column(i).Name
	}
	return names
}

func TestComposeColumnOrder(t *testing.T) {
	base := newABC(t, 3)
	sup := xySupplement(t, nil)

	tests := []struct {
		name     string
		pos      int
		remove   []int
		expected []string
	}{
		{"insert at 1", 1, nil, []string{"A", "X", "Y", "B", "C"}},
		{"insert at 1 removing B", 1, []int{1}, []string{"A", "X", "Y", "C"}},
		{"insert at start", 0, nil, []string{"X", "Y", "A", "B", "C"}},
		{"append", 3, nil, []string{"A", "B", "C", "X", "Y"}},
		{"append removing all", 3, []int{0, 1, 2}, []string{"X", "Y"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Compose(base, sup, tc.pos, tc.remove)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, columnNames(v))
			assert.Equal(t, base.RowCount(), v.RowCount())
		})
	}
}

func TestComposeRowContents(t *testing.T) {
	base := newABC(t, 3)
	v, err := Compose(base, xySupplement(t, nil), 1, []int{1})
	require.NoError(t, err)

	rows, err := table.ReadAll(v)
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{int64(0), int64(0), 100.0, "c0"},
		{int64(1), int64(10), 100.5, "c1"},
		{int64(2), int64(20), 101.0, "c2"},
	}, rows)
}

func TestComposeRejectsBadArguments(t *testing.T) {
	base := newABC(t, 1)
	sup := xySupplement(t, nil)

	for _, pos := range []int{-1, 4} {
		_, err := AddColumns(base, sup, pos)
		var bounds *table.BoundsError
		require.True(t, errors.As(err, &bounds), "pos %d", pos)
	}

	_, err := Compose(base, sup, 0, []int{3})
	var bounds *table.BoundsError
	assert.True(t, errors.As(err, &bounds))

	_, err = Compose(base, sup, 0, []int{1, 1})
	var ve *table.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestComposeKeepsAccessCapability(t *testing.T) {
	base := newABC(t, 5)
	sup := xySupplement(t, nil)

	random, err := AddColumns(base, sup, 2)
	require.NoError(t, err)
	_, ok := table.AsRandom(random)
	assert.True(t, ok)

	sequential, err := AddColumns(seqOnly{base}, sup, 2)
	require.NoError(t, err)
	_, ok = table.AsRandom(sequential)
	assert.False(t, ok)

	seqRows, err := table.ReadAll(sequential)
	require.NoError(t, err)
	require.Len(t, seqRows, 5)
}

func TestRandomAndSequentialAgreeOnViews(t *testing.T) {
	base := newABC(t, 17)
	v, err := Compose(base, xySupplement(t, nil), 1, []int{2})
	require.NoError(t, err)
	ra, ok := table.AsRandom(v)
	require.True(t, ok)

	rows, err := table.ReadAll(v)
	require.NoError(t, err)
	for i, seqRow := range rows {
		row, err := ra.Row(int64(i))
		require.NoError(t, err)
		assert.Equal(t, seqRow, row)
		for icol := range row {
			cell, err := ra.Cell(int64(i), icol)
			require.NoError(t, err)
			assert.Equal(t, row[icol], cell)
		}
	}
}

func TestSupplementEvaluatedLazily(t *testing.T) {
	var calls atomic.Int64
	v, err := AddColumns(seqOnly{newABC(t, 4)}, xySupplement(t, &calls), 3)
	require.NoError(t, err)

	seq, err := v.RowSequence()
	require.NoError(t, err)
	defer seq.Close()

	for {
		ok, err := seq.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		_, err = seq.Cell(0)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(0), calls.Load())

	seq2, err := v.RowSequence()
	require.NoError(t, err)
	defer seq2.Close()
	ok, err := seq2.Next()
	require.NoError(t, err)
	require.True(t, ok)
	x, err := seq2.Cell(3)
	require.NoError(t, err)
	y, err := seq2.Cell(4)
	require.NoError(t, err)
	_, err = seq2.Row()
	require.NoError(t, err)
	assert.Equal(t, int64(0), x)
	assert.Equal(t, 100.0, y)
	assert.Equal(t, int64(1), calls.Load())
}

func TestViewSequenceStateDiscipline(t *testing.T) {
	v, err := AddColumns(seqOnly{newABC(t, 1)}, xySupplement(t, nil), 0)
	require.NoError(t, err)
	seq, err := v.RowSequence()
	require.NoError(t, err)

	_, err = seq.Row()
	assert.ErrorIs(t, err, table.ErrNoCurrentRow)
	ok, _ := seq.Next()
	require.True(t, ok)
	ok, _ = seq.Next()
	require.False(t, ok)
	_, err = seq.Cell(0)
	assert.ErrorIs(t, err, table.ErrNoCurrentRow)

	require.NoError(t, seq.Close())
	require.NoError(t, seq.Close())
}

func TestEvaluatorErrorsAreColumnErrors(t *testing.T) {
	boom := errors.New("boom")
	sup, err := NewExpressionSupplement(
		[]table.ColumnInfo{table.NewColumnInfo("bad", table.TypeInt)},
		[]Evaluator{EvaluatorFunc(func([]any) (any, error) { return nil, boom })},
	)
	require.NoError(t, err)
	v, err := AddColumns(newABC(t, 2), sup, 0)
	require.NoError(t, err)

	_, err = table.ReadAll(v)
	var colErr *ColumnEvaluationError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, "bad", colErr.Column)
	assert.ErrorIs(t, err, boom)
}

func TestSupplementCoercesToDeclaredType(t *testing.T) {
	sup, err := NewExpressionSupplement(
		[]table.ColumnInfo{table.NewColumnInfo("small", table.TypeShort)},
		[]Evaluator{EvaluatorFunc(func(row []any) (any, error) { return row[0].(int64) + 1, nil })},
	)
	require.NoError(t, err)
	v, err := AddColumns(newABC(t, 2), sup, 3)
	require.NoError(t, err)
	ra, _ := table.AsRandom(v)

	cell, err := ra.Cell(1, 3)
	require.NoError(t, err)
	assert.Equal(t, int16(2), cell)
}

func TestRemoveAndPermute(t *testing.T) {
	base := newABC(t, 2)

	removed, err := RemoveColumns(base, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, columnNames(removed))

	perm, err := PermuteColumns(base, []int{2, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "A"}, columnNames(perm))
	rows, err := table.ReadAll(perm)
	require.NoError(t, err)
	assert.Equal(t, []any{"c1", int64(1), int64(1)}, rows[1])

	kept, err := KeepColumns(base, []int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, columnNames(kept))

	_, err = PermuteColumns(base, []int{5})
	assert.Error(t, err)
}

func TestHead(t *testing.T) {
	base := newABC(t, 10)

	h, err := Head(base, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.RowCount())
	rows, err := table.ReadAll(h)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	ra, ok := table.AsRandom(h)
	require.True(t, ok)
	_, err = ra.Row(3)
	assert.Error(t, err)

	long, err := Head(seqOnly{base}, 50)
	require.NoError(t, err)
	_, ok = table.AsRandom(long)
	assert.False(t, ok)
	rows, err = table.ReadAll(long)
	require.NoError(t, err)
	assert.Len(t, rows, 10)

	_, err = Head(base, -1)
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	base := newABC(t, 10)
	even := Select(base, EvaluatorFunc(func(row []any) (any, error) {
		return row[0].(int64)%2 == 0, nil
	}))
	assert.Equal(t, int64(-1), even.RowCount())
	_, ok := table.AsRandom(even)
	assert.False(t, ok)

	rows, err := table.ReadAll(even)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, int64(8), rows[4][0])

	notBool := Select(base, EvaluatorFunc(func([]any) (any, error) { return 1, nil }))
	_, err = table.ReadAll(notBool)
	assert.Error(t, err)
}

type stubCompiler struct{}

func (stubCompiler) Compile(expr string, columns []table.ColumnInfo) (Evaluator, table.ValueType, error) {
	if expr != "A*2" {
		return nil, 0, fmt.Errorf("unsupported expression %q", expr)
	}
	return EvaluatorFunc(func(row []any) (any, error) { return row[0].(int64) * 2, nil }), table.TypeLong, nil
}

func TestAddColumnStep(t *testing.T) {
	base := newABC(t, 2)

	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"default at end", []string{"D", "A*2"}, []string{"A", "B", "C", "D"}},
		{"after", []string{"-after", "A", "D", "A*2"}, []string{"A", "D", "B", "C"}},
		{"before", []string{"-before", "$3", "D", "A*2"}, []string{"A", "B", "D", "C"}},
		{"before first", []string{"-units", "m", "-before", "a", "D", "A*2"}, []string{"D", "A", "B", "C"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			step, rest, err := ParseAddColumnArgs(tc.args)
			require.NoError(t, err)
			assert.Empty(t, rest)

			v, err := step.Wrap(base, stubCompiler{})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, columnNames(v))

			ra, _ := table.AsRandom(v)
			icol := 0
			for i, n := range tc.expected {
				if n == "D" {
					icol = i
				}
			}
			cell, err := ra.Cell(1, icol)
			require.NoError(t, err)
			assert.Equal(t, int64(2), cell)
			assert.Equal(t, table.TypeLong, v.Column(icol).Type)
		})
	}
}

func TestAddColumnStepUnknownPlaceColumn(t *testing.T) {
	base := newABC(t, 1)
	step := &AddColumnStep{Expr: "A*2", Info: table.NewColumnInfo("D", table.TypeLong), PlaceColumn: "Z"}
	_, err := step.Wrap(base, stubCompiler{})
	var unk *table.UnknownColumnError
	assert.True(t, errors.As(err, &unk))

	step.PlaceColumn = ""
	step.Expr = "nonsense"
	_, err = step.Wrap(base, stubCompiler{})
	assert.Error(t, err)
}

func TestParseAddColumnArgs(t *testing.T) {
	step, rest, err := ParseAddColumnArgs([]string{
		"-ucd", "phot.mag", "-utype", "ut", "-desc", "a mag", "-shape", "3,*",
		"-elsize", "8", "-after", "B", "mag", "B+1", "trailing",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"trailing"}, rest)
	assert.Equal(t, "mag", step.Info.Name)
	assert.Equal(t, "B+1", step.Expr)
	assert.Equal(t, "phot.mag", step.Info.UCD)
	assert.Equal(t, "ut", step.Info.Utype)
	assert.Equal(t, "a mag", step.Info.Description)
	assert.Equal(t, []int{3, -1}, step.Info.Shape)
	assert.Equal(t, 8, step.Info.ElementSize)
	assert.Equal(t, "B", step.PlaceColumn)
	assert.True(t, step.After)

	bad := [][]string{
		{"onlyname"},
		{"-shape", "*,3", "x", "1"},
		{"-elsize", "big", "x", "1"},
	}
	for _, args := range bad {
		_, _, err := ParseAddColumnArgs(args)
		var argErr *ArgError
		assert.True(t, errors.As(err, &argErr), "%v", args)
	}
}
