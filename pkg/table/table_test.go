package table

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleColumns() []ColumnInfo {
	flux := NewColumnInfo("flux", TypeDouble)
	flux.Unit = "Jy"
	mag := NewColumnInfo("mag", TypeFloat)
	mag.Shape = []int{-1}
	return []ColumnInfo{
		NewColumnInfo("id", TypeLong),
		NewColumnInfo("name", TypeString),
		flux,
		mag,
	}
}

func newExampleTable(t *testing.T, n int) *ColumnarTable {
	t.Helper()
	tbl, err := NewColumnarTable("example", exampleColumns())
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		var name any = "row" + string(rune('a'+i%26))
		if i%5 == 4 {
			name = nil
		}
		err := tbl.AppendRow([]any{int64(i), name, float64(i) * 1.5, []float32{float32(i), -float32(i)}})
		require.NoError(t, err)
	}
	return tbl
}

func TestRowSequenceStateDiscipline(t *testing.T) {
	tbl := newExampleTable(t, 2)
	seq, err := tbl.RowSequence()
	require.NoError(t, err)

	_, err = seq.Cell(0)
	assert.ErrorIs(t, err, ErrNoCurrentRow)
	_, err = seq.Row()
	assert.ErrorIs(t, err, ErrNoCurrentRow)

	for i := 0; i < 2; i++ {
		ok, err := seq.Next()
		require.NoError(t, err)
		require.True(t, ok)
	}

	_, err = seq.Cell(4)
	var bounds *BoundsError
	require.True(t, errors.As(err, &bounds))
	assert.Equal(t, "column", bounds.What)

	ok, err := seq.Next()
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = seq.Next()
	require.NoError(t, err)
	require.False(t, ok)

	_, err = seq.Row()
	assert.ErrorIs(t, err, ErrNoCurrentRow)

	require.NoError(t, seq.Close())
	require.NoError(t, seq.Close())

	_, err = seq.Next()
	assert.ErrorIs(t, err, ErrSequenceClosed)
	_, err = seq.Cell(0)
	assert.ErrorIs(t, err, ErrSequenceClosed)
}

func TestEmptyTableSequence(t *testing.T) {
	tbl := newExampleTable(t, 0)
	seq, err := tbl.RowSequence()
	require.NoError(t, err)
	defer seq.Close()

	ok, err := seq.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRandomAndSequentialAgree(t *testing.T) {
	tbl := newExampleTable(t, 23)
	rows, err := ReadAll(tbl)
	require.NoError(t, err)
	require.Len(t, rows, 23)

	for i, seqRow := range rows {
		row, err := tbl.Row(int64(i))
		require.NoError(t, err)
		assert.Equal(t, seqRow, row)
		for icol := range row {
			cell, err := tbl.Cell(int64(i), icol)
			require.NoError(t, err)
			assert.Equal(t, row[icol], cell)
		}
	}

	_, err = tbl.Row(23)
	var bounds *BoundsError
	require.True(t, errors.As(err, &bounds))
	assert.Equal(t, "row", bounds.What)
}

func TestSequencesAreIndependent(t *testing.T) {
	tbl := newExampleTable(t, 3)
	a, _ := tbl.RowSequence()
	b, _ := tbl.RowSequence()
	defer a.Close()
	defer b.Close()

	a.Next()
	a.Next()
	b.Next()

	va, err := a.Cell(0)
	require.NoError(t, err)
	vb, err := b.Cell(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), va)
	assert.Equal(t, int64(0), vb)
}

func TestColumnarTableNullsAndArrays(t *testing.T) {
	tbl := newExampleTable(t, 5)

	name, err := tbl.Cell(4, 1)
	require.NoError(t, err)
	assert.Nil(t, name)

	name, err = tbl.Cell(3, 1)
	require.NoError(t, err)
	assert.Equal(t, "rowd", name)

	mag, err := tbl.Cell(2, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, -2}, mag)

	err = tbl.AppendRow([]any{int64(1), "x", 1.0})
	assert.Error(t, err)
	err = tbl.AppendRow([]any{int32(1), "x", 1.0, nil})
	assert.Error(t, err)
	assert.Equal(t, int64(5), tbl.RowCount())
}

func TestMaterialize(t *testing.T) {
	src := newExampleTable(t, 4)
	src.SetParam(Param{Name: "epoch", Value: 2000.0})

	cp, err := Materialize(src)
	require.NoError(t, err)
	assert.Equal(t, src.RowCount(), cp.RowCount())
	assert.Equal(t, "example", cp.Name())
	assert.Equal(t, src.Params(), cp.Params())

	want, _ := ReadAll(src)
	got, _ := ReadAll(cp)
	assert.Equal(t, want, got)

	head, err := ReadRows(src, 2)
	require.NoError(t, err)
	assert.Len(t, head, 2)

	all, err := ReadRows(src, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, all, int(src.RowCount()))
	assert.Equal(t, len(all), cap(all))
}

func TestColumnIdentifier(t *testing.T) {
	cols := []ColumnInfo{
		NewColumnInfo("RA", TypeDouble),
		NewColumnInfo("Dec", TypeDouble),
		NewColumnInfo("flag", TypeBoolean),
		NewColumnInfo("flag", TypeInt),
		NewColumnInfo("Mag", TypeFloat),
		NewColumnInfo("mag", TypeFloat),
	}
	tbl, err := NewColumnarTable("ids", cols)
	require.NoError(t, err)
	ids := NewColumnIdentifier(tbl)

	tests := []struct {
		id        string
		expected  int
		ambiguous bool
		unknown   bool
	}{
		{id: "RA", expected: 0},
		{id: "ra", expected: 0},
		{id: "$2", expected: 1},
		{id: "DEC", expected: 1},
		{id: "Mag", expected: 4},
		{id: "mag", expected: 5},
		{id: "MAG", ambiguous: true},
		{id: "flag", ambiguous: true},
		{id: "$7", unknown: true},
		{id: "$0", unknown: true},
		{id: "nope", unknown: true},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			idx, err := ids.Index(tc.id)
			switch {
			case tc.ambiguous:
				var amb *AmbiguousColumnError
				require.True(t, errors.As(err, &amb), "got %v", err)
			case tc.unknown:
				var unk *UnknownColumnError
				require.True(t, errors.As(err, &unk), "got %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.expected, idx)
			}
		})
	}
}

func TestShapeParsing(t *testing.T) {
	shape, err := ParseShape("3,3,*")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, -1}, shape)
	assert.Equal(t, "3,3,*", FormatShape(shape))

	for _, bad := range []string{"", "*,3", "a", "-2", "3,,4"} {
		_, err := ParseShape(bad)
		assert.Error(t, err, bad)
	}
}

func TestReplacePositionalRefs(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{"$1 * 2", "c1 * 2"},
		{"$12+$3", "c12+c3"},
		{`CONCAT(name, "$5")`, `CONCAT(name, "$5")`},
		{"`$2` + $2", "`$2` + c2"},
		{"'$' == $4", "'$' == c4"},
		{"$ 1", "$ 1"},
		{"x /* $1 */ + $2", "x /* $1 */ + c2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ReplacePositionalRefs(tt.src, "c"), tt.src)
	}
}

func TestCheckShape(t *testing.T) {
	for _, good := range [][]int{{3}, {-1}, {2, 0, -1}} {
		assert.NoError(t, CheckShape(good), FormatShape(good))
	}
	for _, bad := range [][]int{{}, {-2}, {-1, 3}, {3, -5}} {
		assert.Error(t, CheckShape(bad), FormatShape(bad))
	}
}

func TestAccepts(t *testing.T) {
	vec := NewColumnInfo("v", TypeInt)
	vec.Shape = []int{3}
	grid := NewColumnInfo("g", TypeDouble)
	grid.Shape = []int{2, -1}

	assert.True(t, vec.Accepts([]int32{1, 2, 3}))
	assert.False(t, vec.Accepts([]int32{1, 2}))
	assert.False(t, vec.Accepts([]int64{1, 2, 3}))
	assert.True(t, grid.Accepts([]float64{1, 2, 3, 4}))
	assert.False(t, grid.Accepts([]float64{1, 2, 3}))
	assert.True(t, grid.Accepts(nil))
	assert.False(t, NewColumnInfo("s", TypeShort).Accepts(int32(1)))
}

func TestFormatValueRoundTrip(t *testing.T) {
	arr := NewColumnInfo("a", TypeDouble)
	arr.Shape = []int{-1}

	tests := []struct {
		col   ColumnInfo
		value any
	}{
		{NewColumnInfo("b", TypeBoolean), true},
		{NewColumnInfo("y", TypeByte), uint8(200)},
		{NewColumnInfo("s", TypeShort), int16(-12)},
		{NewColumnInfo("i", TypeInt), int32(math.MaxInt32)},
		{NewColumnInfo("l", TypeLong), int64(math.MinInt64)},
		{NewColumnInfo("f", TypeFloat), float32(0.1)},
		{NewColumnInfo("d", TypeDouble), 1.0 / 3.0},
		{NewColumnInfo("d", TypeDouble), 1e-300},
		{NewColumnInfo("str", TypeString), "hello"},
		{arr, []float64{1.25, -2, 3e10}},
		{NewColumnInfo("n", TypeLong), nil},
	}

	for _, tc := range tests {
		txt := tc.col.FormatValue(tc.value, 0)
		back, err := tc.col.ParseValue(txt)
		require.NoError(t, err, txt)
		assert.Equal(t, tc.value, back, txt)
	}

	nan, _ := NewColumnInfo("d", TypeDouble).ParseValue(NewColumnInfo("d", TypeDouble).FormatValue(math.NaN(), 0))
	assert.True(t, math.IsNaN(nan.(float64)))
}

func TestFormatValueTruncation(t *testing.T) {
	col := NewColumnInfo("s", TypeString)
	assert.Equal(t, "abcdefg", col.FormatValue("abcdefg", 10))
	assert.Equal(t, "abc...", col.FormatValue("abcdefghij", 6))
	assert.Equal(t, "ab", col.FormatValue("abcdefghij", 2))
	assert.Equal(t, "", col.FormatValue(nil, 10))
	assert.Equal(t, "(1, 2)", NewColumnInfo("v", TypeInt).FormatValue([]int32{1, 2}, 0))
}

func TestValidationError(t *testing.T) {
	ve := &ValidationError{}
	assert.NoError(t, ve.OrNil())

	ve.Add("STREAM not child of DATA", "TABLE/STREAM")
	ve.Extend(errors.New("plain"))
	ve.Extend(NewVErr("nested", "ctx"))

	require.True(t, ve.HasProblems())
	assert.Len(t, ve.Problems, 3)
	assert.Equal(t, "ctx", ve.Problems[2].Context)
	assert.Contains(t, ve.Error(), "3 problems")
	assert.Equal(t, "validation failed: x (at y)", NewVErr("x", "y").Error())
}
