package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"tablekit/pkg/table"
)

const tolerance = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Abs(b))
}

func TestLinearCoefficients(t *testing.T) {
	tests := []struct {
		name      string
		points    [][3]float64
		intercept float64
		slope     float64
		corr      float64
	}{
		{"identity", [][3]float64{{1, 1, 1}, {2, 2, 1}, {3, 3, 1}}, 0, 1, 1},
		{"anticorrelated", [][3]float64{{0, 4, 1}, {1, 2, 1}, {2, 0, 1}}, 4, -2, -1},
		{"offset", [][3]float64{{0, 1, 1}, {1, 3, 1}, {2, 5, 1}, {3, 7, 1}}, 1, 2, 1},
		{"weights scale out", [][3]float64{{1, 1, 5}, {2, 2, 5}, {3, 3, 5}}, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s WXYStats
			for _, p := range tt.points {
				s.AddWeightedPoint(p[0], p[1], p[2])
			}
			c, m := s.LinearCoefficients()
			if !near(c, tt.intercept) || !near(m, tt.slope) {
				t.Errorf("Expected intercept %g slope %g, got %g %g", tt.intercept, tt.slope, c, m)
			}
			if r := s.Correlation(); !near(r, tt.corr) {
				t.Errorf("Expected correlation %g, got %g", tt.corr, r)
			}
		})
	}
}

func TestWeightsPullTheFit(t *testing.T) {
	var s WXYStats
	s.AddWeightedPoint(0, 0, 1)
	s.AddWeightedPoint(1, 1, 1)
	s.AddWeightedPoint(2, 10, 1000)
	s.AddWeightedPoint(3, 3, 1)

	var u WXYStats
	u.AddPoint(0, 0)
	u.AddPoint(1, 1)
	u.AddPoint(2, 10)
	u.AddPoint(3, 3)

	_, mw := s.LinearCoefficients()
	_, mu := u.LinearCoefficients()
	if mw == mu {
		t.Errorf("Expected weighting to change the slope, both %g", mw)
	}
	if s.Weight() != 1003 {
		t.Errorf("Expected total weight 1003, got %g", s.Weight())
	}
}

func TestConstantY(t *testing.T) {
	var s WXYStats
	s.AddPoint(1, 5)
	s.AddPoint(2, 5)
	s.AddPoint(3, 5)

	c, m := s.LinearCoefficients()
	if c != 5 || m != 0 {
		t.Errorf("Expected intercept 5 slope 0, got %g %g", c, m)
	}
	if r := s.Correlation(); !math.IsNaN(r) {
		t.Errorf("Expected NaN correlation for constant y, got %g", r)
	}
}

func TestDegenerateInput(t *testing.T) {
	var empty WXYStats
	c, m := empty.LinearCoefficients()
	if !math.IsNaN(c) || !math.IsNaN(m) || !math.IsNaN(empty.Correlation()) {
		t.Errorf("Expected NaN results with no points, got %g %g %g", c, m, empty.Correlation())
	}

	var sameX WXYStats
	sameX.AddPoint(2, 1)
	sameX.AddPoint(2, 3)
	_, m = sameX.LinearCoefficients()
	if !math.IsNaN(m) && !math.IsInf(m, 0) {
		t.Errorf("Expected undefined slope for constant x, got %g", m)
	}
}

func TestIgnoredPoints(t *testing.T) {
	var s WXYStats
	s.AddWeightedPoint(1, 1, 0)
	s.AddWeightedPoint(1, 1, -2)
	s.AddWeightedPoint(1, 1, math.NaN())
	s.AddWeightedPoint(1, 1, math.Inf(1))
	s.AddPoint(math.NaN(), 1)
	s.AddPoint(1, math.Inf(-1))
	if s.Count() != 0 {
		t.Errorf("Expected no accepted points, got %d", s.Count())
	}
	s.AddWeightedPoint(1, 1, 0.5)
	if s.Count() != 1 || s.Weight() != 0.5 {
		t.Errorf("Expected one point of weight 0.5, got %d %g", s.Count(), s.Weight())
	}
}

func TestMerge(t *testing.T) {
	var all, a, b WXYStats
	for i := 0; i < 10; i++ {
		x, y := float64(i), float64(i*i)
		all.AddPoint(x, y)
		if i%2 == 0 {
			a.AddPoint(x, y)
		} else {
			b.AddPoint(x, y)
		}
	}
	a.Merge(&b)
	if a != all {
		t.Errorf("Merged stats differ: %+v vs %+v", a, all)
	}
}

func fitTable(t *testing.T) *table.ColumnarTable {
	t.Helper()
	tbl, err := table.NewColumnarTable("fit", []table.ColumnInfo{
		table.NewColumnInfo("x", table.TypeInt),
		table.NewColumnInfo("y", table.TypeDouble),
		table.NewColumnInfo("w", table.TypeFloat),
		table.NewColumnInfo("label", table.TypeString),
	})
	if err != nil {
		t.Fatal(err)
	}
	rows := [][]any{
		{int32(1), 10.0, float32(1), "a"},
		{int32(10), 100.0, float32(1), "bb"},
		{int32(100), 1000.0, float32(1), nil},
		{nil, 5.0, float32(1), "c"},
		{int32(3), 7.0, nil, "dd"},
	}
	for _, row := range rows {
		if err := tbl.AppendRow(row); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestFitColumns(t *testing.T) {
	tbl := fitTable(t)

	fit, err := Fit(tbl, FitOptions{X: "x", Y: "y", Weight: "w", LogX: true, LogY: true})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if fit.Stats.Count() != 3 {
		t.Errorf("Expected 3 points, got %d", fit.Stats.Count())
	}
	c, m := fit.Coefficients()
	if !near(c, 1) || !near(m, 1) {
		t.Errorf("Expected log fit intercept 1 slope 1, got %g %g", c, m)
	}
	if y := fit.Y(1000); !near(y, 10000) {
		t.Errorf("Expected Y(1000) = 10000, got %g", y)
	}
	want := "log10(y) = 1 * log10(x) + 1; correlation = 1"
	if !strings.HasPrefix(fit.String(), "log10(y) = ") || !strings.Contains(fit.String(), "* log10(x) + ") {
		t.Errorf("Unexpected fit description %q (want shape %q)", fit.String(), want)
	}

	lin, err := Fit(tbl, FitOptions{X: "$1", Y: "Y"})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if lin.Stats.Count() != 4 {
		t.Errorf("Expected 4 points without weights, got %d", lin.Stats.Count())
	}
	if s := lin.String(); !strings.HasPrefix(s, "y = ") || !strings.Contains(s, " * x + ") {
		t.Errorf("Unexpected fit description %q", s)
	}
}

func TestFitErrors(t *testing.T) {
	tbl := fitTable(t)
	for _, opts := range []FitOptions{
		{X: "nope", Y: "y"},
		{X: "x", Y: "label"},
		{X: "x", Y: "y", Weight: "$9"},
	} {
		if _, err := Fit(tbl, opts); err == nil {
			t.Errorf("Expected error for %+v", opts)
		}
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(fitTable(t))
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if s.Rows != 5 || len(s.Columns) != 4 {
		t.Fatalf("Unexpected summary shape: %d rows %d columns", s.Rows, len(s.Columns))
	}

	x := s.Columns[0]
	if !x.Numeric() || x.Count != 4 || x.Nulls != 1 {
		t.Errorf("Unexpected x summary: %+v", x)
	}
	if x.Mean != 28.5 || x.Min != 1 || x.Max != 100 {
		t.Errorf("Expected mean 28.5 min 1 max 100, got %g %g %g", x.Mean, x.Min, x.Max)
	}

	label := s.Columns[3]
	if label.Numeric() || label.Count != 4 || label.Nulls != 1 || label.Bytes != 6 || label.ASCIIChars != 6 {
		t.Errorf("Unexpected label summary: %+v", label)
	}
	if !math.IsNaN(label.Mean) {
		t.Errorf("Expected NaN mean for string column, got %g", label.Mean)
	}

	var buf bytes.Buffer
	if err := s.Print(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Table 'fit': 5 rows",
		"[INT] Column 'x': Count = 4, Nulls = 1, Mean = 28.5000, Min = 1, Max = 100",
		"[STRING] Column 'label': Count = 4, Nulls = 1, ASCII Char Count = 6 (Total Bytes: 6)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	tbl, err := table.NewColumnarTable("empty", []table.ColumnInfo{table.NewColumnInfo("v", table.TypeDouble)})
	if err != nil {
		t.Fatal(err)
	}
	s, err := Summarize(tbl)
	if err != nil {
		t.Fatal(err)
	}
	v := s.Columns[0]
	if v.Count != 0 || !math.IsNaN(v.Mean) || !math.IsNaN(v.Min) || !math.IsNaN(v.Max) {
		t.Errorf("Unexpected empty summary: %+v", v)
	}
}
