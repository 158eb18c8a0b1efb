package stats

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"tablekit/pkg/logging"
	"tablekit/pkg/table"
)

var ErrNotNumeric = errors.New("column is not a numeric scalar")

// FitOptions selects the columns of a linear fit. Weight is optional; rows
// with a null weight are ignored. LogX and LogY fit against log10 of the
// respective coordinate.
type FitOptions struct {
	X      string
	Y      string
	Weight string
	LogX   bool
	LogY   bool
}

// LinearFit is the result of fitting a line to two table columns.
type LinearFit struct {
	Stats WXYStats
	LogX  bool
	LogY  bool
}

// Fit accumulates the selected columns of t in one pass. Rows with a null
// or non-finite coordinate do not contribute.
func Fit(t table.Table, opts FitOptions) (*LinearFit, error) {
	ids := table.NewColumnIdentifier(t)
	names := []string{opts.X, opts.Y}
	if opts.Weight != "" {
		names = append(names, opts.Weight)
	}
	icols, err := ids.Indices(names)
	if err != nil {
		return nil, err
	}
	for _, icol := range icols {
		col := t.Column(icol)
		if col.IsArray() || !col.Type.IsNumeric() {
			return nil, fmt.Errorf("%w: %s (%s)", ErrNotNumeric, col.Name, col.Type)
		}
	}

	fit := &LinearFit{LogX: opts.LogX, LogY: opts.LogY}
	err = table.ForEachRow(t, func(row []any) error {
		x, okx := table.ToFloat64(row[icols[0]])
		y, oky := table.ToFloat64(row[icols[1]])
		if !okx || !oky {
			return nil
		}
		if opts.LogX {
			x = math.Log10(x)
		}
		if opts.LogY {
			y = math.Log10(y)
		}
		w := 1.0
		if len(icols) > 2 {
			var ok bool
			if w, ok = table.ToFloat64(row[icols[2]]); !ok {
				return nil
			}
		}
		fit.Stats.AddWeightedPoint(x, y, w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.WithComponent("stats").Debug("linear fit", "table", t.Name(), "x", opts.X, "y", opts.Y, "points", fit.Stats.Count())
	return fit, nil
}

func (f *LinearFit) Coefficients() (intercept, slope float64) {
	return f.Stats.LinearCoefficients()
}

func (f *LinearFit) Correlation() float64 {
	return f.Stats.Correlation()
}

// Y evaluates the fitted line at x in the original, untransformed units.
func (f *LinearFit) Y(x float64) float64 {
	c, m := f.Coefficients()
	if f.LogX {
		x = math.Log10(x)
	}
	y := c + m*x
	if f.LogY {
		return math.Pow(10, y)
	}
	return y
}

func (f *LinearFit) String() string {
	c, m := f.Coefficients()
	xl, yl := "x", "y"
	if f.LogX {
		xl = "log10(x)"
	}
	if f.LogY {
		yl = "log10(y)"
	}
	var sb strings.Builder
	sb.WriteString(yl)
	sb.WriteString(" = ")
	sb.WriteString(formatFloat(m))
	sb.WriteString(" * ")
	sb.WriteString(xl)
	sb.WriteString(" + ")
	sb.WriteString(formatFloat(c))
	sb.WriteString("; correlation = ")
	sb.WriteString(formatFloat(f.Correlation()))
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
