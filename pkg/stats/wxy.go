// Package stats accumulates bivariate statistics for weighted linear
// regression and summarises table columns.
package stats

import "math"

// WXYStats accumulates weighted sums of x, y and their products. The zero
// value is ready to use. Degenerate input is not an error: results that
// cannot be determined come out as NaN.
type WXYStats struct {
	n    int64
	sw   float64
	swX  float64
	swY  float64
	swXX float64
	swYY float64
	swXY float64
}

// AddPoint adds a point of unit weight.
func (s *WXYStats) AddPoint(x, y float64) {
	s.AddWeightedPoint(x, y, 1)
}

// AddWeightedPoint adds a point of weight w. Points are ignored unless w is
// positive and finite and both coordinates are finite.
func (s *WXYStats) AddWeightedPoint(x, y, w float64) {
	if !(w > 0) || math.IsInf(w, 0) || !isFinite(x) || !isFinite(y) {
		return
	}
	s.n++
	s.sw += w
	s.swX += w * x
	s.swY += w * y
	s.swXX += w * x * x
	s.swYY += w * y * y
	s.swXY += w * x * y
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Count is the number of points accepted so far.
func (s *WXYStats) Count() int64 { return s.n }

// Weight is the total weight of accepted points.
func (s *WXYStats) Weight() float64 { return s.sw }

// LinearCoefficients solves the weighted least squares normal equations
// for y = intercept + slope * x.
func (s *WXYStats) LinearCoefficients() (intercept, slope float64) {
	d := s.sw*s.swXX - s.swX*s.swX
	intercept = (s.swXX*s.swY - s.swX*s.swXY) / d
	slope = (s.sw*s.swXY - s.swX*s.swY) / d
	return intercept, slope
}

// Correlation is the weighted Pearson product moment correlation coefficient.
func (s *WXYStats) Correlation() float64 {
	dx := s.sw*s.swXX - s.swX*s.swX
	dy := s.sw*s.swYY - s.swY*s.swY
	return (s.sw*s.swXY - s.swX*s.swY) / math.Sqrt(dx*dy)
}

// Merge adds the points accumulated by other.
func (s *WXYStats) Merge(other *WXYStats) {
	s.n += other.n
	s.sw += other.sw
	s.swX += other.swX
	s.swY += other.swY
	s.swXX += other.swXX
	s.swYY += other.swYY
	s.swXY += other.swXY
}
