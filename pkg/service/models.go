package service

import "math"

type Error struct {
	Message string `json:"message"`
}

type Column struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Unit  string `json:"unit,omitempty"`
	UCD   string `json:"ucd,omitempty"`
	Shape string `json:"shape,omitempty"`
}

type ShallowTable struct {
	Name     string `json:"name"`
	Source   string `json:"source,omitempty"`
	RowCount int64  `json:"rowCount"`
	Columns  int    `json:"columns"`
}

type TableSchema struct {
	Name     string   `json:"name"`
	Source   string   `json:"source,omitempty"`
	RowCount int64    `json:"rowCount"`
	Columns  []Column `json:"columns"`
}

// FitResult reports a linear fit. Undetermined values are null.
type FitResult struct {
	X           string   `json:"x"`
	Y           string   `json:"y"`
	Weight      string   `json:"weight,omitempty"`
	LogX        bool     `json:"logx"`
	LogY        bool     `json:"logy"`
	Points      int64    `json:"points"`
	Intercept   *float64 `json:"intercept"`
	Slope       *float64 `json:"slope"`
	Correlation *float64 `json:"correlation"`
	Equation    string   `json:"equation"`
}

type ColumnSummary struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Count      int64    `json:"count"`
	Nulls      int64    `json:"nulls"`
	Mean       *float64 `json:"mean,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	Bytes      int64    `json:"bytes,omitempty"`
	ASCIIChars int64    `json:"asciiChars,omitempty"`
}

type TableSummary struct {
	Name    string          `json:"name"`
	Rows    int64           `json:"rows"`
	Columns []ColumnSummary `json:"columns"`
}

// finite returns nil for NaN and infinities, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
