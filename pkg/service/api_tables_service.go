package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"tablekit/pkg/catalog"
	"tablekit/pkg/stats"
	"tablekit/pkg/table"
)

// TablesAPIService implements the JSON endpoints over a catalog.
type TablesAPIService struct {
	catalog *catalog.Catalog
}

func NewTablesAPIService(c *catalog.Catalog) *TablesAPIService {
	return &TablesAPIService{catalog: c}
}

// GetTables - list catalogued tables.
func (s *TablesAPIService) GetTables(ctx context.Context) (ImplResponse, error) {
	tables := []ShallowTable{}
	for _, name := range s.catalog.Names() {
		e, ok := s.catalog.Get(name)
		if !ok {
			continue
		}
		tables = append(tables, ShallowTable{
			Name:     e.Name,
			Source:   e.Source,
			RowCount: e.Table.RowCount(),
			Columns:  e.Table.ColumnCount(),
		})
	}
	return Response(http.StatusOK, tables), nil
}

// GetTableSchema - column metadata of one table.
func (s *TablesAPIService) GetTableSchema(ctx context.Context, name string) (ImplResponse, error) {
	e, ok := s.catalog.Get(name)
	if !ok {
		return Response(http.StatusNotFound, Error{Message: "Table not found"}), nil
	}
	cols := []Column{}
	for _, c := range table.Columns(e.Table) {
		col := Column{Name: c.Name, Type: c.Type.String(), Unit: c.Unit, UCD: c.UCD}
		if c.IsArray() {
			col.Shape = table.FormatShape(c.Shape)
		}
		cols = append(cols, col)
	}
	return Response(http.StatusOK, TableSchema{
		Name:     e.Name,
		Source:   e.Source,
		RowCount: e.Table.RowCount(),
		Columns:  cols,
	}), nil
}

// DeleteTable - drop a table from the catalog.
func (s *TablesAPIService) DeleteTable(ctx context.Context, name string) (ImplResponse, error) {
	if err := s.catalog.Remove(name); err != nil {
		return Response(http.StatusNotFound, Error{Message: err.Error()}), nil
	}
	return Response(http.StatusOK, nil), nil
}

// FitTable - weighted linear fit of two columns.
func (s *TablesAPIService) FitTable(ctx context.Context, name string, opts stats.FitOptions) (ImplResponse, error) {
	if opts.X == "" || opts.Y == "" {
		return Response(http.StatusBadRequest, Error{Message: "x and y parameters are required"}), nil
	}
	e, err := s.catalog.Acquire(name)
	if err != nil {
		return Response(http.StatusNotFound, Error{Message: "Table not found"}), nil
	}
	defer e.DecRef()

	fit, err := stats.Fit(e.Table, opts)
	if err != nil {
		if isColumnError(err) {
			return Response(http.StatusBadRequest, Error{Message: err.Error()}), nil
		}
		return ImplResponse{}, fmt.Errorf("fitting %s: %w", name, err)
	}
	c, m := fit.Coefficients()
	return Response(http.StatusOK, FitResult{
		X:           opts.X,
		Y:           opts.Y,
		Weight:      opts.Weight,
		LogX:        opts.LogX,
		LogY:        opts.LogY,
		Points:      fit.Stats.Count(),
		Intercept:   finite(c),
		Slope:       finite(m),
		Correlation: finite(fit.Correlation()),
		Equation:    fit.String(),
	}), nil
}

// SummarizeTable - per column counts and ranges.
func (s *TablesAPIService) SummarizeTable(ctx context.Context, name string) (ImplResponse, error) {
	e, err := s.catalog.Acquire(name)
	if err != nil {
		return Response(http.StatusNotFound, Error{Message: "Table not found"}), nil
	}
	defer e.DecRef()

	sum, err := stats.Summarize(e.Table)
	if err != nil {
		return ImplResponse{}, fmt.Errorf("summarizing %s: %w", name, err)
	}
	out := TableSummary{Name: e.Name, Rows: sum.Rows, Columns: []ColumnSummary{}}
	for i := range sum.Columns {
		cs := &sum.Columns[i]
		col := ColumnSummary{
			Name:       cs.Name,
			Type:       cs.TypeName,
			Count:      cs.Count,
			Nulls:      cs.Nulls,
			Bytes:      cs.Bytes,
			ASCIIChars: cs.ASCIIChars,
		}
		if cs.Numeric() {
			col.Mean, col.Min, col.Max = finite(cs.Mean), finite(cs.Min), finite(cs.Max)
		}
		out.Columns = append(out.Columns, col)
	}
	return Response(http.StatusOK, out), nil
}

func isColumnError(err error) bool {
	var unknown *table.UnknownColumnError
	var ambiguous *table.AmbiguousColumnError
	return errors.As(err, &unknown) || errors.As(err, &ambiguous) || errors.Is(err, stats.ErrNotNumeric)
}
