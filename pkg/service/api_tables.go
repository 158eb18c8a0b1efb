package service

import (
	"bufio"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"tablekit/pkg/catalog"
	"tablekit/pkg/formats"
	"tablekit/pkg/logging"
	"tablekit/pkg/stats"
	"tablekit/pkg/table"
	"tablekit/pkg/view"
)

const defaultDataFormat = "csv"

// TablesAPIController binds the tables endpoints to http handlers.
type TablesAPIController struct {
	service  *TablesAPIService
	catalog  *catalog.Catalog
	registry *formats.Registry
}

func NewTablesAPIController(c *catalog.Catalog, r *formats.Registry) *TablesAPIController {
	return &TablesAPIController{
		service:  NewTablesAPIService(c),
		catalog:  c,
		registry: r,
	}
}

func (c *TablesAPIController) Routes() Routes {
	return Routes{
		"GetTables": Route{
			"GetTables",
			strings.ToUpper("Get"),
			"/tables",
			c.GetTables,
		},
		"GetTableData": Route{
			"GetTableData",
			strings.ToUpper("Get"),
			"/tables/{name}",
			c.GetTableData,
		},
		"DeleteTable": Route{
			"DeleteTable",
			strings.ToUpper("Delete"),
			"/tables/{name}",
			c.DeleteTable,
		},
		"GetTableSchema": Route{
			"GetTableSchema",
			strings.ToUpper("Get"),
			"/tables/{name}/schema",
			c.GetTableSchema,
		},
		"FitTable": Route{
			"FitTable",
			strings.ToUpper("Get"),
			"/tables/{name}/fit",
			c.FitTable,
		},
		"SummarizeTable": Route{
			"SummarizeTable",
			strings.ToUpper("Get"),
			"/tables/{name}/summary",
			c.SummarizeTable,
		},
	}
}

func (c *TablesAPIController) GetTables(w http.ResponseWriter, r *http.Request) {
	result, err := c.service.GetTables(r.Context())
	writeResult(w, result, err)
}

func (c *TablesAPIController) GetTableSchema(w http.ResponseWriter, r *http.Request) {
	result, err := c.service.GetTableSchema(r.Context(), mux.Vars(r)["name"])
	writeResult(w, result, err)
}

func (c *TablesAPIController) DeleteTable(w http.ResponseWriter, r *http.Request) {
	result, err := c.service.DeleteTable(r.Context(), mux.Vars(r)["name"])
	writeResult(w, result, err)
}

func (c *TablesAPIController) FitTable(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := stats.FitOptions{
		X:      query.Get("x"),
		Y:      query.Get("y"),
		Weight: query.Get("w"),
	}
	var err error
	if opts.LogX, err = parseFlag(query.Get("logx")); err != nil {
		writeResult(w, Response(http.StatusBadRequest, Error{Message: "bad logx value"}), nil)
		return
	}
	if opts.LogY, err = parseFlag(query.Get("logy")); err != nil {
		writeResult(w, Response(http.StatusBadRequest, Error{Message: "bad logy value"}), nil)
		return
	}
	result, err := c.service.FitTable(r.Context(), mux.Vars(r)["name"], opts)
	writeResult(w, result, err)
}

func (c *TablesAPIController) SummarizeTable(w http.ResponseWriter, r *http.Request) {
	result, err := c.service.SummarizeTable(r.Context(), mux.Vars(r)["name"])
	writeResult(w, result, err)
}

// GetTableData streams the table body in the format named by the format
// query parameter. head limits the number of rows.
func (c *TablesAPIController) GetTableData(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	format := query.Get("format")
	if format == "" {
		format = defaultDataFormat
	}
	tw, err := c.registry.Writer(format)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, formats.ErrUnknownFormat) {
			status = http.StatusInternalServerError
		}
		writeResult(w, Response(status, Error{Message: err.Error()}), nil)
		return
	}

	name := mux.Vars(r)["name"]
	e, err := c.catalog.Acquire(name)
	if err != nil {
		writeResult(w, Response(http.StatusNotFound, Error{Message: "Table not found"}), nil)
		return
	}
	defer e.DecRef()

	var t table.Table = e.Table
	if h := query.Get("head"); h != "" {
		n, err := strconv.ParseInt(h, 10, 64)
		if err != nil || n < 0 {
			writeResult(w, Response(http.StatusBadRequest, Error{Message: "bad head value"}), nil)
			return
		}
		if t, err = view.Head(t, n); err != nil {
			writeResult(w, ImplResponse{}, err)
			return
		}
	}

	w.Header().Set("Content-Type", contentType(tw.FormatName()))
	w.WriteHeader(http.StatusOK)
	bw := bufio.NewWriter(w)
	if err := tw.WriteStream(t, bw); err != nil {
		logging.WithTable(name).Error("failed to stream table", "format", tw.FormatName(), "error", err)
		return
	}
	if err := bw.Flush(); err != nil {
		logging.WithTable(name).Error("failed to flush table", "error", err)
	}
}

func contentType(format string) string {
	switch format {
	case "html":
		return "text/html; charset=UTF-8"
	case "csv":
		return "text/csv; charset=UTF-8"
	}
	return "application/octet-stream"
}

func parseFlag(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
