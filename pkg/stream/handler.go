// Package stream decodes and encodes the row stream of a binary table
// body. A stream sits inside a DATA element, which in turn belongs to a
// TABLE; the DATA element supplies one ValueParser per column and the TABLE
// element counts the rows found.
package stream

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"tablekit/pkg/table"
)

type Kind int

const (
	KindOther Kind = iota
	KindTable
	KindData
	KindStream
)

// Element is one node on the path from the document root to a stream.
type Element interface {
	Kind() Kind
	Name() string
}

// RowCounter is told about every row a stream decodes.
type RowCounter interface {
	FoundRow()
}

// TableElement counts the rows of the streams beneath it.
type TableElement struct {
	TableName string
	rows      atomic.Int64
}

func NewTableElement(name string) *TableElement {
	return &TableElement{TableName: name}
}

func (e *TableElement) Kind() Kind { return KindTable }

func (e *TableElement) Name() string { return "TABLE" }

func (e *TableElement) FoundRow() { e.rows.Add(1) }

func (e *TableElement) RowCount() int64 { return e.rows.Load() }

// DataElement holds the parsers for the columns of its table.
type DataElement struct {
	parsers []ValueParser
}

func NewDataElement(parsers []ValueParser) *DataElement {
	return &DataElement{parsers: parsers}
}

// DataElementFor builds a DataElement with a parser for each column.
func DataElementFor(columns []table.ColumnInfo) (*DataElement, error) {
	ve := &table.ValidationError{}
	parsers := make([]ValueParser, len(columns))
	for i, col := range columns {
		p, err := NewParser(col)
		if err != nil {
			ve.Add(err.Error(), col.Name)
			continue
		}
		parsers[i] = p
	}
	if ve.HasProblems() {
		return nil, ve
	}
	return NewDataElement(parsers), nil
}

func (e *DataElement) Kind() Kind { return KindData }

func (e *DataElement) Name() string { return "DATA" }

func (e *DataElement) ColumnCount() int { return len(e.parsers) }

func (e *DataElement) Parser(icol int) ValueParser { return e.parsers[icol] }

// StreamElement is the element whose content is the encoded rows,
// for instance BINARY.
type StreamElement struct {
	Tag string
}

func (e *StreamElement) Kind() Kind { return KindStream }

func (e *StreamElement) Name() string { return e.Tag }

// OtherElement is any element without a role in stream decoding.
type OtherElement struct {
	Tag string
}

func (e *OtherElement) Kind() Kind { return KindOther }

func (e *OtherElement) Name() string { return e.Tag }

// Ancestry lists the elements from the root down to and including the
// stream element.
type Ancestry []Element

func (a Ancestry) String() string {
	names := make([]string, len(a))
	for i, e := range a {
		names[i] = e.Name()
	}
	return strings.Join(names, "/")
}

func (a Ancestry) parent(depth int) Element {
	i := len(a) - 1 - depth
	if i < 0 {
		return nil
	}
	return a[i]
}

// StreamHandler decodes the rows of one stream element.
type StreamHandler struct {
	path    string
	parsers []ValueParser
	counter RowCounter
}

// NewStreamHandler checks the placement of the stream described by
// ancestry. When the stream is not inside DATA no handler is returned. When
// DATA is not inside TABLE the handler is returned together with the error;
// it decodes rows but counts none.
func NewStreamHandler(ancestry Ancestry) (*StreamHandler, error) {
	if len(ancestry) == 0 {
		return nil, table.NewVErr("empty ancestry", "")
	}
	self := ancestry[len(ancestry)-1]
	path := ancestry.String()
	ve := &table.ValidationError{}

	data, ok := ancestry.parent(1).(*DataElement)
	if !ok {
		ve.Add(fmt.Sprintf("%s not child of DATA", self.Name()), path)
		ve.Add(fmt.Sprintf("%s outside DATA", self.Name()), path)
		return nil, ve
	}

	h := &StreamHandler{
		path:    path,
		parsers: append([]ValueParser(nil), data.parsers...),
	}
	if tbl, ok := ancestry.parent(2).(*TableElement); ok {
		h.counter = tbl
	} else {
		ve.Add("DATA not child of TABLE", path)
	}
	return h, ve.OrNil()
}

func (h *StreamHandler) Path() string { return h.path }

func (h *StreamHandler) Parsers() []ValueParser {
	return append([]ValueParser(nil), h.parsers...)
}

// SetCounter replaces the collaborator told about each decoded row.
func (h *StreamHandler) SetCounter(c RowCounter) { h.counter = c }

func (h *StreamHandler) Decoder(r io.Reader) *RowDecoder {
	return NewRowDecoder(r, h.parsers, h.counter)
}

// Feed decodes every row in r and passes it to sink, stopping at the first
// error from either.
func (h *StreamHandler) Feed(r io.Reader, sink func(row []any) error) error {
	dec := h.Decoder(r)
	for {
		row, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", h.path, err)
		}
		if err := sink(row); err != nil {
			return err
		}
	}
}
