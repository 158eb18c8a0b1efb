package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"tablekit/pkg/table"
)

// Each row starts with a null bitmap of ceil(ncol/8) bytes, most
// significant bit first; a set bit marks a null cell, which has no further
// bytes. The remaining cells follow in column order.

func bitmapSize(ncol int) int {
	return (ncol + 7) / 8
}

func isNull(bitmap []byte, icol int) bool {
	return bitmap[icol/8]&(0x80>>(icol%8)) != 0
}

// RowDecoder pulls rows from a stream.
type RowDecoder struct {
	r       *bufio.Reader
	parsers []ValueParser
	counter RowCounter
	bitmap  []byte
	irow    int64
}

// NewRowDecoder reads rows from r. counter may be nil.
func NewRowDecoder(r io.Reader, parsers []ValueParser, counter RowCounter) *RowDecoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &RowDecoder{
		r:       br,
		parsers: parsers,
		counter: counter,
		bitmap:  make([]byte, bitmapSize(len(parsers))),
	}
}

// Next returns the next row, or io.EOF once the stream ends cleanly
// between rows. A stream ending inside a row gives an error wrapping
// io.ErrUnexpectedEOF. A stream with no columns holds no rows.
func (d *RowDecoder) Next() ([]any, error) {
	if len(d.parsers) == 0 {
		return nil, io.EOF
	}
	if _, err := d.r.Peek(1); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("row %d: %w", d.irow, err)
	}

	if _, err := io.ReadFull(d.r, d.bitmap); err != nil {
		return nil, d.rowError(err)
	}
	row := make([]any, len(d.parsers))
	for icol, p := range d.parsers {
		if isNull(d.bitmap, icol) {
			continue
		}
		v, err := p.Decode(d.r)
		if err != nil {
			return nil, d.rowError(fmt.Errorf("column %s: %w", p.Column().Name, err))
		}
		row[icol] = v
	}

	d.irow++
	if d.counter != nil {
		d.counter.FoundRow()
	}
	return row, nil
}

// Rows returns the number of rows decoded so far.
func (d *RowDecoder) Rows() int64 { return d.irow }

func (d *RowDecoder) rowError(err error) error {
	if errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: %v", io.ErrUnexpectedEOF, err)
	}
	return fmt.Errorf("row %d: %w", d.irow, err)
}

// RowWriter writes rows in the layout read by RowDecoder.
type RowWriter struct {
	w        *bufio.Writer
	encoders []ValueEncoder
	bitmap   []byte
	rows     int64
}

func NewRowWriter(w *bufio.Writer, columns []table.ColumnInfo) (*RowWriter, error) {
	ve := &table.ValidationError{}
	encoders := make([]ValueEncoder, len(columns))
	for i, col := range columns {
		enc, err := NewEncoder(col)
		if err != nil {
			ve.Add(err.Error(), col.Name)
			continue
		}
		encoders[i] = enc
	}
	if ve.HasProblems() {
		return nil, ve
	}
	return &RowWriter{
		w:        w,
		encoders: encoders,
		bitmap:   make([]byte, bitmapSize(len(columns))),
	}, nil
}

func (rw *RowWriter) WriteRow(row []any) error {
	if len(row) != len(rw.encoders) {
		return fmt.Errorf("row %d has %d cells, expected %d", rw.rows, len(row), len(rw.encoders))
	}
	clear(rw.bitmap)
	for icol, v := range row {
		if v == nil {
			rw.bitmap[icol/8] |= 0x80 >> (icol % 8)
		}
	}
	if _, err := rw.w.Write(rw.bitmap); err != nil {
		return err
	}
	for icol, v := range row {
		if v == nil {
			continue
		}
		if err := rw.encoders[icol].Encode(rw.w, v); err != nil {
			return fmt.Errorf("row %d: %w", rw.rows, err)
		}
	}
	rw.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (rw *RowWriter) Rows() int64 { return rw.rows }
