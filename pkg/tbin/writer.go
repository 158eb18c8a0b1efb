// Package tbin reads and writes the tbin streamed binary table file.
//
// Layout:
//
//	"TBin" | header length (uvarint) | header | body | body length (int64 LE) | "EndB"
//
// The header carries the format version, the body codec, the row count
// (zigzag varint, -1 when unknown), the table name, its parameters and the
// column metadata. The body is the row stream of package stream, optionally
// compressed with zstd or gzip.
package tbin

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"tablekit/pkg/logging"
	"tablekit/pkg/stream"
	"tablekit/pkg/table"
)

// Writer writes tables in tbin format. The zero value writes an
// uncompressed body.
type Writer struct {
	Codec Codec
}

func (w *Writer) FormatName() string { return "tbin" }

func (w *Writer) LooksLikeFile(location string) bool {
	return strings.HasSuffix(strings.ToLower(location), ".tbin")
}

// WriteStream writes t to out. The body compressor is closed on every
// return path; the first error wins.
func (w *Writer) WriteStream(t table.Table, out io.Writer) (err error) {
	log := logging.WithComponent("tbin")

	h := &header{
		codec:    w.Codec,
		rowCount: t.RowCount(),
		name:     t.Name(),
		params:   t.Params(),
		columns:  table.Columns(t),
	}
	if h.rowCount < 0 {
		h.rowCount = -1
	}
	hdr, err := h.encode()
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	if _, err := io.WriteString(out, BeginMagic); err != nil {
		return err
	}
	if err := WriteVarint(out, uint64(len(hdr))); err != nil {
		return err
	}
	if _, err := out.Write(hdr); err != nil {
		return err
	}

	counter := &countingWriter{w: out}
	comp, err := openCompressor(counter, w.Codec)
	if err != nil {
		return err
	}
	compClosed := false
	defer func() {
		if compClosed {
			return
		}
		if cerr := comp.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finish %s body: %w", w.Codec, cerr)
		}
	}()

	bw := bufio.NewWriter(comp)
	rw, err := stream.NewRowWriter(bw, h.columns)
	if err != nil {
		return err
	}
	if err := table.ForEachRow(t, rw.WriteRow); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	compClosed = true
	if err := comp.Close(); err != nil {
		return fmt.Errorf("failed to finish %s body: %w", w.Codec, err)
	}
	if h.rowCount >= 0 && rw.Rows() != h.rowCount {
		return fmt.Errorf("table declared %d rows but produced %d", h.rowCount, rw.Rows())
	}

	if err := binary.Write(out, binary.LittleEndian, counter.n); err != nil {
		return fmt.Errorf("failed to write body length: %w", err)
	}
	if _, err := io.WriteString(out, EndMagic); err != nil {
		return err
	}
	log.Debug("wrote tbin table", "table", h.name, "rows", rw.Rows(), "codec", w.Codec.String(), "body_bytes", counter.n)
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

var openCompressor = newCompressor

func newCompressor(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return enc, nil
	case CodecGzip:
		return gzip.NewWriter(w), nil
	}
	return nil, fmt.Errorf("unknown codec %d", byte(codec))
}

// decompressor adapts the codec readers to a single Close.
type decompressor struct {
	io.Reader
	close func() error
}

func (d *decompressor) Close() error { return d.close() }

func newDecompressor(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return &decompressor{Reader: dec, close: func() error { dec.Close(); return nil }}, nil
	case CodecGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return zr, nil
	}
	return nil, fmt.Errorf("unknown codec %d", byte(codec))
}
