package tbin

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"tablekit/pkg/logging"
	"tablekit/pkg/stream"
	"tablekit/pkg/table"
)

// File is a tbin file opened for reading. It is a sequential table: each
// RowSequence reads the body from the start through its own file handle.
type File struct {
	path       string
	header     *header
	data       *stream.DataElement
	bodyOffset int64
	bodyLength int64
	log        *slog.Logger
}

// Open reads and checks the header of a tbin file. Problems with the file
// structure are reported as *table.ValidationError.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open the file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("can't get the size of the file: %w", err)
	}
	size := fi.Size()

	h, bodyOffset, err := readHeader(f, size)
	if err != nil {
		return nil, err
	}

	lengthOffset := size - int64(trailerSize)
	var lenBuf [8]byte
	if _, err := f.ReadAt(lenBuf[:], lengthOffset); err != nil {
		return nil, fmt.Errorf("couldn't read the body length: %w", err)
	}
	bodyLength := int64(binary.LittleEndian.Uint64(lenBuf[:]))
	if bodyLength < 0 || bodyOffset+bodyLength != lengthOffset {
		return nil, table.NewVErr(fmt.Sprintf("body length %d does not fit file of %d bytes", bodyLength, size), "trailer")
	}

	data, err := stream.DataElementFor(h.columns)
	if err != nil {
		return nil, err
	}

	file := &File{
		path:       path,
		header:     h,
		data:       data,
		bodyOffset: bodyOffset,
		bodyLength: bodyLength,
		log:        logging.WithComponent("tbin").With("path", path),
	}
	file.log.Debug("opened tbin file", "table", h.name, "columns", len(h.columns), "rows", h.rowCount, "codec", h.codec.String())
	return file, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Codec() Codec { return f.header.codec }

func (f *File) Name() string { return f.header.name }

func (f *File) Params() []table.Param {
	return append([]table.Param(nil), f.header.params...)
}

func (f *File) ColumnCount() int { return len(f.header.columns) }

func (f *File) Column(icol int) table.ColumnInfo { return f.header.columns[icol].Clone() }

func (f *File) RowCount() int64 { return f.header.rowCount }

// RowSequence reads the body from the start. A table without columns has
// an empty body, so its sequence yields the declared number of empty rows.
func (f *File) RowSequence() (table.RowSequence, error) {
	if f.ColumnCount() == 0 {
		return &emptyRowSequence{SeqState: table.NewSeqState(0), remaining: max(f.header.rowCount, 0)}, nil
	}
	osFile, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("can't open the file: %w", err)
	}
	body := io.NewSectionReader(osFile, f.bodyOffset, f.bodyLength)
	dec, err := newDecompressor(bufio.NewReader(body), f.header.codec)
	if err != nil {
		osFile.Close()
		return nil, err
	}

	counter := stream.NewTableElement(f.header.name)
	h, err := stream.NewStreamHandler(stream.Ancestry{counter, f.data, &stream.StreamElement{Tag: "STREAM"}})
	if err != nil {
		dec.Close()
		osFile.Close()
		return nil, err
	}

	return &fileSequence{
		SeqState: table.NewSeqState(f.ColumnCount()),
		file:     f,
		osFile:   osFile,
		dec:      dec,
		rows:     h.Decoder(dec),
		counter:  counter,
	}, nil
}

type fileSequence struct {
	table.SeqState
	file    *File
	osFile  *os.File
	dec     io.ReadCloser
	rows    *stream.RowDecoder
	counter *stream.TableElement
	row     []any
}

func (s *fileSequence) Next() (bool, error) {
	if ok, err := s.BeginNext(); !ok {
		return false, err
	}
	row, err := s.rows.Next()
	if err == io.EOF {
		s.row = nil
		if want := s.file.header.rowCount; want >= 0 && s.counter.RowCount() != want {
			return false, fmt.Errorf("%s: header declares %d rows, body holds %d", s.file.path, want, s.counter.RowCount())
		}
		return s.Advanced(false), nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", s.file.path, err)
	}
	s.row = row
	return s.Advanced(true), nil
}

func (s *fileSequence) Cell(icol int) (any, error) {
	if err := s.CheckCell(icol); err != nil {
		return nil, err
	}
	return s.row[icol], nil
}

func (s *fileSequence) Row() ([]any, error) {
	if err := s.CheckRow(); err != nil {
		return nil, err
	}
	return append([]any(nil), s.row...), nil
}

func (s *fileSequence) Close() error {
	if !s.MarkClosed() {
		return nil
	}
	s.row = nil
	decErr := s.dec.Close()
	fileErr := s.osFile.Close()
	s.file.log.Debug("closed tbin sequence", "rows_read", s.counter.RowCount())
	if decErr != nil {
		return decErr
	}
	return fileErr
}

type emptyRowSequence struct {
	table.SeqState
	remaining int64
}

func (s *emptyRowSequence) Next() (bool, error) {
	if ok, err := s.BeginNext(); !ok {
		return false, err
	}
	if s.remaining == 0 {
		return s.Advanced(false), nil
	}
	s.remaining--
	return s.Advanced(true), nil
}

func (s *emptyRowSequence) Cell(icol int) (any, error) {
	if err := s.CheckCell(icol); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *emptyRowSequence) Row() ([]any, error) {
	if err := s.CheckRow(); err != nil {
		return nil, err
	}
	return []any{}, nil
}

func (s *emptyRowSequence) Close() error {
	s.MarkClosed()
	return nil
}

// Loader loads tbin files for a format registry.
type Loader struct{}

func (Loader) FormatName() string { return "tbin" }

func (Loader) LooksLikeFile(location string) bool {
	return strings.HasSuffix(strings.ToLower(location), ".tbin")
}

func (Loader) Load(ctx context.Context, location string) (table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := Open(location)
	if err != nil {
		return nil, err
	}
	return f, nil
}
