package tbin

import (
	"bytes"
	"fmt"
	"io"

	"tablekit/pkg/stream"
	"tablekit/pkg/table"
)

const (
	BeginMagic = "TBin" // 4B
	EndMagic   = "EndB" // 4B

	formatVersion byte = 1

	// a body length (int64, little endian) sits between the body and EndMagic
	trailerSize = 8 + len(EndMagic)

	maxTextLength   = 1 << 20
	maxColumnCount  = 1 << 16
	maxParamCount   = 1 << 16
	maxShapeEntries = 64
	maxHeaderLength = 1 << 26
)

type Codec byte

const (
	CodecNone Codec = 0
	CodecZstd Codec = 1
	CodecGzip Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecGzip:
		return "gzip"
	}
	return fmt.Sprintf("codec(%d)", byte(c))
}

func ParseCodec(s string) (Codec, error) {
	switch s {
	case "none", "":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "gzip":
		return CodecGzip, nil
	}
	return 0, fmt.Errorf("unknown codec %q", s)
}

const nullParam byte = 0xFF

type header struct {
	codec    Codec
	rowCount int64
	name     string
	params   []table.Param
	columns  []table.ColumnInfo
}

func (h *header) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(formatVersion)
	buf.WriteByte(byte(h.codec))
	if err := writeSigned(&buf, h.rowCount); err != nil {
		return nil, err
	}
	if err := writeText(&buf, h.name); err != nil {
		return nil, err
	}

	if err := WriteVarint(&buf, uint64(len(h.params))); err != nil {
		return nil, err
	}
	for _, p := range h.params {
		if err := encodeParam(&buf, p); err != nil {
			return nil, fmt.Errorf("param %s: %w", p.Name, err)
		}
	}

	if err := WriteVarint(&buf, uint64(len(h.columns))); err != nil {
		return nil, err
	}
	for _, col := range h.columns {
		if err := encodeColumn(&buf, col); err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
	}
	return buf.Bytes(), nil
}

func encodeColumn(buf *bytes.Buffer, col table.ColumnInfo) error {
	if err := writeText(buf, col.Name); err != nil {
		return err
	}
	buf.WriteByte(byte(col.Type))
	for _, s := range []string{col.Unit, col.UCD, col.Utype, col.Description} {
		if err := writeText(buf, s); err != nil {
			return err
		}
	}
	// shape entry count + 1, zero for scalar columns
	if err := WriteVarint(buf, uint64(len(col.Shape))+boolToUint(col.Shape != nil)); err != nil {
		return err
	}
	for _, dim := range col.Shape {
		if err := writeSigned(buf, int64(dim)); err != nil {
			return err
		}
	}
	return writeSigned(buf, int64(col.ElementSize))
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func encodeParam(buf *bytes.Buffer, p table.Param) error {
	if err := writeText(buf, p.Name); err != nil {
		return err
	}
	if err := writeText(buf, p.Unit); err != nil {
		return err
	}
	info, ok := valueInfo(p.Value)
	if !ok {
		buf.WriteByte(nullParam)
		return nil
	}
	buf.WriteByte(byte(info.Type))
	buf.WriteByte(byte(boolToUint(info.IsArray())))
	return writeText(buf, info.FormatValue(p.Value, 0))
}

// valueInfo describes the column type a parameter value would occupy.
// Values of other Go types are stored as their fmt text.
func valueInfo(v any) (table.ColumnInfo, bool) {
	if v == nil {
		return table.ColumnInfo{}, false
	}
	var typ table.ValueType
	array := false
	switch v.(type) {
	case bool:
		typ = table.TypeBoolean
	case uint8:
		typ = table.TypeByte
	case int16:
		typ = table.TypeShort
	case int32:
		typ = table.TypeInt
	case int64:
		typ = table.TypeLong
	case float32:
		typ = table.TypeFloat
	case float64:
		typ = table.TypeDouble
	case []bool:
		typ, array = table.TypeBoolean, true
	case []uint8:
		typ, array = table.TypeByte, true
	case []int16:
		typ, array = table.TypeShort, true
	case []int32:
		typ, array = table.TypeInt, true
	case []int64:
		typ, array = table.TypeLong, true
	case []float32:
		typ, array = table.TypeFloat, true
	case []float64:
		typ, array = table.TypeDouble, true
	default:
		typ = table.TypeString
	}
	info := table.NewColumnInfo("", typ)
	if array {
		info.Shape = []int{-1}
	}
	return info, true
}

func decodeHeader(data []byte) (*header, error) {
	r := bytes.NewReader(data)
	ve := &table.ValidationError{}

	version, err := r.ReadByte()
	if err != nil {
		return nil, table.NewVErr("missing format version", "header")
	}
	if version != formatVersion {
		return nil, table.NewVErr(fmt.Sprintf("unsupported format version %d", version), "header")
	}
	codec, err := r.ReadByte()
	if err != nil {
		return nil, table.NewVErr("missing codec", "header")
	}
	h := &header{codec: Codec(codec)}
	if h.codec > CodecGzip {
		ve.Add(fmt.Sprintf("unknown codec %d", codec), "header")
	}

	if h.rowCount, err = readSigned(r); err != nil {
		return nil, table.NewVErr(err.Error(), "row count")
	}
	if h.rowCount < -1 {
		ve.Add(fmt.Sprintf("bad row count %d", h.rowCount), "header")
	}
	if h.name, err = readText(r, maxTextLength); err != nil {
		return nil, table.NewVErr(err.Error(), "table name")
	}

	nparam, err := ReadVarint(r)
	if err != nil || nparam > maxParamCount {
		return nil, table.NewVErr(fmt.Sprintf("bad parameter count %d: %v", nparam, err), "header")
	}
	for i := uint64(0); i < nparam; i++ {
		p, err := decodeParam(r)
		if err != nil {
			return nil, table.NewVErr(err.Error(), fmt.Sprintf("param %d", i))
		}
		h.params = append(h.params, p)
	}

	ncol, err := ReadVarint(r)
	if err != nil || ncol > maxColumnCount {
		return nil, table.NewVErr(fmt.Sprintf("bad column count %d: %v", ncol, err), "header")
	}
	h.columns = make([]table.ColumnInfo, 0, ncol)
	for i := uint64(0); i < ncol; i++ {
		col, err := decodeColumn(r)
		if err != nil {
			return nil, table.NewVErr(err.Error(), fmt.Sprintf("column %d", i+1))
		}
		if !col.Type.Valid() {
			ve.Add(fmt.Sprintf("invalid type %d", col.Type), col.Name)
		}
		for _, problem := range stream.ColumnProblems(col) {
			ve.Add(problem, col.Name)
		}
		h.columns = append(h.columns, col)
	}
	if r.Len() != 0 {
		ve.Add(fmt.Sprintf("%d trailing bytes", r.Len()), "header")
	}
	if ve.HasProblems() {
		return nil, ve
	}
	return h, nil
}

func decodeColumn(r *bytes.Reader) (table.ColumnInfo, error) {
	var col table.ColumnInfo
	var err error
	if col.Name, err = readText(r, maxTextLength); err != nil {
		return col, fmt.Errorf("name: %w", err)
	}
	typ, err := r.ReadByte()
	if err != nil {
		return col, fmt.Errorf("type: %w", err)
	}
	col.Type = table.ValueType(typ)
	for _, dst := range []*string{&col.Unit, &col.UCD, &col.Utype, &col.Description} {
		if *dst, err = readText(r, maxTextLength); err != nil {
			return col, err
		}
	}

	nshape, err := ReadVarint(r)
	if err != nil {
		return col, fmt.Errorf("shape: %w", err)
	}
	if nshape > maxShapeEntries+1 {
		return col, fmt.Errorf("shape of %d entries", nshape-1)
	}
	if nshape > 0 {
		col.Shape = make([]int, nshape-1)
		for i := range col.Shape {
			dim, err := readSigned(r)
			if err != nil {
				return col, fmt.Errorf("shape: %w", err)
			}
			col.Shape[i] = int(dim)
		}
	}

	elsize, err := readSigned(r)
	if err != nil {
		return col, fmt.Errorf("element size: %w", err)
	}
	col.ElementSize = int(elsize)
	return col, nil
}

func decodeParam(r *bytes.Reader) (table.Param, error) {
	var p table.Param
	var err error
	if p.Name, err = readText(r, maxTextLength); err != nil {
		return p, err
	}
	if p.Unit, err = readText(r, maxTextLength); err != nil {
		return p, err
	}
	typ, err := r.ReadByte()
	if err != nil {
		return p, err
	}
	if typ == nullParam {
		return p, nil
	}
	array, err := r.ReadByte()
	if err != nil {
		return p, err
	}
	text, err := readText(r, maxTextLength)
	if err != nil {
		return p, err
	}
	info := table.NewColumnInfo(p.Name, table.ValueType(typ))
	if array != 0 {
		info.Shape = []int{-1}
	}
	if p.Value, err = info.ParseValue(text); err != nil {
		return p, err
	}
	return p, nil
}

func readHeader(r io.ReaderAt, size int64) (*header, int64, error) {
	if err := verifyMagicValue(r, BeginMagic, 0); err != nil {
		return nil, 0, table.NewVErr(err.Error(), "begin magic")
	}
	if size < int64(len(BeginMagic)+trailerSize) {
		return nil, 0, table.NewVErr(fmt.Sprintf("file of %d bytes is too short", size), "file")
	}
	if err := verifyMagicValue(r, EndMagic, size-int64(len(EndMagic))); err != nil {
		return nil, 0, table.NewVErr(err.Error(), "end magic")
	}

	sr := io.NewSectionReader(r, int64(len(BeginMagic)), size-int64(len(BeginMagic)))
	br := &byteCountingReader{r: sr}
	hlen, err := ReadVarint(br)
	if err != nil || hlen > maxHeaderLength {
		return nil, 0, table.NewVErr(fmt.Sprintf("bad header length %d: %v", hlen, err), "header")
	}
	data := make([]byte, hlen)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, 0, table.NewVErr(fmt.Sprintf("failed to read header: %v", err), "header")
	}
	h, err := decodeHeader(data)
	if err != nil {
		return nil, 0, err
	}
	return h, int64(len(BeginMagic)) + br.n, nil
}

// byteCountingReader tracks how far the header has been read.
type byteCountingReader struct {
	r io.Reader
	n int64
}

func (c *byteCountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *byteCountingReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
