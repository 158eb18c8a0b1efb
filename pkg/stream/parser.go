package stream

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"tablekit/pkg/table"
)

// MaxVariableCount bounds length and count prefixes read from a stream,
// fixed string widths and fixed array element counts.
const MaxVariableCount = 1 << 28

// ValueParser reads the encoded form of one column's cell.
type ValueParser interface {
	Column() table.ColumnInfo
	Decode(r *bufio.Reader) (any, error)
}

// NewParser returns the parser implied by a column's metadata. Numbers are
// big-endian. Booleans are one byte: 'T', 't' or '1' for true, 'F', 'f' or
// '0' for false, '?', ' ' or NUL for null. Strings with a positive
// ElementSize occupy exactly that many NUL padded bytes, otherwise they are
// prefixed by a uint32 byte length. Arrays of fixed shape hold their
// elements back to back; variable arrays are prefixed by a uint32 count.
func NewParser(info table.ColumnInfo) (ValueParser, error) {
	if !info.Type.Valid() {
		return nil, fmt.Errorf("column %s: invalid type %d", info.Name, info.Type)
	}
	if problems := ColumnProblems(info); len(problems) > 0 {
		return nil, fmt.Errorf("column %s: %s", info.Name, problems[0])
	}
	if info.IsArray() {
		return &arrayParser{info: info, count: info.ElementCount()}, nil
	}
	return &scalarParser{info: info}, nil
}

// ColumnProblems lists the ways a column's shape or element size falls
// outside what a stream can carry.
func ColumnProblems(info table.ColumnInfo) []string {
	var problems []string
	if info.ElementSize < -1 || info.ElementSize > MaxVariableCount {
		problems = append(problems, fmt.Sprintf("invalid element size %d", info.ElementSize))
	}
	if info.Shape == nil {
		return problems
	}
	if err := table.CheckShape(info.Shape); err != nil {
		return append(problems, err.Error())
	}
	n := 1
	for _, dim := range info.Shape {
		if dim < 0 {
			break
		}
		if dim > 0 && n > MaxVariableCount/dim {
			return append(problems, fmt.Sprintf("shape %s holds too many elements", table.FormatShape(info.Shape)))
		}
		n *= dim
	}
	return problems
}

// elementSize returns the encoded width of one non-string element.
func elementSize(typ table.ValueType) int {
	switch typ {
	case table.TypeBoolean, table.TypeByte:
		return 1
	case table.TypeShort:
		return 2
	case table.TypeInt, table.TypeFloat:
		return 4
	case table.TypeLong, table.TypeDouble:
		return 8
	}
	return -1
}

type scalarParser struct {
	info table.ColumnInfo
}

func (p *scalarParser) Column() table.ColumnInfo { return p.info }

func (p *scalarParser) Decode(r *bufio.Reader) (any, error) {
	if p.info.Type == table.TypeString {
		return readString(r, p.info.ElementSize)
	}
	var buf [8]byte
	b := buf[:elementSize(p.info.Type)]
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	switch p.info.Type {
	case table.TypeBoolean:
		return decodeBool(b[0])
	case table.TypeByte:
		return b[0], nil
	case table.TypeShort:
		return int16(binary.BigEndian.Uint16(b)), nil
	case table.TypeInt:
		return int32(binary.BigEndian.Uint32(b)), nil
	case table.TypeLong:
		return int64(binary.BigEndian.Uint64(b)), nil
	case table.TypeFloat:
		return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
	case table.TypeDouble:
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	}
	return nil, fmt.Errorf("no decoder for %s", p.info.Type)
}

func decodeBool(b byte) (any, error) {
	switch b {
	case 'T', 't', '1':
		return true, nil
	case 'F', 'f', '0':
		return false, nil
	case '?', ' ', 0:
		return nil, nil
	}
	return nil, fmt.Errorf("bad boolean byte 0x%02x", b)
}

func readCount(r io.Reader) (int, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(b[:])
	if n > MaxVariableCount {
		return 0, fmt.Errorf("count %d too large", n)
	}
	return int(n), nil
}

func readString(r io.Reader, fixed int) (string, error) {
	if fixed > MaxVariableCount {
		return "", fmt.Errorf("string width %d too large", fixed)
	}
	n := fixed
	if n <= 0 {
		var err error
		if n, err = readCount(r); err != nil {
			return "", err
		}
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	if fixed > 0 {
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
	}
	return string(b), nil
}

type arrayParser struct {
	info  table.ColumnInfo
	count int
}

func (p *arrayParser) Column() table.ColumnInfo { return p.info }

func (p *arrayParser) Decode(r *bufio.Reader) (any, error) {
	n := p.count
	if n < 0 {
		var err error
		if n, err = readCount(r); err != nil {
			return nil, err
		}
	}

	switch p.info.Type {
	case table.TypeBoolean:
		return decodeElements(r, n, 1, func(b []byte) bool {
			return b[0] == 'T' || b[0] == 't' || b[0] == '1'
		})
	case table.TypeByte:
		return decodeElements(r, n, 1, func(b []byte) uint8 { return b[0] })
	case table.TypeShort:
		return decodeElements(r, n, 2, func(b []byte) int16 { return int16(binary.BigEndian.Uint16(b)) })
	case table.TypeInt:
		return decodeElements(r, n, 4, func(b []byte) int32 { return int32(binary.BigEndian.Uint32(b)) })
	case table.TypeLong:
		return decodeElements(r, n, 8, func(b []byte) int64 { return int64(binary.BigEndian.Uint64(b)) })
	case table.TypeFloat:
		return decodeElements(r, n, 4, func(b []byte) float32 { return math.Float32frombits(binary.BigEndian.Uint32(b)) })
	case table.TypeDouble:
		return decodeElements(r, n, 8, func(b []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(b)) })
	case table.TypeString:
		if n < 0 || n > MaxVariableCount {
			return nil, fmt.Errorf("element count %d out of range", n)
		}
		out := make([]string, n)
		for i := range out {
			s, err := readString(r, p.info.ElementSize)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("no decoder for %s array", p.info.Type)
}

func decodeElements[T any](r io.Reader, n, size int, conv func([]byte) T) ([]T, error) {
	if n < 0 || n > MaxVariableCount {
		return nil, fmt.Errorf("element count %d out of range", n)
	}
	buf := make([]byte, n*size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	out := make([]T, n)
	for i := range out {
		out[i] = conv(buf[i*size : (i+1)*size])
	}
	return out, nil
}
