package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"

	"tablekit/pkg/table"
)

// ValueEncoder writes non-null cells in the form read by the ValueParser
// for the same column.
type ValueEncoder interface {
	Column() table.ColumnInfo
	Encode(w *bufio.Writer, v any) error
}

func NewEncoder(info table.ColumnInfo) (ValueEncoder, error) {
	if !info.Type.Valid() {
		return nil, fmt.Errorf("column %s: invalid type %d", info.Name, info.Type)
	}
	return &encoder{info: info, count: info.ElementCount()}, nil
}

type encoder struct {
	info  table.ColumnInfo
	count int
}

func (e *encoder) Column() table.ColumnInfo { return e.info }

func (e *encoder) Encode(w *bufio.Writer, v any) error {
	if v == nil {
		return fmt.Errorf("column %s: null cell has no encoding", e.info.Name)
	}
	v, err := table.Coerce(e.info, v)
	if err != nil {
		return err
	}
	if !e.info.IsArray() {
		return e.encodeScalar(w, v)
	}
	return e.encodeArray(w, v)
}

func (e *encoder) encodeScalar(w *bufio.Writer, v any) error {
	var buf [8]byte
	switch x := v.(type) {
	case bool:
		if x {
			return w.WriteByte('T')
		}
		return w.WriteByte('F')
	case uint8:
		return w.WriteByte(x)
	case int16:
		binary.BigEndian.PutUint16(buf[:], uint16(x))
		_, err := w.Write(buf[:2])
		return err
	case int32:
		binary.BigEndian.PutUint32(buf[:], uint32(x))
		_, err := w.Write(buf[:4])
		return err
	case int64:
		binary.BigEndian.PutUint64(buf[:], uint64(x))
		_, err := w.Write(buf[:8])
		return err
	case float32:
		binary.BigEndian.PutUint32(buf[:], math.Float32bits(x))
		_, err := w.Write(buf[:4])
		return err
	case float64:
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(x))
		_, err := w.Write(buf[:8])
		return err
	case string:
		return writeString(w, x, e.info.ElementSize)
	}
	return fmt.Errorf("column %s: cannot encode %T", e.info.Name, v)
}

func (e *encoder) encodeArray(w *bufio.Writer, v any) error {
	n, err := arrayLength(v)
	if err != nil {
		return fmt.Errorf("column %s: %w", e.info.Name, err)
	}
	if e.count >= 0 {
		if n != e.count {
			return fmt.Errorf("column %s: array of %d elements, shape needs %d", e.info.Name, n, e.count)
		}
	} else if err := writeCount(w, n); err != nil {
		return err
	}

	elem := &encoder{info: table.ColumnInfo{Name: e.info.Name, Type: e.info.Type, ElementSize: e.info.ElementSize}}
	switch a := v.(type) {
	case []bool:
		return encodeElements(w, elem, a)
	case []uint8:
		_, err := w.Write(a)
		return err
	case []int16:
		return encodeElements(w, elem, a)
	case []int32:
		return encodeElements(w, elem, a)
	case []int64:
		return encodeElements(w, elem, a)
	case []float32:
		return encodeElements(w, elem, a)
	case []float64:
		return encodeElements(w, elem, a)
	case []string:
		return encodeElements(w, elem, a)
	}
	return fmt.Errorf("column %s: cannot encode %T", e.info.Name, v)
}

func encodeElements[T any](w *bufio.Writer, elem *encoder, values []T) error {
	for _, x := range values {
		if err := elem.encodeScalar(w, x); err != nil {
			return err
		}
	}
	return nil
}

func arrayLength(v any) (int, error) {
	switch a := v.(type) {
	case []bool:
		return len(a), nil
	case []uint8:
		return len(a), nil
	case []int16:
		return len(a), nil
	case []int32:
		return len(a), nil
	case []int64:
		return len(a), nil
	case []float32:
		return len(a), nil
	case []float64:
		return len(a), nil
	case []string:
		return len(a), nil
	}
	return 0, fmt.Errorf("%T is not an array value", v)
}

func writeCount(w *bufio.Writer, n int) error {
	if n > MaxVariableCount {
		return fmt.Errorf("count %d too large", n)
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	_, err := w.Write(b[:])
	return err
}

// writeString pads or truncates to a fixed width, or writes a length
// prefix when fixed is not positive.
func writeString(w *bufio.Writer, s string, fixed int) error {
	if fixed <= 0 {
		if err := writeCount(w, len(s)); err != nil {
			return err
		}
		_, err := w.WriteString(s)
		return err
	}
	if len(s) > fixed {
		s = s[:fixed]
	}
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	for i := len(s); i < fixed; i++ {
		if err := w.WriteByte(0); err != nil {
			return err
		}
	}
	return nil
}
