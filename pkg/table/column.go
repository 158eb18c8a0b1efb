package table

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ColumnInfo describes one column. A nil Shape means scalar values; otherwise
// cells hold slices of the element type and the last Shape entry may be -1
// for an unknown extent. ElementSize is -1 when string length is unbounded.
type ColumnInfo struct {
	Name        string
	Type        ValueType
	Unit        string
	UCD         string
	Utype       string
	Description string
	Shape       []int
	ElementSize int
}

func NewColumnInfo(name string, typ ValueType) ColumnInfo {
	return ColumnInfo{Name: name, Type: typ, ElementSize: -1}
}

func (c ColumnInfo) IsArray() bool {
	return c.Shape != nil
}

// Clone returns a copy that shares no slices with c.
func (c ColumnInfo) Clone() ColumnInfo {
	if c.Shape != nil {
		shape := make([]int, len(c.Shape))
		copy(shape, c.Shape)
		c.Shape = shape
	}
	return c
}

// ElementCount returns the number of elements implied by a fixed shape,
// or -1 if the shape is variable or the column is scalar.
func (c ColumnInfo) ElementCount() int {
	if c.Shape == nil {
		return -1
	}
	n := 1
	for _, dim := range c.Shape {
		if dim < 0 {
			return -1
		}
		n *= dim
	}
	return n
}

// Accepts reports whether v may be stored in this column.
func (c ColumnInfo) Accepts(v any) bool {
	if v == nil {
		return true
	}
	if !c.IsArray() {
		switch v.(type) {
		case bool:
			return c.Type == TypeBoolean
		case uint8:
			return c.Type == TypeByte
		case int16:
			return c.Type == TypeShort
		case int32:
			return c.Type == TypeInt
		case int64:
			return c.Type == TypeLong
		case float32:
			return c.Type == TypeFloat
		case float64:
			return c.Type == TypeDouble
		case string:
			return c.Type == TypeString
		}
		return false
	}

	n, ok := arrayLen(c.Type, v)
	if !ok {
		return false
	}
	return c.shapeAllows(n)
}

func (c ColumnInfo) shapeAllows(n int) bool {
	if fixed := c.ElementCount(); fixed >= 0 {
		return n == fixed
	}
	stride := 1
	for _, dim := range c.Shape[:len(c.Shape)-1] {
		stride *= dim
	}
	return stride == 0 || n%stride == 0
}

func arrayLen(typ ValueType, v any) (int, bool) {
	switch a := v.(type) {
	case []bool:
		return len(a), typ == TypeBoolean
	case []uint8:
		return len(a), typ == TypeByte
	case []int16:
		return len(a), typ == TypeShort
	case []int32:
		return len(a), typ == TypeInt
	case []int64:
		return len(a), typ == TypeLong
	case []float32:
		return len(a), typ == TypeFloat
	case []float64:
		return len(a), typ == TypeDouble
	case []string:
		return len(a), typ == TypeString
	}
	return 0, false
}

// FormatValue renders v as text no longer than maxLength characters.
// maxLength <= 0 means unbounded. nil renders as the empty string.
func (c ColumnInfo) FormatValue(v any, maxLength int) string {
	s := formatCell(v)
	if maxLength > 0 && utf8.RuneCountInString(s) > maxLength {
		runes := []rune(s)
		if maxLength > 3 {
			return string(runes[:maxLength-3]) + "..."
		}
		return string(runes[:maxLength])
	}
	return s
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case []bool:
		return joinArray(x)
	case []uint8:
		return joinArray(x)
	case []int16:
		return joinArray(x)
	case []int32:
		return joinArray(x)
	case []int64:
		return joinArray(x)
	case []float32:
		return joinArray(x)
	case []float64:
		return joinArray(x)
	case []string:
		return joinArray(x)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64, bitSize int) string {
	return strconv.FormatFloat(f, 'g', -1, bitSize)
}

func joinArray[T any](values []T) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatCell(v))
	}
	sb.WriteByte(')')
	return sb.String()
}

// ParseValue is the inverse of FormatValue for untruncated output.
// The empty string parses as nil for every type except scalar strings.
func (c ColumnInfo) ParseValue(s string) (any, error) {
	if !c.IsArray() {
		if s == "" && c.Type != TypeString {
			return nil, nil
		}
		return parseScalar(c.Type, s)
	}
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("array value for column %s must be parenthesised: %q", c.Name, s)
	}
	inner := s[1 : len(s)-1]
	var parts []string
	if inner != "" {
		parts = strings.Split(inner, ", ")
	}
	out, err := parseArray(c.Type, parts)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", c.Name, err)
	}
	return out, nil
}

func parseScalar(typ ValueType, s string) (any, error) {
	switch typ {
	case TypeBoolean:
		return strconv.ParseBool(s)
	case TypeByte:
		v, err := strconv.ParseUint(s, 10, 8)
		return uint8(v), err
	case TypeShort:
		v, err := strconv.ParseInt(s, 10, 16)
		return int16(v), err
	case TypeInt:
		v, err := strconv.ParseInt(s, 10, 32)
		return int32(v), err
	case TypeLong:
		return strconv.ParseInt(s, 10, 64)
	case TypeFloat:
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	case TypeDouble:
		return strconv.ParseFloat(s, 64)
	case TypeString:
		return s, nil
	}
	return nil, fmt.Errorf("unsupported value type: %s", typ)
}

func parseArray(typ ValueType, parts []string) (any, error) {
	switch typ {
	case TypeBoolean:
		return parseElements[bool](typ, parts)
	case TypeByte:
		return parseElements[uint8](typ, parts)
	case TypeShort:
		return parseElements[int16](typ, parts)
	case TypeInt:
		return parseElements[int32](typ, parts)
	case TypeLong:
		return parseElements[int64](typ, parts)
	case TypeFloat:
		return parseElements[float32](typ, parts)
	case TypeDouble:
		return parseElements[float64](typ, parts)
	case TypeString:
		out := make([]string, len(parts))
		copy(out, parts)
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type: %s", typ)
}

func parseElements[T any](typ ValueType, parts []string) ([]T, error) {
	out := make([]T, len(parts))
	for i, p := range parts {
		v, err := parseScalar(typ, p)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v.(T)
	}
	return out, nil
}

// ParseShape parses a comma separated shape such as "3,3,*". Only the final
// entry may be "*", meaning unknown extent.
func ParseShape(txt string) ([]int, error) {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return nil, fmt.Errorf("empty shape")
	}
	fields := strings.Split(txt, ",")
	shape := make([]int, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "*" {
			if i != len(fields)-1 {
				return nil, fmt.Errorf("bad shape %q: only the last dimension may be *", txt)
			}
			shape[i] = -1
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad shape %q: dimension %q", txt, f)
		}
		shape[i] = n
	}
	return shape, nil
}

// CheckShape applies the rules of ParseShape to a decoded shape: every
// dimension is non-negative except the last, which may be -1.
func CheckShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("empty shape")
	}
	for i, dim := range shape {
		if dim == -1 && i == len(shape)-1 {
			continue
		}
		if dim < 0 {
			return fmt.Errorf("bad shape %s: dimension %d", FormatShape(shape), dim)
		}
	}
	return nil
}

func FormatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, dim := range shape {
		if dim < 0 {
			parts[i] = "*"
		} else {
			parts[i] = strconv.Itoa(dim)
		}
	}
	return strings.Join(parts, ",")
}

// Param is a named item of table level metadata.
type Param struct {
	Name  string
	Value any
	Unit  string
}
