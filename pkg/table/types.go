package table

import "fmt"

type ValueType int

const (
	TypeBoolean ValueType = iota
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
)

func (t ValueType) String() string {
	var toString = map[ValueType]string{
		TypeBoolean: "boolean",
		TypeByte:    "byte",
		TypeShort:   "short",
		TypeInt:     "int",
		TypeLong:    "long",
		TypeFloat:   "float",
		TypeDouble:  "double",
		TypeString:  "string",
	}
	stringVal, ok := toString[t]
	if !ok {
		return "UNKNOWN"
	}
	return stringVal
}

func ValueTypeFromString(s string) (ValueType, error) {
	var fromString = map[string]ValueType{
		"boolean": TypeBoolean,
		"byte":    TypeByte,
		"short":   TypeShort,
		"int":     TypeInt,
		"long":    TypeLong,
		"float":   TypeFloat,
		"double":  TypeDouble,
		"string":  TypeString,
	}
	typ, ok := fromString[s]
	if !ok {
		return 0, fmt.Errorf("unknown value type: %s", s)
	}
	return typ, nil
}

func (t ValueType) IsInteger() bool {
	return t == TypeByte || t == TypeShort || t == TypeInt || t == TypeLong
}

func (t ValueType) IsFloating() bool {
	return t == TypeFloat || t == TypeDouble
}

func (t ValueType) IsNumeric() bool {
	return t.IsInteger() || t.IsFloating()
}

// Valid reports whether t is one of the declared types.
func (t ValueType) Valid() bool {
	return t >= TypeBoolean && t <= TypeString
}

// ToFloat64 converts a numeric cell value to float64.
// ok is false for nil and non-numeric values.
func ToFloat64(v any) (f float64, ok bool) {
	switch x := v.(type) {
	case uint8:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// ToInt64 converts an integer cell value to int64.
func ToInt64(v any) (i int64, ok bool) {
	switch x := v.(type) {
	case uint8:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	}
	return 0, false
}
