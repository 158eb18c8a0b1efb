package table

import (
	"fmt"
	"math"
)

// Coerce converts v to the Go representation of a scalar column of info's
// type where that loses nothing but integer width or float precision.
// Values already accepted by info are returned unchanged.
func Coerce(info ColumnInfo, v any) (any, error) {
	if info.Accepts(v) {
		return v, nil
	}
	if info.IsArray() {
		return nil, fmt.Errorf("value %v (%T) not valid for array column %s", v, v, info.Name)
	}

	if i, ok := ToInt64(v); ok {
		switch info.Type {
		case TypeByte:
			if i >= 0 && i <= math.MaxUint8 {
				return uint8(i), nil
			}
		case TypeShort:
			if i >= math.MinInt16 && i <= math.MaxInt16 {
				return int16(i), nil
			}
		case TypeInt:
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				return int32(i), nil
			}
		case TypeLong:
			return i, nil
		case TypeFloat:
			return float32(i), nil
		case TypeDouble:
			return float64(i), nil
		}
		return nil, fmt.Errorf("value %d out of range for column %s of type %s", i, info.Name, info.Type)
	}

	if f, ok := ToFloat64(v); ok {
		switch info.Type {
		case TypeFloat:
			return float32(f), nil
		case TypeDouble:
			return f, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) not valid for column %s of type %s", v, v, info.Name, info.Type)
}
