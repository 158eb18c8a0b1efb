// Package primlist provides growable arrays of primitive values.
//
// A List owns its backing array. Buffer exposes that array directly for bulk
// access; its identity changes whenever the list grows, so callers must not
// keep it across calls to Add.
package primlist

import "fmt"

type Primitive interface {
	~bool | ~uint8 | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

type (
	ByteList   = List[uint8]
	ShortList  = List[int16]
	IntList    = List[int32]
	LongList   = List[int64]
	FloatList  = List[float32]
	DoubleList = List[float64]
	BoolList   = List[bool]
)

// IndexError reports access outside [0, Size).
type IndexError struct {
	Index int
	Size  int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Size)
}

type List[T Primitive] struct {
	buf  []T
	size int
}

func New[T Primitive]() *List[T] {
	return &List[T]{}
}

func WithCapacity[T Primitive](capacity int) *List[T] {
	return &List[T]{buf: make([]T, capacity)}
}

// FromArray returns a list holding a copy of values.
func FromArray[T Primitive](values []T) *List[T] {
	buf := make([]T, len(values))
	copy(buf, values)
	return &List[T]{buf: buf, size: len(values)}
}

func (l *List[T]) Size() int {
	return l.size
}

func (l *List[T]) Get(i int) T {
	if i < 0 || i >= l.size {
		panic(&IndexError{Index: i, Size: l.size})
	}
	return l.buf[i]
}

// At is Get with an error instead of a panic.
func (l *List[T]) At(i int) (T, error) {
	if i < 0 || i >= l.size {
		var zero T
		return zero, &IndexError{Index: i, Size: l.size}
	}
	return l.buf[i], nil
}

func (l *List[T]) Set(i int, value T) {
	if i < 0 || i >= l.size {
		panic(&IndexError{Index: i, Size: l.size})
	}
	l.buf[i] = value
}

func (l *List[T]) Add(value T) {
	l.ensureCapacity(l.size + 1)
	l.buf[l.size] = value
	l.size++
}

func (l *List[T]) AddArray(values []T) {
	l.ensureCapacity(l.size + len(values))
	copy(l.buf[l.size:], values)
	l.size += len(values)
}

func (l *List[T]) AddAll(other *List[T]) {
	l.AddArray(other.buf[:other.size])
}

// ToArray returns a copy of exactly Size elements.
func (l *List[T]) ToArray() []T {
	out := make([]T, l.size)
	copy(out, l.buf[:l.size])
	return out
}

// Buffer returns the live backing array. len(Buffer()) >= Size().
func (l *List[T]) Buffer() []T {
	return l.buf
}

// Clear resets the size to zero, keeping the allocated capacity.
func (l *List[T]) Clear() {
	l.size = 0
}

func (l *List[T]) ensureCapacity(needed int) {
	if needed <= len(l.buf) {
		return
	}
	newCap := len(l.buf)*3/2 + 1
	if newCap < needed {
		newCap = needed
	}
	grown := make([]T, newCap)
	copy(grown, l.buf[:l.size])
	l.buf = grown
}
