package table

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoCurrentRow    = errors.New("no current row")
	ErrSequenceClosed  = errors.New("row sequence is closed")
	ErrNotRandomAccess = errors.New("table does not support random access")
)

// BoundsError reports a row, column or position index outside its valid range.
type BoundsError struct {
	What  string
	Index int64
	Limit int64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.What, e.Index, e.Limit)
}

func checkColumnIndex(icol, ncol int) error {
	if icol < 0 || icol >= ncol {
		return &BoundsError{What: "column", Index: int64(icol), Limit: int64(ncol)}
	}
	return nil
}

func checkRowIndex(irow, nrow int64) error {
	if irow < 0 || irow >= nrow {
		return &BoundsError{What: "row", Index: irow, Limit: nrow}
	}
	return nil
}

type UnknownColumnError struct {
	ID string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("no such column %q", e.ID)
}

type AmbiguousColumnError struct {
	ID      string
	Indices []int
}

func (e *AmbiguousColumnError) Error() string {
	positions := make([]string, len(e.Indices))
	for i, idx := range e.Indices {
		positions[i] = fmt.Sprintf("$%d", idx+1)
	}
	return fmt.Sprintf("column name %q is ambiguous (%s)", e.ID, strings.Join(positions, ", "))
}
