package table

import (
	"errors"
	"fmt"
)

// ForEachRow feeds every row of t to fn in order. The sequence is closed on
// every return path; a close failure is reported if nothing else failed.
func ForEachRow(t Table, fn func(row []any) error) (err error) {
	seq, err := t.RowSequence()
	if err != nil {
		return fmt.Errorf("failed to open row sequence: %w", err)
	}
	defer func() {
		if cerr := seq.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for {
		ok, err := seq.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		row, err := seq.Row()
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

var errStop = errors.New("stop")

func ReadAll(t Table) ([][]any, error) {
	var rows [][]any
	err := ForEachRow(t, func(row []any) error {
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// ReadRows returns at most n rows from the start of t.
func ReadRows(t Table, n int) ([][]any, error) {
	if n <= 0 {
		return [][]any{}, nil
	}
	capacity := n
	if count := t.RowCount(); count >= 0 && count < int64(capacity) {
		capacity = int(count)
	}
	rows := make([][]any, 0, capacity)
	err := ForEachRow(t, func(row []any) error {
		rows = append(rows, row)
		if len(rows) == n {
			return errStop
		}
		return nil
	})
	if errors.Is(err, errStop) {
		err = nil
	}
	return rows, err
}

// Materialize copies t into memory, giving random access to any table.
func Materialize(t Table) (*ColumnarTable, error) {
	out, err := NewColumnarTable(t.Name(), Columns(t))
	if err != nil {
		return nil, err
	}
	for _, p := range t.Params() {
		out.SetParam(p)
	}
	err = ForEachRow(t, func(row []any) error {
		return out.AppendRow(row)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
