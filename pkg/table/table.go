// Package table defines the tabular data model: column metadata, tables
// with sequential or random row access, and the row sequence cursor every
// table implementation hands out.
//
// Tables are read only to their consumers. Independent row sequences may be
// obtained from one table concurrently; a single sequence must only be used
// from one goroutine at a time.
package table

type Table interface {
	Name() string
	Params() []Param
	ColumnCount() int
	Column(icol int) ColumnInfo
	// RowCount returns -1 if the number of rows is not known without a full scan.
	RowCount() int64
	// RowSequence returns a fresh cursor positioned before the first row.
	RowSequence() (RowSequence, error)
}

// RandomAccess is implemented by tables that can return any row directly.
// Random reads never disturb an open RowSequence.
type RandomAccess interface {
	Table
	Row(irow int64) ([]any, error)
	Cell(irow int64, icol int) (any, error)
}

type RowSequence interface {
	// Next advances to the following row and reports whether there is one.
	Next() (bool, error)
	Cell(icol int) (any, error)
	Row() ([]any, error)
	// Close releases the sequence's resources. It may be called repeatedly
	// and from any state.
	Close() error
}

func AsRandom(t Table) (RandomAccess, bool) {
	ra, ok := t.(RandomAccess)
	return ra, ok
}

func Columns(t Table) []ColumnInfo {
	cols := make([]ColumnInfo, t.ColumnCount())
	for i := range cols {
		cols[i] = t.Column(i)
	}
	return cols
}
