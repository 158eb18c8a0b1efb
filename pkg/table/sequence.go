package table

type State int

const (
	BeforeFirst State = iota
	OnRow
	Exhausted
	Closed
)

func (s State) String() string {
	switch s {
	case BeforeFirst:
		return "BeforeFirst"
	case OnRow:
		return "OnRow"
	case Exhausted:
		return "Exhausted"
	case Closed:
		return "Closed"
	}
	return "UNKNOWN"
}

// SeqState tracks the cursor state of a RowSequence implementation.
type SeqState struct {
	state State
	ncol  int
}

func NewSeqState(ncol int) SeqState {
	return SeqState{state: BeforeFirst, ncol: ncol}
}

func (s *SeqState) State() State {
	return s.state
}

// BeginNext reports whether the sequence may try to read another row.
func (s *SeqState) BeginNext() (bool, error) {
	switch s.state {
	case Closed:
		return false, ErrSequenceClosed
	case Exhausted:
		return false, nil
	}
	return true, nil
}

// Advanced records the outcome of a row read and returns it.
func (s *SeqState) Advanced(hasRow bool) bool {
	if s.state == Closed {
		return false
	}
	if hasRow {
		s.state = OnRow
	} else {
		s.state = Exhausted
	}
	return hasRow
}

func (s *SeqState) CheckRow() error {
	switch s.state {
	case OnRow:
		return nil
	case Closed:
		return ErrSequenceClosed
	}
	return ErrNoCurrentRow
}

func (s *SeqState) CheckCell(icol int) error {
	if err := s.CheckRow(); err != nil {
		return err
	}
	return checkColumnIndex(icol, s.ncol)
}

// MarkClosed moves to Closed and reports whether this call did so.
// Resources should be released only when it returns true.
func (s *SeqState) MarkClosed() bool {
	if s.state == Closed {
		return false
	}
	s.state = Closed
	return true
}

// randomSequence walks a RandomAccess table by index.
type randomSequence struct {
	SeqState
	table RandomAccess
	irow  int64
	row   []any
}

// SequenceOver returns a RowSequence reading t row by row through Row.
func SequenceOver(t RandomAccess) RowSequence {
	return &randomSequence{
		SeqState: NewSeqState(t.ColumnCount()),
		table:    t,
		irow:     -1,
	}
}

func (s *randomSequence) Next() (bool, error) {
	if ok, err := s.BeginNext(); !ok {
		return false, err
	}
	s.irow++
	s.row = nil
	if s.irow >= s.table.RowCount() {
		return s.Advanced(false), nil
	}
	return s.Advanced(true), nil
}

func (s *randomSequence) current() ([]any, error) {
	if s.row == nil {
		row, err := s.table.Row(s.irow)
		if err != nil {
			return nil, err
		}
		s.row = row
	}
	return s.row, nil
}

func (s *randomSequence) Cell(icol int) (any, error) {
	if err := s.CheckCell(icol); err != nil {
		return nil, err
	}
	row, err := s.current()
	if err != nil {
		return nil, err
	}
	return row[icol], nil
}

func (s *randomSequence) Row() ([]any, error) {
	if err := s.CheckRow(); err != nil {
		return nil, err
	}
	row, err := s.current()
	if err != nil {
		return nil, err
	}
	out := make([]any, len(row))
	copy(out, row)
	return out, nil
}

func (s *randomSequence) Close() error {
	if s.MarkClosed() {
		s.row = nil
	}
	return nil
}
