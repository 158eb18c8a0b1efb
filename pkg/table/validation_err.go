package table

import (
	"fmt"
	"strings"
)

// ValidationError collects structural problems found while checking table
// metadata or streamed content. Each problem keeps the location it was found at.
type ValidationError struct {
	Problems []ErrWithCtx
}

type ErrWithCtx struct {
	Error   string
	Context string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		p := e.Problems[0]
		if p.Context == "" {
			return "validation failed: " + p.Error
		}
		return fmt.Sprintf("validation failed: %s (at %s)", p.Error, p.Context)
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error
	}
	return fmt.Sprintf("validation failed with %d problems: %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *ValidationError) Add(err string, context string) {
	e.Problems = append(e.Problems, ErrWithCtx{
		Error:   err,
		Context: context,
	})
}

func (e *ValidationError) Extend(other error) {
	switch otherErr := other.(type) {
	case *ValidationError:
		e.Problems = append(e.Problems, otherErr.Problems...)
	default:
		e.Add(other.Error(), "")
	}
}

func (e *ValidationError) HasProblems() bool {
	return len(e.Problems) > 0
}

// OrNil returns e if it has problems, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.HasProblems() {
		return e
	}
	return nil
}

func NewVErr(err string, context string) error {
	return &ValidationError{
		Problems: []ErrWithCtx{
			{
				Error:   err,
				Context: context,
			},
		},
	}
}
