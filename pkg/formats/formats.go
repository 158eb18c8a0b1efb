// Package formats holds the pluggable table writers and loaders and the
// registry that picks between them by name or by location.
package formats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"tablekit/pkg/logging"
	"tablekit/pkg/table"
)

var ErrUnknownFormat = errors.New("unknown table format")

// StdoutLocation names the process standard output as a write target.
const StdoutLocation = "-"

// TableWriter streams a table to a byte sink in one format.
// LooksLikeFile is a hint from the location name only.
type TableWriter interface {
	FormatName() string
	LooksLikeFile(location string) bool
	WriteStream(t table.Table, w io.Writer) error
}

// TableLoader reads a table from a location in one format.
type TableLoader interface {
	FormatName() string
	LooksLikeFile(location string) bool
	Load(ctx context.Context, location string) (table.Table, error)
}

// WriteTable writes t to a file, or to standard output for "-". Files are
// closed on every path; standard output is flushed but never closed.
func WriteTable(tw TableWriter, t table.Table, location string) error {
	return writeLocation(tw, t, location, os.Stdout)
}

var createFile = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

func writeLocation(tw TableWriter, t table.Table, location string, stdout io.Writer) (err error) {
	var sink io.Writer
	if location == StdoutLocation {
		sink = stdout
	} else {
		f, ferr := createFile(location)
		if ferr != nil {
			return fmt.Errorf("can't open %s for writing: %w", location, ferr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close %s: %w", location, cerr)
			}
		}()
		sink = f
	}

	bw := bufio.NewWriter(sink)
	if err := tw.WriteStream(t, bw); err != nil {
		return fmt.Errorf("writing %s table to %s: %w", tw.FormatName(), location, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", location, err)
	}
	logging.WithComponent("formats").Debug("wrote table", "format", tw.FormatName(), "location", location, "table", t.Name())
	return nil
}
