package arrowtable

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"tablekit/pkg/logging"
	"tablekit/pkg/table"
)

const defaultBatchSize = 4096

// ParquetWriter writes tables as Parquet files, one row group per batch.
type ParquetWriter struct {
	// BatchSize is the number of rows buffered per row group; 0 means 4096.
	BatchSize int
	// Compression applies to every column chunk. The zero value is uncompressed.
	Compression compress.Compression
}

func (w *ParquetWriter) FormatName() string { return "parquet" }

func (w *ParquetWriter) LooksLikeFile(location string) bool {
	return looksLikeParquet(location)
}

func (w *ParquetWriter) WriteStream(t table.Table, out io.Writer) (err error) {
	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	// Parquet has no fixed size list; the shape survives in field metadata.
	schema, err := schemaFor(t, false)
	if err != nil {
		return err
	}

	props := parquet.NewWriterProperties(parquet.WithCompression(w.Compression))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	fw, err := pqarrow.NewFileWriter(schema, out, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close parquet writer: %w", cerr)
		}
	}()

	b := newBatchBuilder(memory.DefaultAllocator, schema, table.Columns(t))
	defer b.Release()

	var total, groups int
	flush := func() error {
		if b.rows == 0 {
			return nil
		}
		rec := b.NewRecord()
		defer rec.Release()
		total += int(rec.NumRows())
		groups++
		return fw.Write(rec)
	}

	err = table.ForEachRow(t, func(row []any) error {
		if err := b.appendRow(row); err != nil {
			return err
		}
		if b.rows >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}
	logging.WithComponent("parquet").Debug("wrote parquet", "table", t.Name(), "rows", total, "row_groups", groups)
	return nil
}

// ParquetLoader reads a whole Parquet file into an Arrow backed table named
// after the file.
type ParquetLoader struct{}

func (ParquetLoader) FormatName() string { return "parquet" }

func (ParquetLoader) LooksLikeFile(location string) bool {
	return looksLikeParquet(location)
}

func (ParquetLoader) Load(ctx context.Context, location string) (table.Table, error) {
	t, err := ReadParquet(ctx, location)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ReadParquet loads the Parquet file at path. Release the result when done.
func ReadParquet(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}
	at, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	defer at.Release()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := FromArrowTable(name, at)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logging.WithComponent("parquet").Debug("read parquet", "path", path, "rows", t.RowCount(), "columns", t.ColumnCount())
	return t, nil
}

func looksLikeParquet(location string) bool {
	l := strings.ToLower(location)
	return strings.HasSuffix(l, ".parquet") || strings.HasSuffix(l, ".parq")
}
