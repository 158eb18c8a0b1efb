package tbin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tablekit/pkg/table"
)

func buildTable(t *testing.T, numRows int) *table.ColumnarTable {
	t.Helper()
	vec := table.NewColumnInfo("vec", table.TypeFloat)
	vec.Shape = []int{2}
	vec.Unit = "deg"
	desc := table.NewColumnInfo("description", table.TypeString)
	desc.UCD = "meta.note"
	desc.Description = "free text"

	tbl, err := table.NewColumnarTable("sources", []table.ColumnInfo{
		table.NewColumnInfo("id", table.TypeLong),
		table.NewColumnInfo("random_val", table.TypeInt),
		desc,
		vec,
	})
	if err != nil {
		t.Fatalf("NewColumnarTable failed: %v", err)
	}
	tbl.SetParam(table.Param{Name: "epoch", Value: 2000.0, Unit: "yr"})
	tbl.SetParam(table.Param{Name: "survey", Value: "deep"})
	tbl.SetParam(table.Param{Name: "bands", Value: []int32{1, 2, 3}})

	for i := 0; i < numRows; i++ {
		var d any = fmt.Sprintf("val-%d", i)
		if i%7 == 0 {
			d = nil
		}
		row := []any{int64(100 + i), int32(rand.Intn(1000)), d, []float32{float32(i), -float32(i)}}
		if err := tbl.AppendRow(row); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}
	}
	return tbl
}

func writeFile(t *testing.T, tbl table.Table, codec Codec) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_file.tbin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w := &Writer{Codec: codec}
	if err := w.WriteStream(tbl, f); err != nil {
		t.Fatalf("WriteStream failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func TestEndToEnd(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecZstd, CodecGzip} {
		t.Run(codec.String(), func(t *testing.T) {
			numRows := 1000
			tbl := buildTable(t, numRows)
			path := writeFile(t, tbl, codec)

			file, err := Open(path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if file.Codec() != codec {
				t.Errorf("Expected codec %s, got %s", codec, file.Codec())
			}
			if file.RowCount() != int64(numRows) {
				t.Errorf("Expected %d rows, got %d", numRows, file.RowCount())
			}
			if file.Name() != "sources" {
				t.Errorf("Expected name sources, got %q", file.Name())
			}
			if !reflect.DeepEqual(table.Columns(file), table.Columns(tbl)) {
				t.Errorf("Column metadata mismatch:\n%v\n%v", table.Columns(file), table.Columns(tbl))
			}
			if !reflect.DeepEqual(file.Params(), tbl.Params()) {
				t.Errorf("Params mismatch: %v vs %v", file.Params(), tbl.Params())
			}

			want, err := table.ReadAll(tbl)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			got, err := table.ReadAll(file)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Row data mismatch")
			}
		})
	}
}

func TestCompressionShrinksBody(t *testing.T) {
	tbl := buildTable(t, 2000)
	plain, err := os.Stat(writeFile(t, tbl, CodecNone))
	if err != nil {
		t.Fatal(err)
	}
	packed, err := os.Stat(writeFile(t, tbl, CodecZstd))
	if err != nil {
		t.Fatal(err)
	}
	if packed.Size() >= plain.Size() {
		t.Errorf("zstd file (%d bytes) not smaller than plain (%d bytes)", packed.Size(), plain.Size())
	}
}

func TestIndependentSequences(t *testing.T) {
	file, err := Open(writeFile(t, buildTable(t, 10), CodecZstd))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	s1, err := file.RowSequence()
	if err != nil {
		t.Fatal(err)
	}
	s2, err := file.RowSequence()
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if ok, err := s1.Next(); !ok || err != nil {
			t.Fatalf("s1.Next: %v %v", ok, err)
		}
	}
	if ok, err := s2.Next(); !ok || err != nil {
		t.Fatalf("s2.Next: %v %v", ok, err)
	}
	c1, _ := s1.Cell(0)
	c2, _ := s2.Cell(0)
	if c1 != int64(102) || c2 != int64(100) {
		t.Errorf("Expected ids 102 and 100, got %v and %v", c1, c2)
	}

	if err := s1.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if _, err := s1.Next(); !errors.Is(err, table.ErrSequenceClosed) {
		t.Errorf("Expected ErrSequenceClosed, got %v", err)
	}
	if _, err := s1.Row(); !errors.Is(err, table.ErrSequenceClosed) {
		t.Errorf("Expected ErrSequenceClosed from Row, got %v", err)
	}
	if err := s2.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSequentialOnlyWriteUnknownCount(t *testing.T) {
	tbl := buildTable(t, 5)
	var buf bytes.Buffer
	if err := (&Writer{}).WriteStream(unknownCount{tbl}, &buf); err != nil {
		t.Fatalf("WriteStream failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "unknown.tbin")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	file, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if file.RowCount() != -1 {
		t.Errorf("Expected row count -1, got %d", file.RowCount())
	}
	rows, err := table.ReadAll(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Errorf("Expected 5 rows, got %d", len(rows))
	}
}

type unknownCount struct {
	*table.ColumnarTable
}

func (unknownCount) RowCount() int64 { return -1 }

func TestCorruptFiles(t *testing.T) {
	good, err := os.ReadFile(writeFile(t, buildTable(t, 20), CodecNone))
	if err != nil {
		t.Fatal(err)
	}

	_, hlenSize := binary.Uvarint(good[len(BeginMagic):])
	versionAt := len(BeginMagic) + hlenSize

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad begin magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"bad end magic", func(b []byte) []byte { b[len(b)-1] = 'X'; return b }},
		{"too short", func(b []byte) []byte { return b[:6] }},
		{"bad version", func(b []byte) []byte { b[versionAt] = 9; return b }},
		{"bad codec", func(b []byte) []byte { b[versionAt+1] = 7; return b }},
		{"bad body length", func(b []byte) []byte { b[len(b)-trailerSize] ^= 0x40; return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte(nil), good...))
			path := filepath.Join(t.TempDir(), "bad.tbin")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Open(path)
			var ve *table.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestTruncatedBody(t *testing.T) {
	good, err := os.ReadFile(writeFile(t, buildTable(t, 20), CodecNone))
	if err != nil {
		t.Fatal(err)
	}
	// drop three body bytes and re-point the trailer at the shorter body
	n := len(good)
	body := good[:n-trailerSize-3]
	var lenBuf [8]byte
	copy(lenBuf[:], good[n-trailerSize:n-len(EndMagic)])
	length := int64(lenBuf[0]) | int64(lenBuf[1])<<8 | int64(lenBuf[2])<<16
	length -= 3
	lenBuf[0], lenBuf[1], lenBuf[2] = byte(length), byte(length>>8), byte(length>>16)
	data := append(append(append([]byte(nil), body...), lenBuf[:]...), EndMagic...)

	path := filepath.Join(t.TempDir(), "trunc.tbin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	file, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, err = table.ReadAll(file)
	if err == nil {
		t.Fatal("Expected error reading truncated body")
	}
}

// craftFile writes a file around an unchecked header and an arbitrary body.
func craftFile(t *testing.T, h *header, body []byte) string {
	t.Helper()
	hdr, err := h.encode()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.WriteString(BeginMagic)
	if err := WriteVarint(&buf, uint64(len(hdr))); err != nil {
		t.Fatal(err)
	}
	buf.Write(hdr)
	buf.Write(body)
	if err := binary.Write(&buf, binary.LittleEndian, int64(len(body))); err != nil {
		t.Fatal(err)
	}
	buf.WriteString(EndMagic)

	path := filepath.Join(t.TempDir(), "crafted.tbin")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCorruptColumnHeaders(t *testing.T) {
	tests := []struct {
		name  string
		typ   table.ValueType
		shape []int
		size  int
	}{
		{"huge string width", table.TypeString, nil, 1 << 50},
		{"element size below -1", table.TypeString, nil, -5},
		{"negative dimension", table.TypeInt, []int{-2}, -1},
		{"star before last", table.TypeInt, []int{-1, 3}, -1},
		{"too many elements", table.TypeDouble, []int{1 << 20, 1 << 20}, -1},
		{"overflowing product", table.TypeByte, []int{1 << 40, 1 << 40, 1 << 40}, -1},
		{"huge fixed string array width", table.TypeString, []int{2}, 1 << 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := table.NewColumnInfo("bad", tt.typ)
			col.Shape = tt.shape
			col.ElementSize = tt.size
			h := &header{codec: CodecNone, rowCount: 1, name: "crafted", columns: []table.ColumnInfo{col}}
			path := craftFile(t, h, []byte{0, 0, 0, 0, 1, 'x'})

			_, err := Open(path)
			var ve *table.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if !ve.HasProblems() || ve.Problems[0].Context != "bad" {
				t.Errorf("Expected a problem for column bad, got %v", ve)
			}
		})
	}
}

func TestZeroColumnRoundTrip(t *testing.T) {
	tbl, err := table.NewColumnarTable("empty", nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := tbl.AppendRow([]any{}); err != nil {
			t.Fatal(err)
		}
	}

	for _, codec := range []Codec{CodecNone, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			file, err := Open(writeFile(t, tbl, codec))
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if file.ColumnCount() != 0 || file.RowCount() != 3 {
				t.Fatalf("Expected 0 columns and 3 rows, got %d and %d", file.ColumnCount(), file.RowCount())
			}
			rows, err := table.ReadAll(file)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if !reflect.DeepEqual(rows, [][]any{{}, {}, {}}) {
				t.Errorf("Expected three empty rows, got %v", rows)
			}
		})
	}
}

var errRowFailed = errors.New("row source failed")

// failAfterTable fails its sequence once n rows have been read.
type failAfterTable struct {
	*table.ColumnarTable
	n int
}

func (f failAfterTable) RowSequence() (table.RowSequence, error) {
	seq, err := f.ColumnarTable.RowSequence()
	if err != nil {
		return nil, err
	}
	return &failAfterSequence{RowSequence: seq, left: f.n}, nil
}

type failAfterSequence struct {
	table.RowSequence
	left int
}

func (s *failAfterSequence) Next() (bool, error) {
	if s.left == 0 {
		return false, errRowFailed
	}
	s.left--
	return s.RowSequence.Next()
}

type closeTracker struct {
	io.WriteCloser
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return c.WriteCloser.Close()
}

func TestWriterClosesCompressorOnRowError(t *testing.T) {
	var trackers []*closeTracker
	orig := openCompressor
	openCompressor = func(w io.Writer, codec Codec) (io.WriteCloser, error) {
		wc, err := orig(w, codec)
		if err != nil {
			return nil, err
		}
		ct := &closeTracker{WriteCloser: wc}
		trackers = append(trackers, ct)
		return ct, nil
	}
	t.Cleanup(func() { openCompressor = orig })

	for _, codec := range []Codec{CodecNone, CodecZstd, CodecGzip} {
		t.Run(codec.String(), func(t *testing.T) {
			trackers = nil
			var buf bytes.Buffer
			err := (&Writer{Codec: codec}).WriteStream(failAfterTable{buildTable(t, 5), 1}, &buf)
			if !errors.Is(err, errRowFailed) {
				t.Fatalf("Expected row failure, got %v", err)
			}
			if len(trackers) != 1 || trackers[0].closed != 1 {
				t.Errorf("Expected compressor closed once, got %v", trackers)
			}
		})
	}
}
