package catalog

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"tablekit/pkg/table"
)

type releasingTable struct {
	*table.ColumnarTable
	releases int
}

func (r *releasingTable) Release() { r.releases++ }

func newTable(t *testing.T, name string) *releasingTable {
	t.Helper()
	tbl, err := table.NewColumnarTable(name, []table.ColumnInfo{table.NewColumnInfo("a", table.TypeLong)})
	if err != nil {
		t.Fatal(err)
	}
	return &releasingTable{ColumnarTable: tbl}
}

func TestCatalog_AddGetNames(t *testing.T) {
	c := New()
	if err := c.Add("b", newTable(t, "b"), "b.tbin"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.Add("a", newTable(t, "a"), "a.csv"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.Add("a", newTable(t, "a"), "again.csv"); err == nil {
		t.Errorf("Expected duplicate name to fail")
	}
	if err := c.Add("", newTable(t, ""), ""); err == nil {
		t.Errorf("Expected empty name to fail")
	}

	if names := c.Names(); !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Errorf("Expected [a b], got %v", names)
	}
	e, ok := c.Get("a")
	if !ok || e.Source != "a.csv" {
		t.Errorf("Expected entry from a.csv, got %v %v", e, ok)
	}
	if _, ok := c.Get("zzz"); ok {
		t.Errorf("Expected no entry for zzz")
	}
}

func TestCatalog_RemoveReleasesAfterLastReader(t *testing.T) {
	c := New()
	tbl := newTable(t, "t1")
	if err := c.Add("t1", tbl, "mem"); err != nil {
		t.Fatal(err)
	}

	e, err := c.Acquire("t1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := c.Remove("t1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if tbl.releases != 0 || e.Released() {
		t.Fatalf("Table released while still referenced")
	}
	if _, err := c.Acquire("t1"); err == nil {
		t.Errorf("Expected removed table to be unavailable")
	}

	e.DecRef()
	if tbl.releases != 1 || !e.Released() {
		t.Errorf("Expected one release after last reference, got %d", tbl.releases)
	}
	if err := c.Remove("t1"); err == nil {
		t.Errorf("Expected second Remove to fail")
	}
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	c := New()
	tables := make([]*releasingTable, 20)
	for i := range tables {
		tables[i] = newTable(t, string(rune('a'+i)))
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			if err := c.Add(name, tables[i], "mem"); err != nil {
				t.Errorf("Add %s failed: %v", name, err)
				return
			}
			e, err := c.Acquire(name)
			if err != nil {
				t.Errorf("Acquire %s failed: %v", name, err)
				return
			}
			_ = c.Names()
			e.DecRef()
		}(i)
	}
	wg.Wait()
	if n := len(c.Names()); n != 20 {
		t.Errorf("Expected 20 tables, got %d", n)
	}
}

type fakeLoader struct {
	tables map[string]table.Table
}

func (f fakeLoader) Load(_ context.Context, location, _ string) (table.Table, error) {
	t, ok := f.tables[location]
	if !ok {
		return nil, errors.New("no such file")
	}
	return t, nil
}

func TestCatalog_LoadFiles(t *testing.T) {
	dup := newTable(t, "x")
	loader := fakeLoader{tables: map[string]table.Table{
		"/data/x.tbin":    newTable(t, "x"),
		"/data/y.parquet": newTable(t, "y"),
		"/other/x.csv":    dup,
	}}

	c := New()
	if err := c.LoadFiles(context.Background(), loader, "/data/x.tbin", "/data/y.parquet"); err != nil {
		t.Fatalf("LoadFiles failed: %v", err)
	}
	if names := c.Names(); !reflect.DeepEqual(names, []string{"x", "y"}) {
		t.Errorf("Expected [x y], got %v", names)
	}

	if err := c.LoadFiles(context.Background(), loader, "/other/x.csv"); err == nil {
		t.Errorf("Expected name clash to fail")
	}
	if dup.releases != 1 {
		t.Errorf("Expected rejected table to be released")
	}
	if err := c.LoadFiles(context.Background(), loader, "/missing.csv"); err == nil {
		t.Errorf("Expected load failure")
	}
}
