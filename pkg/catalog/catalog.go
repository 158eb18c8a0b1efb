// Package catalog keeps named tables for the service and the command line
// tools.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tablekit/pkg/logging"
	"tablekit/pkg/table"
)

// Loader loads a table from a location, guessing the format when format is
// empty. *formats.Registry satisfies it.
type Loader interface {
	Load(ctx context.Context, location, format string) (table.Table, error)
}

type releaser interface {
	Release()
}

// Entry is a catalogued table. Readers hold a reference while they use the
// table; a removed entry releases its table once the last reference drops.
type Entry struct {
	Name   string
	Source string
	Table  table.Table

	mu       sync.Mutex
	refCount int
	removed  bool
	released bool
}

func (e *Entry) IncRef() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refCount++
}

func (e *Entry) DecRef() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refCount--
	e.tryRelease()
}

func (e *Entry) markRemoved() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = true
	e.tryRelease()
}

// Released reports whether the entry's table resources have been freed.
func (e *Entry) Released() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

// must be called with the mutex held
func (e *Entry) tryRelease() {
	if !e.removed || e.refCount > 0 || e.released {
		return
	}
	e.released = true
	if r, ok := e.Table.(releaser); ok {
		r.Release()
	}
	logging.WithTable(e.Name).Debug("released table", "source", e.Source)
}

type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*Entry
}

func New() *Catalog {
	return &Catalog{tables: make(map[string]*Entry)}
}

// Add registers t under name. Names are unique.
func (c *Catalog) Add(name string, t table.Table, source string) error {
	if name == "" {
		return fmt.Errorf("table name must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; exists {
		return fmt.Errorf("table %s already exists", name)
	}
	c.tables[name] = &Entry{Name: name, Source: source, Table: t}
	logging.WithTable(name).Debug("catalogued table", "source", source, "columns", t.ColumnCount())
	return nil
}

// Get returns the entry for name. Callers that use the table beyond the
// call should use Acquire instead.
func (c *Catalog) Get(name string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[name]
	return e, ok
}

// Acquire returns the entry for name with a reference held. Call DecRef
// when done.
func (c *Catalog) Acquire(name string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", name)
	}
	e.IncRef()
	return e, nil
}

// Names returns the catalogued names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, exists := c.tables[name]
	if !exists {
		return fmt.Errorf("table %s does not exist", name)
	}
	delete(c.tables, name)
	e.markRemoved()
	return nil
}

// LoadFiles loads each location and adds it under its base file name
// without extension.
func (c *Catalog) LoadFiles(ctx context.Context, loader Loader, locations ...string) error {
	for _, loc := range locations {
		t, err := loader.Load(ctx, loc, "")
		if err != nil {
			return fmt.Errorf("loading %s: %w", loc, err)
		}
		name := strings.TrimSuffix(filepath.Base(loc), filepath.Ext(loc))
		if err := c.Add(name, t, loc); err != nil {
			if r, ok := t.(releaser); ok {
				r.Release()
			}
			return err
		}
	}
	return nil
}
