package formats

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/parquet/compress"
	"golang.org/x/sync/errgroup"

	"tablekit/pkg/arrowtable"
	"tablekit/pkg/logging"
	"tablekit/pkg/table"
	"tablekit/pkg/tbin"
)

// Registry maps format names to writers and loaders. Lookups by location
// try handlers in registration order.
type Registry struct {
	// Stdout receives output written to StdoutLocation; nil means os.Stdout.
	Stdout io.Writer

	mu      sync.RWMutex
	writers []TableWriter
	loaders []TableLoader
}

// NewRegistry returns a registry holding the built-in formats.
func NewRegistry() *Registry {
	r := &Registry{}
	r.RegisterWriter(&HTMLWriter{})
	r.RegisterWriter(CSVWriter{})
	r.RegisterWriter(&tbin.Writer{Codec: tbin.CodecZstd})
	r.RegisterWriter(&arrowtable.ParquetWriter{Compression: compress.Codecs.Zstd})

	r.RegisterLoader(CSVLoader{})
	r.RegisterLoader(tbin.Loader{})
	r.RegisterLoader(arrowtable.ParquetLoader{})
	return r
}

// RegisterWriter adds w, replacing any writer with the same name.
func (r *Registry) RegisterWriter(w TableWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.writers {
		if strings.EqualFold(existing.FormatName(), w.FormatName()) {
			r.writers[i] = w
			return
		}
	}
	r.writers = append(r.writers, w)
}

// RegisterLoader adds l, replacing any loader with the same name.
func (r *Registry) RegisterLoader(l TableLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.loaders {
		if strings.EqualFold(existing.FormatName(), l.FormatName()) {
			r.loaders[i] = l
			return
		}
	}
	r.loaders = append(r.loaders, l)
}

func (r *Registry) Writer(name string) (TableWriter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.writers {
		if strings.EqualFold(w.FormatName(), name) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: no writer named %q", ErrUnknownFormat, name)
}

func (r *Registry) Loader(name string) (TableLoader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.loaders {
		if strings.EqualFold(l.FormatName(), name) {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: no loader named %q", ErrUnknownFormat, name)
}

func (r *Registry) WriterFor(location string) (TableWriter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.writers {
		if w.LooksLikeFile(location) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: can't guess output format for %q", ErrUnknownFormat, location)
}

func (r *Registry) LoaderFor(location string) (TableLoader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.loaders {
		if l.LooksLikeFile(location) {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: can't guess input format for %q", ErrUnknownFormat, location)
}

// Write writes t to location. An empty format is guessed from the location.
func (r *Registry) Write(t table.Table, location, format string) error {
	var tw TableWriter
	var err error
	if format == "" {
		tw, err = r.WriterFor(location)
	} else {
		tw, err = r.Writer(format)
	}
	if err != nil {
		return err
	}
	logging.WithComponent("formats").Debug("selected writer", "format", tw.FormatName(), "location", location)
	return writeLocation(tw, t, location, r.stdout())
}

// Load reads the table at location. An empty format is guessed from the location.
func (r *Registry) Load(ctx context.Context, location, format string) (table.Table, error) {
	var tl TableLoader
	var err error
	if format == "" {
		tl, err = r.LoaderFor(location)
	} else {
		tl, err = r.Loader(format)
	}
	if err != nil {
		return nil, err
	}
	logging.WithComponent("formats").Debug("selected loader", "format", tl.FormatName(), "location", location)
	return tl.Load(ctx, location)
}

// WriteAll writes t to every location concurrently, each through its own
// row sequence, with the format guessed per location. The first failure
// is returned after all writes finish.
func (r *Registry) WriteAll(ctx context.Context, t table.Table, locations ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, location := range locations {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return r.Write(t, location, "")
		})
	}
	return g.Wait()
}

func (r *Registry) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}
