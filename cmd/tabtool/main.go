// Command tabtool converts, fits, summarises and serves tables.
//
// Usage:
//
//	tabtool [-log-level l] [-log-format text|json] <command> [flags] [args]
//
// Commands are convert, fit, stats and serve.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tablekit/pkg/catalog"
	"tablekit/pkg/expr"
	"tablekit/pkg/formats"
	"tablekit/pkg/goexpr"
	"tablekit/pkg/logging"
	"tablekit/pkg/service"
	"tablekit/pkg/stats"
	"tablekit/pkg/table"
	"tablekit/pkg/view"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *env, args []string) error
}

type env struct {
	stdout   io.Writer
	stderr   io.Writer
	registry *formats.Registry
}

var commands = []command{
	{"convert", "-in file -out file [-ifmt f] [-ofmt f] [-compiler expr|go] [-addcol spec]... [-head n]", runConvert},
	{"fit", "-in file -x col -y col [-w col] [-logx] [-logy]", runFit},
	{"stats", "-in file", runStats},
	{"serve", "[-addr host:port] file...", runServe},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tabtool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	level := fs.String("log-level", "warn", "log level: debug, info, warn or error")
	format := fs.String("log-format", "text", "log format: text or json")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	lvl, err := logging.ParseLevel(*level)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	logging.Reset()
	if err := logging.Init(logging.Config{Level: lvl, Format: *format, Output: stderr}); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if fs.NArg() == 0 {
		printUsage(stderr)
		return 2
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		reg := formats.NewRegistry()
		reg.Stdout = stdout
		err := cmd.run(ctx, &env{stdout: stdout, stderr: stderr, registry: reg}, rest)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 0
		case errors.As(err, new(*usageError)):
			fmt.Fprintf(stderr, "tabtool %s: %v\nusage: tabtool %s %s\n", cmd.name, err, cmd.name, cmd.usage)
			return 2
		}
		logging.Error("command failed", "command", cmd.name, "error", err)
		fmt.Fprintf(stderr, "tabtool %s: %v\n", cmd.name, err)
		return 1
	}
	fmt.Fprintf(stderr, "tabtool: unknown command %q\n", name)
	printUsage(stderr)
	return 2
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: tabtool [-log-level l] [-log-format text|json] <command> [flags]")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.usage)
	}
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// stringList collects a repeated flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, " ") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func releaseTable(t table.Table) {
	if r, ok := t.(interface{ Release() }); ok {
		r.Release()
	}
}

func runConvert(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("convert", e)
	in := fs.String("in", "", "input table location")
	out := fs.String("out", formats.StdoutLocation, "output table location, - for standard output")
	ifmt := fs.String("ifmt", "", "input format, guessed from the name if empty")
	ofmt := fs.String("ofmt", "", "output format, guessed from the name if empty")
	compiler := fs.String("compiler", "expr", "expression compiler for -addcol: expr or go")
	resultType := fs.String("type", "double", "result type of -addcol columns with the go compiler")
	head := fs.Int64("head", -1, "keep only the first n rows")
	var addcols stringList
	fs.Var(&addcols, "addcol", "add a computed column: [-after|-before col] [-units u] [-ucd u] [-utype u] [-desc d] [-shape s] [-elsize n] name expr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return usagef("-in is required")
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments %v", fs.Args())
	}

	comp, err := newCompiler(*compiler, *resultType)
	if err != nil {
		return err
	}
	steps := make([]*view.AddColumnStep, 0, len(addcols))
	for _, spec := range addcols {
		step, err := parseAddColumn(spec)
		if err != nil {
			return err
		}
		steps = append(steps, step)
	}

	t, err := e.registry.Load(ctx, *in, *ifmt)
	if err != nil {
		return err
	}
	defer releaseTable(t)

	for _, step := range steps {
		if t, err = step.Wrap(t, comp); err != nil {
			return err
		}
	}
	if *head >= 0 {
		if t, err = view.Head(t, *head); err != nil {
			return err
		}
	}

	format := *ofmt
	if format == "" && *out == formats.StdoutLocation {
		format = "csv"
	}
	if err := e.registry.Write(t, *out, format); err != nil {
		return err
	}
	logging.Info("converted table", "in", *in, "out", *out, "columns", t.ColumnCount())
	return nil
}

func newCompiler(name, resultType string) (view.Compiler, error) {
	switch name {
	case "expr":
		return expr.Compiler{}, nil
	case "go":
		typ, err := table.ValueTypeFromString(resultType)
		if err != nil {
			return nil, usagef("bad -type: %v", err)
		}
		return goexpr.NewCompiler(typ), nil
	}
	return nil, usagef("unknown compiler %q", name)
}

// parseAddColumn reads one -addcol value. Words after the column name are
// joined back into the expression, so quoting the expression is optional.
func parseAddColumn(spec string) (*view.AddColumnStep, error) {
	words, err := splitWords(spec)
	if err != nil {
		return nil, usagef("bad -addcol %q: %v", spec, err)
	}
	step, rest, err := view.ParseAddColumnArgs(words)
	if err != nil {
		return nil, usagef("bad -addcol %q: %v", spec, err)
	}
	if len(rest) > 0 {
		step.Expr = strings.Join(append([]string{step.Expr}, rest...), " ")
	}
	return step, nil
}

// splitWords splits on white space. Single quotes group words and are
// removed; anything else, double quotes included, is kept verbatim.
func splitWords(s string) ([]string, error) {
	var words []string
	var cur strings.Builder
	inWord, quoted := false, false
	for _, r := range s {
		switch {
		case r == '\'':
			quoted = !quoted
			inWord = true
		case !quoted && (r == ' ' || r == '\t' || r == '\n'):
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}

func runFit(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("fit", e)
	in := fs.String("in", "", "input table location")
	ifmt := fs.String("ifmt", "", "input format, guessed from the name if empty")
	var opts stats.FitOptions
	fs.StringVar(&opts.X, "x", "", "x column")
	fs.StringVar(&opts.Y, "y", "", "y column")
	fs.StringVar(&opts.Weight, "w", "", "optional weight column")
	fs.BoolVar(&opts.LogX, "logx", false, "fit against log10(x)")
	fs.BoolVar(&opts.LogY, "logy", false, "fit against log10(y)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || opts.X == "" || opts.Y == "" {
		return usagef("-in, -x and -y are required")
	}

	t, err := e.registry.Load(ctx, *in, *ifmt)
	if err != nil {
		return err
	}
	defer releaseTable(t)

	fit, err := stats.Fit(t, opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.stdout, "%s\npoints = %d\n", fit, fit.Stats.Count())
	return err
}

func runStats(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("stats", e)
	in := fs.String("in", "", "input table location")
	ifmt := fs.String("ifmt", "", "input format, guessed from the name if empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return usagef("-in is required")
	}

	t, err := e.registry.Load(ctx, *in, *ifmt)
	if err != nil {
		return err
	}
	defer releaseTable(t)

	sum, err := stats.Summarize(t)
	if err != nil {
		return err
	}
	return sum.Print(e.stdout)
}

func runServe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("serve", e)
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := catalog.New()
	if err := c.LoadFiles(ctx, e.registry, fs.Args()...); err != nil {
		return err
	}
	defer func() {
		for _, name := range c.Names() {
			_ = c.Remove(name)
		}
	}()
	logging.Info("catalog loaded", "tables", len(c.Names()))
	return service.NewServer(service.Config{Addr: *addr}, c, e.registry).Run(ctx)
}
