package formats

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"tablekit/pkg/table"
)

const defaultMaxCellWidth = 200

// HTMLWriter writes a table as a bare HTML TABLE element.
type HTMLWriter struct {
	// MaxCellWidth bounds the rendered length of each cell; 0 means 200.
	MaxCellWidth int
}

func (w *HTMLWriter) FormatName() string { return "html" }

func (w *HTMLWriter) LooksLikeFile(location string) bool {
	return strings.HasSuffix(location, ".html") || strings.HasSuffix(location, ".htm")
}

func (w *HTMLWriter) WriteStream(t table.Table, out io.Writer) error {
	maxWidth := w.MaxCellWidth
	if maxWidth <= 0 {
		maxWidth = defaultMaxCellWidth
	}
	bw := bufio.NewWriter(out)
	pw := &lineWriter{w: bw}

	pw.line("<TABLE BORDER='1'>")
	if name := t.Name(); name != "" {
		pw.line("<CAPTION><STRONG>" + escapeHTML(name) + "</STRONG></CAPTION>")
	}

	cols := table.Columns(t)
	names := make([]string, len(cols))
	units := make([]string, len(cols))
	hasUnits := false
	for i, col := range cols {
		names[i] = escapeHTML(col.Name)
		if col.Unit != "" {
			hasUnits = true
			units[i] = "(" + escapeHTML(col.Unit) + ")"
		}
	}
	pw.row("TH", names)
	if hasUnits {
		pw.row("TH", units)
	}
	pw.line("<TR><TD colspan='" + strconv.Itoa(len(cols)) + "'></TD></TR>")
	if pw.err != nil {
		return pw.err
	}

	cells := make([]string, len(cols))
	err := table.ForEachRow(t, func(row []any) error {
		for i, col := range cols {
			cells[i] = escapeHTML(col.FormatValue(row[i], maxWidth))
			if cells[i] == "" {
				cells[i] = "&nbsp;"
			}
		}
		pw.row("TD", cells)
		return pw.err
	})
	if err != nil {
		return err
	}

	pw.line("</TABLE>")
	if pw.err != nil {
		return pw.err
	}
	return bw.Flush()
}

// lineWriter keeps the first write error and drops later output.
type lineWriter struct {
	w   *bufio.Writer
	err error
}

func (p *lineWriter) line(s string) {
	if p.err != nil {
		return
	}
	if _, err := p.w.WriteString(s); err != nil {
		p.err = err
		return
	}
	p.err = p.w.WriteByte('\n')
}

func (p *lineWriter) row(tag string, values []string) {
	p.line("<TR>")
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString(" <")
		sb.WriteString(tag)
		sb.WriteByte('>')
		sb.WriteString(v)
		sb.WriteString("</")
		sb.WriteString(tag)
		sb.WriteByte('>')
	}
	p.line(sb.String())
	p.line("</TR>")
}

// escapeHTML replaces markup characters with entities and characters
// outside 1..253 with '?'.
func escapeHTML(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '"':
			sb.WriteString("&quot;")
		case '\'':
			sb.WriteString("&apos;")
		default:
			if r > 0 && r < 254 {
				sb.WriteRune(r)
			} else {
				sb.WriteByte('?')
			}
		}
	}
	return sb.String()
}
