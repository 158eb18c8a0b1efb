package table

import (
	"go/scanner"
	"go/token"
	"strconv"
	"strings"
)

// ColumnIdentifier resolves user supplied column identifiers against the
// columns of a table. An identifier is either "$N" (1-based position), an
// exact column name, or a column name differing only in case.
type ColumnIdentifier struct {
	columns []ColumnInfo
}

func NewColumnIdentifier(t Table) *ColumnIdentifier {
	return &ColumnIdentifier{columns: Columns(t)}
}

func IdentifierForColumns(columns []ColumnInfo) *ColumnIdentifier {
	return &ColumnIdentifier{columns: columns}
}

func (c *ColumnIdentifier) Index(id string) (int, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "$") {
		n, err := strconv.Atoi(id[1:])
		if err == nil {
			if n < 1 || n > len(c.columns) {
				return -1, &UnknownColumnError{ID: id}
			}
			return n - 1, nil
		}
	}

	if idx, err := c.match(id, func(name string) bool { return name == id }); idx >= 0 || err != nil {
		return idx, err
	}
	if idx, err := c.match(id, func(name string) bool { return strings.EqualFold(name, id) }); idx >= 0 || err != nil {
		return idx, err
	}
	return -1, &UnknownColumnError{ID: id}
}

// Indices resolves every identifier in ids, failing on the first bad one.
func (c *ColumnIdentifier) Indices(ids []string) ([]int, error) {
	out := make([]int, len(ids))
	for i, id := range ids {
		idx, err := c.Index(id)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func (c *ColumnIdentifier) match(id string, eq func(string) bool) (int, error) {
	var found []int
	for i, col := range c.columns {
		if eq(col.Name) {
			found = append(found, i)
		}
	}
	switch len(found) {
	case 0:
		return -1, nil
	case 1:
		return found[0], nil
	}
	return -1, &AmbiguousColumnError{ID: id, Indices: found}
}

// ReplacePositionalRefs rewrites each $N token of Go expression source as
// prefix+N, so that it parses as an identifier. Text inside string, rune
// and raw string literals and comments is left alone.
func ReplacePositionalRefs(src, prefix string) string {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))
	var s scanner.Scanner
	s.Init(file, []byte(src), func(token.Position, string) {}, scanner.ScanComments)

	var sb strings.Builder
	last, dollar := 0, -1
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		off := file.Offset(pos)
		if tok == token.INT && dollar >= 0 && off == dollar+1 && isDecimal(lit) {
			sb.WriteString(src[last:dollar])
			sb.WriteString(prefix)
			sb.WriteString(lit)
			last = off + len(lit)
		}
		dollar = -1
		if tok == token.ILLEGAL && lit == "$" {
			dollar = off
		}
	}
	sb.WriteString(src[last:])
	return sb.String()
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
