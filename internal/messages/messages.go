// Package messages loads the threshold table: the dwell-time marks at which
// an alert fires and the pool of texts each alert draws from.
//
// The table is authored as markdown. Every level-2 heading is a threshold in
// minutes and the bullet list under it is that threshold's message pool.
package messages

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

//go:embed messages.md
var defaultMessages []byte

// Table maps threshold minutes to message pools.
type Table struct {
	thresholds []int
	pools      map[int][]string
}

// Default returns the built-in table.
func Default() *Table {
	t, err := Parse(defaultMessages)
	if err != nil {
		panic(fmt.Sprintf("embedded messages.md is invalid: %v", err))
	}
	return t
}

// Load reads a markdown table from path. An empty path yields the built-in table.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages file: %w", err)
	}
	return Parse(data)
}

// Parse builds a table from markdown source.
func Parse(src []byte) (*Table, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	t := &Table{pools: make(map[int][]string)}
	current := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level != 2 {
				continue
			}
			label := plainText(node, src)
			minutes, err := strconv.Atoi(strings.TrimSpace(label))
			if err != nil || minutes <= 0 {
				return nil, fmt.Errorf("threshold heading %q is not a positive number of minutes", label)
			}
			if _, dup := t.pools[minutes]; dup {
				return nil, fmt.Errorf("threshold %d is defined twice", minutes)
			}
			current = minutes
			t.pools[minutes] = nil
			t.thresholds = append(t.thresholds, minutes)
		case *ast.List:
			if current == 0 {
				continue
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if msg := plainText(item, src); msg != "" {
					t.pools[current] = append(t.pools[current], msg)
				}
			}
		}
	}

	if len(t.thresholds) == 0 {
		return nil, fmt.Errorf("no thresholds found")
	}
	for _, m := range t.thresholds {
		if len(t.pools[m]) == 0 {
			return nil, fmt.Errorf("threshold %d has no messages", m)
		}
	}
	sort.Ints(t.thresholds)
	return t, nil
}

// Thresholds returns the threshold minutes in ascending order.
func (t *Table) Thresholds() []int {
	return append([]int(nil), t.thresholds...)
}

// Messages returns the pool for a threshold, or nil if it is not configured.
func (t *Table) Messages(minutes int) []string {
	return append([]string(nil), t.pools[minutes]...)
}

// plainText concatenates the text segments under n, joining soft line breaks with a space.
func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
