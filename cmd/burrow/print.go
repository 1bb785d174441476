package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/vanderheijden86/burrow/pkg/graphtree"
)

// printViewTree writes the rendered tree as plain indented text, one node
// per line, free of ANSI sequences so the output can be piped and diffed.
func printViewTree(w io.Writer, root *graphtree.ViewNode) {
	root.Walk(func(n *graphtree.ViewNode) bool {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", n.Depth), robotLine(n))
		return true
	})
}

// robotLine renders one node the way the TUI does, minus styling.
func robotLine(n *graphtree.ViewNode) string {
	var sb strings.Builder
	switch n.Kind {
	case graphtree.ViewRoot:
		fmt.Fprintf(&sb, "%s #%s", n.Entity, n.RecordID)
		if n.Label != "" {
			sb.WriteString(" · " + n.Label)
		}
	case graphtree.ViewFK:
		fmt.Fprintf(&sb, "%s → %s #%s", n.Via, n.Entity, n.RecordID)
		if n.Label != "" {
			sb.WriteString(" " + n.Label)
		}
	case graphtree.ViewBackRefGroup:
		fmt.Fprintf(&sb, "%s ← %s (%s)", n.Entity, n.Via, robotCount(n))
	case graphtree.ViewBackRefRow:
		fmt.Fprintf(&sb, "#%s", n.RecordID)
		if n.Label != "" {
			sb.WriteString(" " + n.Label)
		}
	case graphtree.ViewAttribute:
		fmt.Fprintf(&sb, "%s: %s", n.Label, n.Cells[0].Value)
	case graphtree.ViewAttributeRow:
		parts := make([]string, 0, len(n.Cells))
		for _, c := range n.Cells {
			parts = append(parts, c.Column+": "+c.Value)
		}
		sb.WriteString(strings.Join(parts, "  "))
	}
	sb.WriteString(robotAnnotation(n))
	return sb.String()
}

func robotCount(n *graphtree.ViewNode) string {
	if n.Shown > 0 && n.Truncated {
		return fmt.Sprintf("%d of %d", n.Shown, n.TotalCount)
	}
	return fmt.Sprintf("%d", n.TotalCount)
}

func robotAnnotation(n *graphtree.ViewNode) string {
	switch {
	case n.Cycle:
		return " (cycle)"
	case n.Missing:
		return " (missing)"
	case n.Err != nil:
		return fmt.Sprintf(" (unavailable: %v)", n.Err)
	}
	return ""
}
