package analysis

import (
	"fmt"
	"strings"
)

// Report renders a plain text summary of the entity graph: a ranked
// entity table followed by any reference cycles. The output carries no
// ANSI sequences so robot callers can parse it.
func (s *SchemaStats) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "entities: %d  references: %d  density: %.3f\n", s.NodeCount, s.EdgeCount, s.Density)

	if s.NodeCount == 0 {
		return b.String()
	}
	b.WriteByte('\n')

	ranked := s.Rank()
	nameWidth := len("ENTITY")
	for _, e := range ranked {
		if len(e) > nameWidth {
			nameWidth = len(e)
		}
	}

	fmt.Fprintf(&b, "%4s  %-*s  %3s  %3s  %8s  %5s\n", "RANK", nameWidth, "ENTITY", "IN", "OUT", "PAGERANK", "LEVEL")
	for i, e := range ranked {
		fmt.Fprintf(&b, "%4d  %-*s  %3d  %3d  %8.4f  %5d\n",
			i+1, nameWidth, e, s.InDegree[e], s.OutDegree[e], s.PageRank[e], s.Levels[e])
	}

	if len(s.Cycles) > 0 {
		b.WriteString("\nreference cycles:\n")
		for _, c := range s.Cycles {
			fmt.Fprintf(&b, "  %s\n", formatCyclePath(c))
		}
	}

	return b.String()
}

// formatCyclePath creates a readable cycle path string.
func formatCyclePath(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " → ")
}
