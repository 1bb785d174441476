// Package analysis builds an entity-level graph of a database schema.
// Foreign key columns become directed edges between entities; the graph
// ranks entities for pickers, annotates the schema report, and supplies
// layout levels for snapshot export.
package analysis

import (
	"sort"
	"strings"

	"github.com/vanderheijden86/burrow/pkg/model"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

const (
	pageRankDamping   = 0.85
	pageRankTolerance = 1e-6
	maxCyclesReported = 100
)

// Edge is one reference between two entities. Via lists the FK columns
// carrying it; several columns on the source may point at the same target.
type Edge struct {
	Source string
	Target string
	Via    []string
}

// SchemaStats holds the results of entity graph analysis. All fields are
// populated by Analyze and read-only afterwards.
type SchemaStats struct {
	NodeCount int
	EdgeCount int
	Density   float64

	// OutDegree counts distinct entities each entity references;
	// InDegree counts distinct entities referencing it. Self references
	// contribute to neither, they show up in Cycles.
	OutDegree map[string]int
	InDegree  map[string]int

	// PageRank weights entities by how much the reference structure
	// points at them.
	PageRank map[string]float64

	// TopologicalOrder lists entities referenced-first. Empty when the
	// graph has reference cycles.
	TopologicalOrder []string

	// Levels assigns each entity the length of its longest outgoing
	// reference chain. Entities referencing nothing sit at level 0.
	Levels map[string]int

	// Cycles are closed reference loops, each path ending on its first
	// entity. A self reference shows up as a two-element loop.
	Cycles [][]string
}

// Rank orders entities for pickers and reports. Heavily connected
// entities make the best exploration roots, so connection count leads,
// PageRank breaks ties, names settle the rest.
func (s *SchemaStats) Rank() []string {
	names := make([]string, 0, len(s.OutDegree))
	for e := range s.OutDegree {
		names = append(names, e)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		da := s.InDegree[a] + s.OutDegree[a]
		db := s.InDegree[b] + s.OutDegree[b]
		if da != db {
			return da > db
		}
		if s.PageRank[a] != s.PageRank[b] {
			return s.PageRank[a] > s.PageRank[b]
		}
		return a < b
	})
	return names
}

// Analyzer encapsulates the entity graph logic.
type Analyzer struct {
	g        *simple.DirectedGraph
	idToNode map[string]int64
	nodeToID map[int64]string
	schemas  map[string]*model.Schema
	viaByKey map[[2]string][]string
	selfRefs map[string][]string
}

// NewAnalyzer builds the entity graph from introspected schemas. FK
// columns referencing entities outside the given set are skipped, as are
// hidden columns. A self-referencing FK cannot become a simple-graph
// edge; it is tracked separately and reported as a cycle.
func NewAnalyzer(schemas []*model.Schema) *Analyzer {
	g := simple.NewDirectedGraph()
	idToNode := make(map[string]int64, len(schemas))
	nodeToID := make(map[int64]string, len(schemas))
	schemaMap := make(map[string]*model.Schema, len(schemas))

	for _, s := range schemas {
		if s == nil || s.Entity == "" {
			continue
		}
		if _, dup := idToNode[s.Entity]; dup {
			continue
		}
		schemaMap[s.Entity] = s
		n := g.NewNode()
		g.AddNode(n)
		idToNode[s.Entity] = n.ID()
		nodeToID[n.ID()] = s.Entity
	}

	viaByKey := make(map[[2]string][]string)
	selfRefs := make(map[string][]string)

	for _, s := range schemas {
		if s == nil || schemaMap[s.Entity] != s {
			continue
		}
		u := idToNode[s.Entity]
		for _, c := range s.FKColumns(true) {
			target := c.ForeignKey.TargetEntity
			if target == s.Entity {
				selfRefs[s.Entity] = append(selfRefs[s.Entity], c.Name)
				continue
			}
			v, known := idToNode[target]
			if !known {
				continue
			}
			key := [2]string{s.Entity, target}
			if len(viaByKey[key]) == 0 {
				g.SetEdge(g.NewEdge(g.Node(u), g.Node(v)))
			}
			viaByKey[key] = append(viaByKey[key], c.Name)
		}
	}

	return &Analyzer{
		g:        g,
		idToNode: idToNode,
		nodeToID: nodeToID,
		schemas:  schemaMap,
		viaByKey: viaByKey,
		selfRefs: selfRefs,
	}
}

// Entities returns all graph entities sorted by name.
func (a *Analyzer) Entities() []string {
	names := make([]string, 0, len(a.schemas))
	for e := range a.schemas {
		names = append(names, e)
	}
	sort.Strings(names)
	return names
}

// Edges returns the entity references sorted by source then target.
func (a *Analyzer) Edges() []Edge {
	edges := make([]Edge, 0, len(a.viaByKey))
	for key, via := range a.viaByKey {
		edges = append(edges, Edge{
			Source: key[0],
			Target: key[1],
			Via:    append([]string(nil), via...),
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// Analyze computes all graph metrics synchronously. Entity graphs are
// schema-sized, so nothing here needs phasing or a background goroutine.
func (a *Analyzer) Analyze() *SchemaStats {
	nodeCount := len(a.schemas)
	stats := &SchemaStats{
		NodeCount: nodeCount,
		EdgeCount: a.g.Edges().Len(),
		OutDegree: make(map[string]int, nodeCount),
		InDegree:  make(map[string]int, nodeCount),
		PageRank:  make(map[string]float64, nodeCount),
		Levels:    make(map[string]int, nodeCount),
	}
	if nodeCount == 0 {
		return stats
	}

	// Degree centrality.
	nodes := a.g.Nodes()
	for nodes.Next() {
		n := nodes.Node()
		id := a.nodeToID[n.ID()]
		stats.InDegree[id] = a.g.To(n.ID()).Len()
		stats.OutDegree[id] = a.g.From(n.ID()).Len()
	}

	// Density over ordered entity pairs.
	if n := float64(nodeCount); n > 1 {
		stats.Density = float64(stats.EdgeCount) / (n * (n - 1))
	}

	// Topological order, referenced entities first.
	if sorted, err := topo.Sort(a.g); err == nil {
		stats.TopologicalOrder = make([]string, 0, len(sorted))
		for i := len(sorted) - 1; i >= 0; i-- {
			stats.TopologicalOrder = append(stats.TopologicalOrder, a.nodeToID[sorted[i].ID()])
		}
	}

	for id, score := range network.PageRank(a.g, pageRankDamping, pageRankTolerance) {
		stats.PageRank[a.nodeToID[id]] = score
	}

	stats.Levels = a.computeLevels()
	stats.Cycles = a.findCycles(maxCyclesReported)

	return stats
}

// computeLevels assigns each entity the length of its longest outgoing
// reference chain. Back edges found mid-walk are skipped so members of a
// loop settle on nearby levels instead of recursing forever.
func (a *Analyzer) computeLevels() map[string]int {
	adjacency := make(map[string][]string, len(a.viaByKey))
	for key := range a.viaByKey {
		adjacency[key[0]] = append(adjacency[key[0]], key[1])
	}
	for _, targets := range adjacency {
		sort.Strings(targets)
	}

	const (
		unseen = iota
		walking
		done
	)
	state := make(map[string]int, len(a.schemas))
	levels := make(map[string]int, len(a.schemas))

	var walk func(string) int
	walk = func(entity string) int {
		switch state[entity] {
		case walking:
			return -1
		case done:
			return levels[entity]
		}
		state[entity] = walking
		best := 0
		for _, target := range adjacency[entity] {
			if d := walk(target); d >= 0 && d+1 > best {
				best = d + 1
			}
		}
		state[entity] = done
		levels[entity] = best
		return best
	}

	for _, entity := range a.Entities() {
		walk(entity)
	}
	return levels
}

// findCycles enumerates closed reference loops, normalized to start at
// their smallest entity and sorted for stable output.
func (a *Analyzer) findCycles(max int) [][]string {
	var cycles [][]string

	for _, entity := range a.Entities() {
		if len(a.selfRefs[entity]) > 0 {
			cycles = append(cycles, []string{entity, entity})
		}
	}

	if a.hasMultiEntityCycle() {
		for _, cycle := range topo.DirectedCyclesIn(a.g) {
			ids := make([]string, 0, len(cycle))
			for _, n := range cycle {
				ids = append(ids, a.nodeToID[n.ID()])
			}
			cycles = append(cycles, normalizeCycle(ids))
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		if len(cycles[i]) != len(cycles[j]) {
			return len(cycles[i]) < len(cycles[j])
		}
		return strings.Join(cycles[i], ",") < strings.Join(cycles[j], ",")
	})

	if len(cycles) > max {
		cycles = cycles[:max]
	}
	return cycles
}

// hasMultiEntityCycle is a cheap Tarjan screen before Johnson's
// enumeration runs.
func (a *Analyzer) hasMultiEntityCycle() bool {
	for _, scc := range topo.TarjanSCC(a.g) {
		if len(scc) > 1 {
			return true
		}
	}
	return false
}

// normalizeCycle rotates a closed loop so the smallest entity leads,
// keeping edge order intact.
func normalizeCycle(cycle []string) []string {
	if len(cycle) < 3 {
		return cycle
	}
	body := cycle[:len(cycle)-1]
	min := 0
	for i, e := range body {
		if e < body[min] {
			min = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, body[min:]...)
	out = append(out, body[:min]...)
	out = append(out, body[min])
	return out
}
