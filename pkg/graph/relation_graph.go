// Package graph views a relationship matrix as a weighted undirected graph
// so whole-diagram questions (clusters, strongest pairs, isolated entities)
// can be answered with gonum's graph algorithms.
package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/evnp/graph-of-thrones/pkg/matrix"
)

// Pair is one edge of the relation graph.
type Pair struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"`
}

// RelationGraph has one node per entity, node ID equal to the matrix index,
// and one edge per nonzero cell above the diagonal.
type RelationGraph struct {
	graph *simple.WeightedUndirectedGraph
	names []string
}

// BuildRelationGraph builds the graph for names and their matrix. names[i]
// labels row i.
func BuildRelationGraph(names []string, m *matrix.Matrix) *RelationGraph {
	rg := &RelationGraph{
		graph: simple.NewWeightedUndirectedGraph(0, 0),
		names: append([]string(nil), names...),
	}
	for i := range rg.names {
		rg.graph.AddNode(simple.Node(int64(i)))
	}

	n := m.Len()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := m.At(i, j)
			if w == 0 {
				continue
			}
			edge := rg.graph.NewWeightedEdge(rg.graph.Node(int64(i)), rg.graph.Node(int64(j)), w)
			rg.graph.SetWeightedEdge(edge)
		}
	}
	return rg
}

// Graph returns the underlying gonum graph.
func (rg *RelationGraph) Graph() *simple.WeightedUndirectedGraph {
	return rg.graph
}

func (rg *RelationGraph) name(id int64) string {
	return rg.names[id]
}

// Degree is the number of entities i shares at least one event with.
func (rg *RelationGraph) Degree(i int) int {
	if i < 0 || i >= len(rg.names) {
		return 0
	}
	return rg.graph.From(int64(i)).Len()
}

// Components groups entities into clusters connected by any nonzero weight.
// Members are in index order; clusters are largest first, ties broken by
// their first member.
func (rg *RelationGraph) Components() [][]string {
	cc := topo.ConnectedComponents(rg.graph)

	ids := make([][]int64, len(cc))
	for c, nodes := range cc {
		for _, node := range nodes {
			ids[c] = append(ids[c], node.ID())
		}
		sort.Slice(ids[c], func(a, b int) bool { return ids[c][a] < ids[c][b] })
	}
	sort.Slice(ids, func(a, b int) bool {
		if len(ids[a]) != len(ids[b]) {
			return len(ids[a]) > len(ids[b])
		}
		return ids[a][0] < ids[b][0]
	})

	out := make([][]string, len(ids))
	for c, members := range ids {
		out[c] = make([]string, len(members))
		for k, id := range members {
			out[c][k] = rg.name(id)
		}
	}
	return out
}

// Isolated lists entities with no relation to anyone in the view.
func (rg *RelationGraph) Isolated() []string {
	var out []string
	for i, name := range rg.names {
		if rg.Degree(i) == 0 {
			out = append(out, name)
		}
	}
	return out
}

// StrongestPairs returns the limit heaviest edges, heaviest first. A limit
// of zero or less returns all edges.
func (rg *RelationGraph) StrongestPairs(limit int) []Pair {
	type edge struct {
		a, b int64
		w    float64
	}
	var edges []edge
	it := rg.graph.WeightedEdges()
	for it.Next() {
		e := it.WeightedEdge()
		a, b := e.From().ID(), e.To().ID()
		if a > b {
			a, b = b, a
		}
		edges = append(edges, edge{a, b, e.Weight()})
	}
	sort.Slice(edges, func(x, y int) bool {
		if edges[x].w != edges[y].w {
			return edges[x].w > edges[y].w
		}
		if edges[x].a != edges[y].a {
			return edges[x].a < edges[y].a
		}
		return edges[x].b < edges[y].b
	})

	if limit > 0 && len(edges) > limit {
		edges = edges[:limit]
	}
	out := make([]Pair, len(edges))
	for k, e := range edges {
		out[k] = Pair{A: rg.name(e.a), B: rg.name(e.b), Weight: e.w}
	}
	return out
}
