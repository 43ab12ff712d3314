package query

import (
	"sort"

	"github.com/fieldlens/reporting/internal/domain"
)

// graphEdge is one directed relationship between two entity tables.
type graphEdge struct {
	to           string
	joinField    string
	foreignField string
	kind         domain.JoinKind
}

// EntityGraph holds the static directed graph of entity relationships and
// resolves join chains between entities with a breadth-first shortest-path
// search. New relationships are added as edges; no enumerated pair table.
type EntityGraph struct {
	adjacency map[string][]graphEdge
	priority  map[string]int
}

// NewEntityGraph returns an empty graph.
func NewEntityGraph() *EntityGraph {
	return &EntityGraph{
		adjacency: make(map[string][]graphEdge),
		priority:  make(map[string]int),
	}
}

// AddRelationship registers a directed edge: to joins onto from with
// to.foreignField = from.joinField.
func (g *EntityGraph) AddRelationship(from, to, joinField, foreignField string, kind domain.JoinKind) {
	if kind == "" {
		kind = domain.JoinInner
	}
	g.adjacency[from] = append(g.adjacency[from], graphEdge{
		to:           to,
		joinField:    joinField,
		foreignField: foreignField,
		kind:         kind,
	})
}

// SetPriority fixes the order used to disambiguate equal-length paths.
// Earlier tables win.
func (g *EntityGraph) SetPriority(tables ...string) {
	for i, table := range tables {
		g.priority[table] = i
	}
}

// DefaultEntityGraph wires the domain's entity chain
// (programs → sites → submissions → observations) in both directions.
func DefaultEntityGraph() *EntityGraph {
	g := NewEntityGraph()

	g.AddRelationship("programs", "sites", "id", "program_id", domain.JoinInner)
	g.AddRelationship("sites", "programs", "program_id", "id", domain.JoinInner)
	g.AddRelationship("sites", "submissions", "id", "site_id", domain.JoinInner)
	g.AddRelationship("submissions", "sites", "site_id", "id", domain.JoinInner)
	g.AddRelationship("submissions", "observations", "id", "submission_id", domain.JoinInner)
	g.AddRelationship("observations", "submissions", "submission_id", "id", domain.JoinInner)

	g.SetPriority("programs", "sites", "submissions", "observations")
	return g
}

// Resolve returns the ordered join chain connecting from to to, or false if
// no path exists. Equal-length candidates are disambiguated by the declared
// priority order, which makes resolution deterministic.
func (g *EntityGraph) Resolve(from, to string) (domain.RelationshipPath, bool) {
	if from == to {
		return domain.RelationshipPath{}, true
	}

	type visit struct {
		table string
		step  domain.JoinStep
		prev  *visit
	}

	queue := []*visit{{table: from}}
	seen := map[string]struct{}{from: {}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges := append([]graphEdge(nil), g.adjacency[current.table]...)
		sort.SliceStable(edges, func(i, j int) bool {
			pi, iok := g.priority[edges[i].to]
			pj, jok := g.priority[edges[j].to]
			if iok && jok {
				return pi < pj
			}
			if iok != jok {
				return iok
			}
			return edges[i].to < edges[j].to
		})

		for _, edge := range edges {
			if _, visited := seen[edge.to]; visited {
				continue
			}
			seen[edge.to] = struct{}{}

			next := &visit{
				table: edge.to,
				step: domain.JoinStep{
					FromTable:    current.table,
					ToTable:      edge.to,
					JoinField:    edge.joinField,
					ForeignField: edge.foreignField,
					Kind:         edge.kind,
				},
				prev: current,
			}

			if edge.to == to {
				var path domain.RelationshipPath
				for v := next; v.prev != nil; v = v.prev {
					path = append(domain.RelationshipPath{v.step}, path...)
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}

	return nil, false
}
