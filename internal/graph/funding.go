package graph

import (
	"sort"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// ---------------------------------------------------------------------------
// Funding Graph — who funded whom, per token snapshot
// Undirected BFS over SOL funding transfers with dust filter and CEX edge cut.
// ---------------------------------------------------------------------------

// Edge is one funding transfer between wallets.
type Edge struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`    // SOL
	Timestamp int64   `json:"timestamp"` // unix seconds
}

// Config configures funding graph construction and traversal.
type Config struct {
	DustThreshold float64           `yaml:"dust_threshold"` // ignore edges < this (SOL)
	MaxDepth      int               `yaml:"max_depth"`      // BFS hops considered "connected"
	CEXWallets    map[string]string `yaml:"cex_wallets"`    // address → exchange, added to the built-in table
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DustThreshold: 0.01,
		MaxDepth:      2,
	}
}

// FundingGraph is an immutable undirected adjacency set built from funding edges.
type FundingGraph struct {
	config Config
	cex    cexSet
	adj    map[string]map[string]struct{}
	edges  int
}

// NewFundingGraph builds a graph from edges. Dust, self-loops and edges
// touching a known CEX wallet are dropped.
func NewFundingGraph(config Config, edges []Edge) *FundingGraph {
	g := &FundingGraph{
		config: config,
		cex:    newCEXSet(config.CEXWallets),
		adj:    make(map[string]map[string]struct{}),
	}
	for _, e := range edges {
		g.add(e)
	}
	return g
}

func (g *FundingGraph) add(e Edge) {
	if e.From == "" || e.To == "" || e.From == e.To {
		return
	}
	// Anti-poisoning: ignore dust. A zero amount means "unknown" and is kept.
	if e.Amount > 0 && e.Amount < g.config.DustThreshold {
		return
	}
	// CEX firewall: shared exchange withdrawals don't link wallets.
	if g.cex.cuts(e.From, e.To) {
		return
	}
	if g.link(e.From, e.To) {
		g.link(e.To, e.From)
		g.edges++
	}
}

func (g *FundingGraph) link(a, b string) bool {
	n, ok := g.adj[a]
	if !ok {
		n = make(map[string]struct{})
		g.adj[a] = n
	}
	if _, dup := n[b]; dup {
		return false
	}
	n[b] = struct{}{}
	return true
}

// IsCEX reports whether address is an exchange wallet for this graph.
func (g *FundingGraph) IsCEX(address string) (string, bool) {
	exchange, ok := g.cex[address]
	return exchange, ok
}

// NodeCount returns the number of wallets with at least one edge.
func (g *FundingGraph) NodeCount() int { return len(g.adj) }

// EdgeCount returns the number of distinct undirected edges.
func (g *FundingGraph) EdgeCount() int { return g.edges }

// Hops returns the shortest hop count between from and to, or -1 if they are
// not connected within maxDepth hops.
func (g *FundingGraph) Hops(from, to string, maxDepth int) int {
	if from == "" || to == "" {
		return -1
	}
	if from == to {
		return 0
	}
	if _, ok := g.adj[from]; !ok {
		return -1
	}

	visited := map[string]int{from: 0}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		depth := visited[current]
		if depth >= maxDepth {
			continue
		}
		for _, next := range g.sortedNeighbors(current) {
			if _, seen := visited[next]; seen {
				continue
			}
			if next == to {
				return depth + 1
			}
			visited[next] = depth + 1
			queue = append(queue, next)
		}
	}
	return -1
}

// ConnectedTo returns the wallets in candidates reachable from root within the
// configured max depth, in candidate order without duplicates.
func (g *FundingGraph) ConnectedTo(root string, candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, c := range candidates {
		if c == root || seen[c] {
			continue
		}
		seen[c] = true
		if g.Hops(root, c, g.config.MaxDepth) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func (g *FundingGraph) sortedNeighbors(addr string) []string {
	n := g.adj[addr]
	out := make([]string, 0, len(n))
	for k := range n {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EdgesFromSnapshot reads funding edges from the snapshot's funding_edges
// records ({from, to, amount, timestamp}). Malformed records are skipped.
func EdgesFromSnapshot(s snapshot.Snapshot) []Edge {
	recs := s.Records(snapshot.FieldFundingEdges)
	edges := make([]Edge, 0, len(recs))
	for _, r := range recs {
		e := Edge{
			From:      r.String("from", ""),
			To:        r.String("to", ""),
			Amount:    r.NonNegFloat("amount"),
			Timestamp: int64(r.NonNegFloat("timestamp")),
		}
		if e.From == "" || e.To == "" {
			continue
		}
		edges = append(edges, e)
	}
	return edges
}
