package story

// RiskLevel classifies how dangerous a choice is presented to the player.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Node is a single situation in the story. Nodes are immutable once added;
// the engine never edits them in place.
type Node struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Body      string `json:"body"`
	Generated bool   `json:"generated"`
}

// Choice is a directed edge between nodes. ToID may reference a node that
// does not exist yet, provided Generated is true (a promise edge awaiting
// materialization).
type Choice struct {
	ID             string    `json:"id"`
	FromID         string    `json:"from_id"`
	ToID           string    `json:"to_id"`
	Label          string    `json:"label"`
	Cost           int       `json:"cost"`
	RequiredItemID string    `json:"required_item_id,omitempty"`
	Risk           RiskLevel `json:"risk_level"`
	RewardXP       int       `json:"reward_experience"`
	Winning        bool      `json:"winning,omitempty"`
	Generated      bool      `json:"generated"`
}

// Graph holds nodes and choice edges. It is a dumb container: all mutation
// goes through the engine, and no validation logic lives here. Edge order is
// insertion order.
type Graph struct {
	nodes     []Node
	edges     []Choice
	nodeIndex map[string]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodeIndex: make(map[string]int),
	}
}

// FindNode returns the node with the given id, or false if absent.
func (g *Graph) FindNode(id string) (Node, bool) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// OutgoingEdges returns the choices leaving nodeID in insertion order.
func (g *Graph) OutgoingEdges(nodeID string) []Choice {
	var out []Choice
	for _, e := range g.edges {
		if e.FromID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// FindEdge returns the edge with the given id, or false if absent.
func (g *Graph) FindEdge(id string) (Choice, bool) {
	for _, e := range g.edges {
		if e.ID == id {
			return e, true
		}
	}
	return Choice{}, false
}

// AddNode inserts a node. Duplicate ids are rejected.
func (g *Graph) AddNode(n Node) bool {
	if _, exists := g.nodeIndex[n.ID]; exists {
		return false
	}
	g.nodeIndex[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return true
}

// AddEdges appends a batch of edges, skipping any whose id already exists.
// Returns the number of edges added.
func (g *Graph) AddEdges(edges []Choice) int {
	added := 0
	for _, e := range edges {
		if _, dup := g.FindEdge(e.ID); dup {
			continue
		}
		g.edges = append(g.edges, e)
		added++
	}
	return added
}

// RemoveEdges deletes every edge for which pred returns true and returns the
// number removed. Relative order of surviving edges is preserved.
func (g *Graph) RemoveEdges(pred func(Choice) bool) int {
	kept := g.edges[:0]
	removed := 0
	for _, e := range g.edges {
		if pred(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return removed
}

// Nodes returns a copy of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Choice {
	out := make([]Choice, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}
