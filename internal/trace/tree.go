// Package trace holds the in-memory execution-tree model: a flat
// collection of nodes keyed by id, materialized into a tree on demand by
// grouping children by parent and sorting siblings by sequence number, all
// guarded by one lock per execution.
package trace

import (
	"sort"
	"sync"

	"github.com/pmukeshreddy/rlm-engine/internal/models"
)

// Tree is the node store for a single Execution. Sequence numbers are
// assigned at node-start time under Tree's lock, so sibling order always
// reflects the order `llm_query` calls were issued in program control
// flow, even when several children run concurrently.
type Tree struct {
	mu       sync.Mutex
	nodes    map[string]*models.ExecutionNode
	nextSeq  map[string]int // parent node id -> next sequence number
	rootID   string
	totals   totals
}

type totals struct {
	inputTokens  int
	outputTokens int
	costUSD      float64
}

// NewTree builds an empty Tree.
func NewTree() *Tree {
	return &Tree{
		nodes:   make(map[string]*models.ExecutionNode),
		nextSeq: make(map[string]int),
	}
}

// NextSequence allocates and returns the next sequence number for a child
// of parentID (0 for the first, the caller passes "" for the root).
func (t *Tree) NextSequence(parentID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.nextSeq[parentID]
	t.nextSeq[parentID] = seq + 1
	return seq
}

// Add inserts a node into the tree. A node whose IsRoot reports true
// becomes the root.
func (t *Tree) Add(node *models.ExecutionNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[node.ID] = node
	if node.IsRoot() {
		t.rootID = node.ID
	}
}

// Update applies fn to the node with the given id under the tree lock,
// and — if the node's status became terminal — folds its token/cost
// counters into the execution's running totals. fn must not retain node
// beyond its call.
func (t *Tree) Update(id string, fn func(node *models.ExecutionNode)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.nodes[id]
	if !ok {
		return
	}
	wasTerminal := node.Status.Terminal()
	fn(node)
	if !wasTerminal && node.Status.Terminal() {
		t.totals.inputTokens += node.InputTokens
		t.totals.outputTokens += node.OutputTokens
		t.totals.costUSD += node.CostUSD
	}
}

// Get returns a copy-free pointer to the node (callers must not mutate it
// outside Update).
func (t *Tree) Get(id string) (*models.ExecutionNode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	return n, ok
}

// Totals returns the current accumulated input tokens, output tokens, and
// USD cost across all terminal nodes.
func (t *Tree) Totals() (inputTokens, outputTokens int, costUSD float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals.inputTokens, t.totals.outputTokens, t.totals.costUSD
}

// TerminalNodes returns a snapshot of every node currently in a terminal
// status, ordered by depth then sequence number. No caller in this module
// turns it into catch-up events.
func (t *Tree) TerminalNodes() []*models.ExecutionNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*models.ExecutionNode, 0, len(t.nodes))
	for _, n := range t.nodes {
		if n.Status.Terminal() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out
}

// Node is a materialized tree node: an ExecutionNode plus its ordered
// children.
type Node struct {
	*models.ExecutionNode
	Children []*Node
}

// Materialize groups nodes by parent and sorts siblings by
// SequenceNumber.
func (t *Tree) Materialize() *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rootID == "" {
		return nil
	}
	byParent := make(map[string][]*models.ExecutionNode)
	for _, n := range t.nodes {
		byParent[n.ParentNodeID] = append(byParent[n.ParentNodeID], n)
	}
	for _, siblings := range byParent {
		sort.Slice(siblings, func(i, j int) bool {
			return siblings[i].SequenceNumber < siblings[j].SequenceNumber
		})
	}
	var build func(n *models.ExecutionNode) *Node
	build = func(n *models.ExecutionNode) *Node {
		node := &Node{ExecutionNode: n}
		for _, child := range byParent[n.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}
	return build(t.nodes[t.rootID])
}

// ParentChain returns the ids from id up to (and including) the root,
// nearest-first — used to walk up marking ancestors failed on deadline
// expiry.
func (t *Tree) ParentChain(id string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var chain []string
	cur, ok := t.nodes[id]
	for ok {
		chain = append(chain, cur.ID)
		if cur.ParentNodeID == "" {
			break
		}
		cur, ok = t.nodes[cur.ParentNodeID]
	}
	return chain
}
