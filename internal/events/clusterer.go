package events

import (
	"sort"
	"strings"
	"sync"
)

const (
	clusterTreeDepth   = 4
	similarityFloor    = 0.4
	maxBranchesPerNode = 100
	wildcard           = "<*>"
)

// Pattern is one extracted message template with its share of the stream.
type Pattern struct {
	Template   string  `json:"template"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type cluster struct {
	tokens []string
	count  int
}

type treeNode struct {
	children map[string]*treeNode
	clusters []*cluster
}

func newTreeNode() *treeNode {
	return &treeNode{children: make(map[string]*treeNode)}
}

// Clusterer groups device event messages into recurring patterns using a
// fixed-depth token prefix tree. Messages with the same token count and a
// similar prefix land in the same leaf, where the closest existing template
// absorbs them; positions that vary become the <*> wildcard.
type Clusterer struct {
	mu       sync.Mutex
	roots    map[int]*treeNode
	clusters []*cluster
	total    int
}

// NewClusterer creates an empty clusterer.
func NewClusterer() *Clusterer {
	return &Clusterer{roots: make(map[int]*treeNode)}
}

// Add feeds one event message into the clusterer. Blank messages are
// skipped.
func (c *Clusterer) Add(message string) {
	tokens := strings.Fields(message)
	if len(tokens) == 0 {
		return
	}
	for i, tok := range tokens {
		if strings.ContainsAny(tok, "0123456789") {
			tokens[i] = wildcard
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	leaf := c.leafFor(tokens)
	if best := bestMatch(leaf.clusters, tokens); best != nil {
		for i := range best.tokens {
			if best.tokens[i] != tokens[i] {
				best.tokens[i] = wildcard
			}
		}
		best.count++
	} else {
		cl := &cluster{tokens: append([]string(nil), tokens...), count: 1}
		leaf.clusters = append(leaf.clusters, cl)
		c.clusters = append(c.clusters, cl)
	}
	c.total++
}

// leafFor walks the tree by token count and then by leading tokens. A node
// at its branch limit routes unseen tokens through the wildcard child.
func (c *Clusterer) leafFor(tokens []string) *treeNode {
	root := c.roots[len(tokens)]
	if root == nil {
		root = newTreeNode()
		c.roots[len(tokens)] = root
	}

	cur := root
	for i := 0; i < clusterTreeDepth && i < len(tokens); i++ {
		key := tokens[i]
		child := cur.children[key]
		if child == nil {
			if key != wildcard && len(cur.children) >= maxBranchesPerNode {
				key = wildcard
				child = cur.children[key]
			}
			if child == nil {
				child = newTreeNode()
				cur.children[key] = child
			}
		}
		cur = child
	}
	return cur
}

// bestMatch returns the leaf cluster most similar to tokens, or nil when
// none reaches the similarity floor.
func bestMatch(clusters []*cluster, tokens []string) *cluster {
	var best *cluster
	bestSim := 0.0
	for _, cl := range clusters {
		equal := 0
		for i := range tokens {
			if cl.tokens[i] == tokens[i] || cl.tokens[i] == wildcard {
				equal++
			}
		}
		sim := float64(equal) / float64(len(tokens))
		if sim > bestSim {
			best, bestSim = cl, sim
		}
	}
	if bestSim < similarityFloor {
		return nil
	}
	return best
}

// TopPatterns returns up to limit patterns ordered by frequency.
func (c *Clusterer) TopPatterns(limit int) []Pattern {
	c.mu.Lock()
	defer c.mu.Unlock()

	patterns := make([]Pattern, 0, len(c.clusters))
	for _, cl := range c.clusters {
		p := Pattern{Template: strings.Join(cl.tokens, " "), Count: cl.count}
		if c.total > 0 {
			p.Percentage = float64(cl.count) * 100 / float64(c.total)
		}
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Template < patterns[j].Template
	})
	if limit > 0 && len(patterns) > limit {
		patterns = patterns[:limit]
	}
	return patterns
}

// Stats returns the number of distinct patterns and total messages seen.
func (c *Clusterer) Stats() (patterns, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clusters), c.total
}

// Reset drops all learned patterns.
func (c *Clusterer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots = make(map[int]*treeNode)
	c.clusters = nil
	c.total = 0
}
