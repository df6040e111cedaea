package domain

import "math"

// MaxVOMMDepth bounds the history queue used to walk the context tree.
const MaxVOMMDepth = 5

// vommEpsilon clamps layer-1 PPM probabilities away from 0 and 1 so that
// ln() never diverges.
const vommEpsilon = 1e-9

// VOMMNode is a node in the variable-order context tree. The root has a
// nil Exe; every other node is reached by a path of exe observations from
// the root.
type VOMMNode struct {
	Exe      *Exe
	Children map[string]*VOMMNode // keyed by exe path
	Count    int
	Parent   *VOMMNode
}

func newVOMMNode(exe *Exe, parent *VOMMNode) *VOMMNode {
	return &VOMMNode{Exe: exe, Parent: parent, Children: make(map[string]*VOMMNode)}
}

// childFor returns the child of n keyed by exe, creating it if absent.
func (n *VOMMNode) childFor(exe *Exe) *VOMMNode {
	if c, ok := n.Children[exe.Path]; ok {
		return c
	}
	c := newVOMMNode(exe, n)
	n.Children[exe.Path] = c
	return c
}

// VOMMTree is the sequence model: a bounded-depth context tree plus a
// bigram layer recorded directly under the root.
type VOMMTree struct {
	Root           *VOMMNode
	CurrentContext *VOMMNode

	// History is the bounded queue of recently executed exes, oldest
	// first, capped at MaxVOMMDepth.
	History []*Exe
}

// NewVOMMTree constructs an empty tree rooted with no exe.
func NewVOMMTree() *VOMMTree {
	root := newVOMMNode(nil, nil)
	return &VOMMTree{Root: root, CurrentContext: root}
}

// Update records an observation of exe: it is pushed onto the bounded
// history, the context tree is walked one step from CurrentContext
// (creating a child if needed), and — once at least two exes have been
// observed — a bigram root -> prev -> exe is recorded or incremented.
func (t *VOMMTree) Update(exe *Exe) {
	var prev *Exe
	if n := len(t.History); n > 0 {
		prev = t.History[n-1]
	}

	t.History = append(t.History, exe)
	if len(t.History) > MaxVOMMDepth {
		t.History = t.History[1:]
	}

	child := t.CurrentContext.childFor(exe)
	child.Count++
	t.CurrentContext = child

	if prev != nil {
		prevNode := t.Root.childFor(prev)
		bigram := prevNode.childFor(exe)
		bigram.Count++
	}
}

// Hydrate seeds the bigram layer from the pairwise markov model: for
// every exe a and every edge incident on it with weight observed in the
// "a runs alone, then b joins" transition (weight[1][3] when a is the A
// endpoint, weight[2][3] when a is the B endpoint), the corresponding
// count is added to the bigram root -> a -> b.
func (t *VOMMTree) Hydrate(exes []*Exe, resolve func(MarkovHandle) *MarkovEdge) {
	for _, a := range exes {
		aNode := t.Root.childFor(a)
		for _, h := range a.MarkovHandles {
			edge := resolve(h)
			if edge == nil {
				continue
			}
			var n float64
			var b *Exe
			if edge.A == a {
				n = edge.Weight[StateARunning][StateBothRunning]
				b = edge.B
			} else {
				n = edge.Weight[StateBRunning][StateBothRunning]
				b = edge.A
			}
			if n <= 0 {
				continue
			}
			bNode := aNode.childFor(b)
			bNode.Count += int(n)
		}
	}
}

// runningPredicate reports whether exe is currently running, given the state's
// last completed scan timestamp.
type runningPredicate func(*Exe) bool

// Predict applies the three cumulative signals to every exe's Lnprob
// field: layer 1 (PPM over bigrams for every exe in history), layer 2
// (deep-context fallback when CurrentContext is non-root), and layer 3
// (global frequency, always run).
func (t *VOMMTree) Predict(isRunning runningPredicate) {
	for _, exe := range t.History {
		if node, ok := t.Root.Children[exe.Path]; ok {
			applyPPMLayer(node, isRunning)
		}
	}

	if t.CurrentContext != t.Root && len(t.CurrentContext.Children) > 0 {
		applyPPMLayer(t.CurrentContext, isRunning)
		for _, c := range t.CurrentContext.Children {
			if c.Exe == nil || isRunning(c.Exe) {
				continue
			}
			c.Exe.Lnprob += math.Log(1.1)
		}
	}

	applyGlobalFrequencyLayer(t.Root, isRunning)
}

// applyPPMLayer implements layer 1 / the shared body of layer 2: sum the
// children's counts under ctx, clamp each child's conditional probability
// into (epsilon, 1-epsilon), and accumulate ln(p) onto every not-running
// child's Lnprob.
func applyPPMLayer(ctx *VOMMNode, isRunning runningPredicate) {
	if len(ctx.Children) == 0 {
		return
	}
	var total float64
	for _, c := range ctx.Children {
		total += float64(c.Count)
	}
	if total == 0 {
		return
	}
	for _, c := range ctx.Children {
		if c.Exe == nil || isRunning(c.Exe) {
			continue
		}
		p := float64(c.Count) / total
		p = clamp(p, vommEpsilon, 1-vommEpsilon)
		c.Exe.Lnprob += math.Log(p)
	}
}

// applyGlobalFrequencyLayer implements layer 3: over every (context,
// child) pair directly under root, sum counts into G, then for each
// not-running child with n_c > 0 contribute ln(1 - g_c) where
// g_c = clamp(0.1 + 0.4*(n_c/G), ..., 0.5).
func applyGlobalFrequencyLayer(root *VOMMNode, isRunning runningPredicate) {
	var g float64
	for _, ctx := range root.Children {
		for _, c := range ctx.Children {
			g += float64(c.Count)
		}
	}
	if g == 0 {
		return
	}
	for _, ctx := range root.Children {
		for _, c := range ctx.Children {
			if c.Exe == nil || isRunning(c.Exe) || c.Count == 0 {
				continue
			}
			gc := 0.1 + 0.4*(float64(c.Count)/g)
			if gc > 0.5 {
				gc = 0.5
			}
			c.Exe.Lnprob += math.Log(1 - gc)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
