package domain

import "testing"

// S3 — VOMM bigram.
func TestVOMMTree_BigramAndContext(t *testing.T) {
	tree := NewVOMMTree()

	firefox := NewExe("/usr/bin/firefox")
	vim := NewExe("/usr/bin/vim")
	bash := NewExe("/bin/bash")

	seq := []*Exe{firefox, vim, firefox, vim, bash}
	for _, exe := range seq {
		tree.Update(exe)
	}

	ffNode, ok := tree.Root.Children[firefox.Path]
	if !ok {
		t.Fatalf("root has no firefox child")
	}
	vimUnderFF, ok := ffNode.Children[vim.Path]
	if !ok {
		t.Fatalf("firefox has no vim child")
	}
	if vimUnderFF.Count != 2 {
		t.Fatalf("root.firefox.vim.count = %d, want 2", vimUnderFF.Count)
	}

	// current context path is root -> firefox -> vim -> bash (depth 3).
	depth := 0
	for n := tree.CurrentContext; n != tree.Root; n = n.Parent {
		depth++
	}
	if depth != 3 {
		t.Fatalf("current context depth = %d, want 3", depth)
	}
	if tree.CurrentContext.Exe != bash {
		t.Fatalf("current context exe = %v, want bash", tree.CurrentContext.Exe)
	}

	// Predicting with no exe running leaves vim's lnprob negative: it is a
	// frequent bigram target.
	neverRunning := func(*Exe) bool { return false }
	tree.Predict(neverRunning)
	if vim.Lnprob >= 0 {
		t.Fatalf("vim.Lnprob = %v, want < 0", vim.Lnprob)
	}
}

func TestVOMMTree_HistoryBoundedAtMaxDepth(t *testing.T) {
	tree := NewVOMMTree()
	for i := 0; i < MaxVOMMDepth+10; i++ {
		tree.Update(NewExe("/bin/x"))
	}
	if len(tree.History) != MaxVOMMDepth {
		t.Fatalf("history length = %d, want %d", len(tree.History), MaxVOMMDepth)
	}
}

func TestVOMMTree_RunningExeNeverBid(t *testing.T) {
	tree := NewVOMMTree()
	a := NewExe("/bin/a")
	b := NewExe("/bin/b")
	tree.Update(a)
	tree.Update(b)
	tree.Update(a)
	tree.Update(b)

	running := map[*Exe]bool{b: true}
	tree.Predict(func(e *Exe) bool { return running[e] })

	if b.Lnprob != 0 {
		t.Fatalf("running exe b.Lnprob = %v, want 0 (no bid while running)", b.Lnprob)
	}
}

func TestVOMMTree_Hydrate(t *testing.T) {
	tree := NewVOMMTree()
	a := NewExe("/bin/a")
	b := NewExe("/bin/b")

	edge := NewMarkovEdge(1, a, b, 0, 0)
	edge.Weight[StateARunning][StateBothRunning] = 5

	resolve := func(h MarkovHandle) *MarkovEdge {
		if h == 1 {
			return edge
		}
		return nil
	}
	a.MarkovHandles = []MarkovHandle{1}
	b.MarkovHandles = []MarkovHandle{1}

	tree.Hydrate([]*Exe{a}, resolve)

	node, ok := tree.Root.Children[a.Path]
	if !ok {
		t.Fatalf("root has no a child after hydrate")
	}
	bNode, ok := node.Children[b.Path]
	if !ok {
		t.Fatalf("a has no b child after hydrate")
	}
	if bNode.Count != 5 {
		t.Fatalf("bigram count = %d, want 5", bNode.Count)
	}
}
