package search

import (
	"math"
	"strings"
	"testing"
)

func results(ids ...string) []Result {
	out := make([]Result, len(ids))
	for i, id := range ids {
		out[i] = Result{NodeID: id, Content: "content for " + id}
	}
	return out
}

func TestFuseRRFMultiStrategySupportWins(t *testing.T) {
	lists := []rankedList{
		{strategy: StrategyKeyword, weight: 1.0, results: results("both", "kw-only")},
		{strategy: StrategySemantic, weight: 1.0, results: results("sem-only", "both")},
	}

	fused := fuseRRF(lists, 60, false)
	if len(fused) != 3 {
		t.Fatalf("got %d fused results, want 3", len(fused))
	}
	if fused[0].NodeID != "both" {
		t.Errorf("top result = %s, want the node present in both lists", fused[0].NodeID)
	}

	// both: 1/61 + 1/62; kw-only and sem-only: 1/61 each.
	wantTop := 1.0/61 + 1.0/62
	if math.Abs(fused[0].Score-wantTop) > 1e-9 {
		t.Errorf("top score = %f, want %f", fused[0].Score, wantTop)
	}
}

func TestFuseRRFRespectsWeights(t *testing.T) {
	lists := []rankedList{
		{strategy: StrategyKeyword, weight: 0.1, results: results("kw")},
		{strategy: StrategySemantic, weight: 1.0, results: results("sem")},
	}

	fused := fuseRRF(lists, 60, false)
	if fused[0].NodeID != "sem" {
		t.Errorf("top result = %s, want the heavier-weighted list to win", fused[0].NodeID)
	}
}

func TestFuseRRFExplanations(t *testing.T) {
	lists := []rankedList{
		{strategy: StrategyKeyword, weight: 1.0, results: results("a")},
		{strategy: StrategySemantic, weight: 1.0, results: results("a")},
	}

	fused := fuseRRF(lists, 60, true)
	if len(fused) != 1 {
		t.Fatalf("got %d results, want 1", len(fused))
	}
	exp := fused[0].Explanation
	if !strings.Contains(exp, "keyword") || !strings.Contains(exp, "semantic") {
		t.Errorf("explanation %q should name both contributing strategies", exp)
	}
}

func TestFuseRRFEmpty(t *testing.T) {
	if out := fuseRRF(nil, 60, false); len(out) != 0 {
		t.Errorf("fusing no lists should yield nothing, got %d", len(out))
	}
}
