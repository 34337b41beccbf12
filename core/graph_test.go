package core

import (
	"testing"
	"time"
)

func TestLabelKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" Acme Corp ", "acme corp"},
		{"Acme   Corp", "acme corp"},
		{"\tACME corp\n", "acme corp"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := LabelKey(tt.in); got != tt.want {
			t.Errorf("LabelKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalLabel(t *testing.T) {
	if got := CanonicalLabel(" Acme Corp "); got != "Acme Corp" {
		t.Errorf("CanonicalLabel() = %q", got)
	}
}

func TestNodeID(t *testing.T) {
	a := NodeID("ds", NodeTypeOrganization, " Acme Corp ")
	b := NodeID("ds", NodeTypeOrganization, "acme corp")
	if a != b {
		t.Errorf("NodeID() should ignore whitespace and case")
	}
	if a == NodeID("ds", NodeTypeProduct, "Acme Corp") {
		t.Errorf("NodeID() should depend on type")
	}
	if a == NodeID("other", NodeTypeOrganization, "Acme Corp") {
		t.Errorf("NodeID() should depend on dataset")
	}
}

func TestEdgeID(t *testing.T) {
	a := EdgeID("ds", 1, 2, EdgeTypeProvides)
	if a != EdgeID("ds", 1, 2, EdgeTypeProvides) {
		t.Errorf("EdgeID() is not stable")
	}
	if a == EdgeID("ds", 2, 1, EdgeTypeProvides) {
		t.Errorf("EdgeID() should be directional")
	}
	if a == EdgeID("ds", 1, 2, EdgeTypeUses) {
		t.Errorf("EdgeID() should depend on type")
	}
}

func TestMergeProperties(t *testing.T) {
	existing := map[string]any{"founded": 1999, "hq": "Berlin"}
	incoming := map[string]any{"hq": "Paris", "ceo": nil, "size": "large"}

	got := MergeProperties(existing, incoming)

	want := map[string]any{"founded": 1999, "hq": "Paris", "size": "large"}
	if len(got) != len(want) {
		t.Fatalf("MergeProperties() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("MergeProperties()[%s] = %v, want %v", k, got[k], v)
		}
	}
	if existing["hq"] != "Berlin" {
		t.Errorf("MergeProperties() modified its input")
	}
	if MergeProperties(nil, nil) != nil {
		t.Errorf("MergeProperties(nil, nil) should be nil")
	}
}

func TestGraphEdge_Merge(t *testing.T) {
	low, high := 0.2, 0.8
	now := time.Now()

	edge := &GraphEdge{Weight: &low, Mentions: 1}
	edge.Merge(&GraphEdge{Weight: &high}, now)
	if edge.Weight == nil || *edge.Weight != high {
		t.Errorf("weight should be reinforced to %v", high)
	}
	if edge.Mentions != 2 {
		t.Errorf("Mentions = %d, want 2", edge.Mentions)
	}

	edge.Merge(&GraphEdge{Weight: &low}, now)
	if *edge.Weight != high {
		t.Errorf("weight should never decrease")
	}

	unweighted := &GraphEdge{}
	unweighted.Merge(&GraphEdge{}, now)
	if unweighted.Weight != nil {
		t.Errorf("weight should stay unset")
	}
}

func TestGraphNode_Merge(t *testing.T) {
	node := &GraphNode{Label: "Acme Corp", Mentions: 1, Properties: map[string]any{"a": "1"}}
	node.Merge(&GraphNode{Label: "ACME CORP", Properties: map[string]any{"b": "2"}}, time.Now())

	if node.Label != "Acme Corp" {
		t.Errorf("first-seen label should be kept, got %q", node.Label)
	}
	if node.Mentions != 2 || node.Properties["a"] != "1" || node.Properties["b"] != "2" {
		t.Errorf("unexpected merge result: %+v", node)
	}
}
