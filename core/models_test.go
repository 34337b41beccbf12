package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestSegmentID(t *testing.T) {
	if SegmentID("doc-1", 0) != SegmentID("doc-1", 0) {
		t.Errorf("SegmentID() is not stable")
	}
	if SegmentID("doc-1", 0) == SegmentID("doc-1", 1) {
		t.Errorf("SegmentID() collides across positions")
	}
	if SegmentID("doc-1", 0) == SegmentID("doc-2", 0) {
		t.Errorf("SegmentID() collides across documents")
	}
}

func TestSegment_HasEmbedding(t *testing.T) {
	seg := Segment{}
	if seg.HasEmbedding() {
		t.Errorf("HasEmbedding() = true for nil vector")
	}
	seg.Vector = []float32{0.1}
	if !seg.HasEmbedding() {
		t.Errorf("HasEmbedding() = false for populated vector")
	}
}
