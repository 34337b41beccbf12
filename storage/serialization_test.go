package storage

import (
	"testing"
	"time"

	"github.com/poiesic/kbflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestSegmentRef(t *testing.T) {
	ref := SegmentRef{DocumentId: "3f6c0d0e-doc", Position: 1234}

	decoded, err := UnmarshalSegmentRef(MarshalSegmentRef(ref))
	require.NoError(t, err)
	assert.Equal(t, ref, decoded)

	_, err = UnmarshalSegmentRef(nil)
	assert.Error(t, err)
}

func TestDocumentRoundTripKeepsCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := &core.Document{
		Id:        "doc-1",
		DatasetId: "ds",
		Content:   "text",
		Status:    core.StatusError,
		Metadata: core.ProcessingMetadata{
			CurrentStage: core.StageEmbedding,
			Embedding:    core.StageProgress{Total: 10, SegmentsProcessed: 9, SegmentsFailed: 1, FailedSegments: []core.ID{5}},
			LastError:    &core.StageError{Stage: core.StageEmbedding, SegmentId: 5, RetryCount: 3, Message: "timeout", OccurredAt: now},
		},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	data, err := MarshalDocument(doc)
	require.NoError(t, err)

	decoded, err := UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestUnmarshalSegment_Invalid(t *testing.T) {
	_, err := UnmarshalSegment([]byte("{not json"))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
