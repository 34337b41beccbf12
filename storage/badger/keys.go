package badger

import (
	"encoding/binary"

	"github.com/poiesic/kbflow/core"
)

// Key prefixes for different data types
const (
	documentPrefix        = "docrec"
	documentDatasetPrefix = "docds"
	segmentPrefix         = "segrec"
	segmentIDPrefix       = "segid"
	nodePrefix            = "gnode"
	edgePrefix            = "gedge"
	adjacencyPrefix       = "gadj"
)

// scoped builds prefix:len(id)id so that no id can be a prefix of another.
func scoped(prefix, id string) []byte {
	buf := make([]byte, 0, len(prefix)+3+len(id))
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(id)))
	return append(buf, id...)
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(documentPrefix + ":" + id)
}

// makeDocumentDatasetKey generates a key for the dataset index.
// Format: prefix:len(dataset)dataset documentID
func makeDocumentDatasetKey(datasetID, documentID string) []byte {
	return append(makeDocumentDatasetPrefix(datasetID), documentID...)
}

func makeDocumentDatasetPrefix(datasetID string) []byte {
	return scoped(documentDatasetPrefix, datasetID)
}

// makeSegmentKey generates a key for a segment.
// Format: prefix:len(documentID)documentID position, position big-endian so keys sort in document order.
func makeSegmentKey(documentID string, position int) []byte {
	return binary.BigEndian.AppendUint64(makeSegmentPrefix(documentID), uint64(position))
}

func makeSegmentPrefix(documentID string) []byte {
	return scoped(segmentPrefix, documentID)
}

// makeSegmentIDKey generates a key for the segment ID index.
func makeSegmentIDKey(id core.ID) []byte {
	return binary.BigEndian.AppendUint64([]byte(segmentIDPrefix+":"), uint64(id))
}

// makeNodeKey generates a key for a graph node.
// Format: prefix:len(dataset)dataset nodeID
func makeNodeKey(datasetID string, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(makeNodePrefix(datasetID), uint64(id))
}

func makeNodePrefix(datasetID string) []byte {
	return scoped(nodePrefix, datasetID)
}

// makeEdgeKey generates a key for a graph edge.
// Format: prefix:len(dataset)dataset edgeID
func makeEdgeKey(datasetID string, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(makeEdgePrefix(datasetID), uint64(id))
}

func makeEdgePrefix(datasetID string) []byte {
	return scoped(edgePrefix, datasetID)
}

// makeAdjacencyKey generates a key for the node-to-edge index.
// Format: prefix:len(dataset)dataset nodeID edgeID
func makeAdjacencyKey(datasetID string, nodeID, edgeID core.ID) []byte {
	return binary.BigEndian.AppendUint64(makeAdjacencyPrefix(datasetID, nodeID), uint64(edgeID))
}

func makeAdjacencyPrefix(datasetID string, nodeID core.ID) []byte {
	return binary.BigEndian.AppendUint64(scoped(adjacencyPrefix, datasetID), uint64(nodeID))
}
