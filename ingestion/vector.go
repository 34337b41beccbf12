package ingestion

import (
	"fmt"
	"math"

	"github.com/poiesic/kbflow/core"
)

// normalizeVector scales v to unit length. A zero or non-finite vector
// cannot be normalized and is reported as a malformed response.
func normalizeVector(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", core.ErrMalformedResponse)
	}

	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return nil, fmt.Errorf("%w: embedding has no direction", core.ErrMalformedResponse)
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result, nil
}
