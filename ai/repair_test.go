package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/kbflow/core"
	"github.com/stretchr/testify/assert"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid input untouched", `{"a": 1, "b": [1, 2]}`, `{"a": 1, "b": [1, 2]}`},
		{"missing opening quote", `{"a": 1, type": "x"}`, `{"a": 1, "type": "x"}`},
		{"bare key", `{label: "x"}`, `{"label": "x"}`},
		{"trailing comma in object", `{"a": 1,}`, `{"a": 1}`},
		{"trailing comma in array", `[1, 2, ]`, `[1, 2 ]`},
		{"string contents untouched", `{"text": "a, b: c,}"}`, `{"text": "a, b: c,}"}`},
		{"escaped quote in string", `{"text": "say \"hi\", ok"}`, `{"text": "say \"hi\", ok"}`},
		{"bare literal in array", `[true, false]`, `[true, false]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.in))
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
	assert.Equal(t, `{"a":1}`, stripFences("```{\"a\":1}```"))
}

func TestFirstObject(t *testing.T) {
	obj, ok := firstObject(`noise {"a": {"b": "}"}} trailing }`)
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": "}"}}`, obj)

	_, ok = firstObject(`{"a": 1`)
	assert.False(t, ok)
}

func TestClassifyError(t *testing.T) {
	assert.NoError(t, ClassifyError(nil))

	timeout := ClassifyError(fmt.Errorf("post: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, timeout, ErrTimeout)
	assert.ErrorIs(t, timeout, core.ErrTransientExternal)

	assert.ErrorIs(t, ClassifyError(errors.New("API returned unexpected status code: 429")), ErrRateLimited)
	assert.ErrorIs(t, ClassifyError(errors.New("connection refused")), ErrProvider)

	canceled := ClassifyError(context.Canceled)
	assert.ErrorIs(t, canceled, context.Canceled)
	assert.NotErrorIs(t, canceled, core.ErrTransientExternal)

	malformedErr := fmt.Errorf("%w: bad", ErrMalformedResponse)
	assert.Equal(t, malformedErr, ClassifyError(malformedErr))
}
