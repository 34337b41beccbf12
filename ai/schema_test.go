package ai

import (
	"testing"

	"github.com/poiesic/kbflow/core"
	"github.com/stretchr/testify/assert"
)

func TestGraphSchema_OrDefault(t *testing.T) {
	def := DefaultGraphSchema()
	assert.Equal(t, DefaultGraphJSONSchema, def.JSON)
	assert.Len(t, def.NodeTypes, len(core.NodeTypes))
	assert.Len(t, def.EdgeTypes, len(core.EdgeTypes))

	assert.Equal(t, def, GraphSchema{}.OrDefault())

	custom := GraphSchema{NodeTypes: []string{"drug"}}.OrDefault()
	assert.Equal(t, []string{"drug"}, custom.NodeTypes)
	assert.Equal(t, def.EdgeTypes, custom.EdgeTypes)
	assert.Equal(t, DefaultGraphJSONSchema, custom.JSON)
}
