package runtime

import (
	"context"
	"testing"

	"github.com/brimdata/jsoniq"
	"github.com/stretchr/testify/assert"
)

func TestRegistryPlacement(t *testing.T) {
	root := NewRootContext(context.Background(), Config{})
	child := NewChildContext(root)
	child.functions = newRegistry(DefaultBuiltins)
	assert.Panics(t, child.checkRegistryPlacement)

	orphan := newNode(nil)
	assert.Panics(t, orphan.checkRegistryPlacement)
	id := jsoniq.NewFunctionIdentifier(jsoniq.NewName("f"), 0)
	assert.Panics(t, func() { orphan.HasUserDefinedFunction(id) })
}
