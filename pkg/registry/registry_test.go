package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
)

type fakeNode struct {
	id string
}

func (n *fakeNode) ID() string   { return n.id }
func (n *fakeNode) Type() string { return "fake" }

func (n *fakeNode) Execute(_ context.Context, input models.Envelope, _ protocol.ExecutionScope) (models.Envelope, error) {
	return input, nil
}

type fakeFactory struct {
	schema map[string]any
}

func (f *fakeFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.NodeExecutor, error) {
	return &fakeNode{id: id}, nil
}

func (f *fakeFactory) ID() string             { return "fake" }
func (f *fakeFactory) Name() string           { return "Fake" }
func (f *fakeFactory) Description() string    { return "Fake node for tests" }
func (f *fakeFactory) Schema() map[string]any { return f.schema }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestRegistry_CreateNode(t *testing.T) {
	registry := NewRegistry(testLogger())
	registry.RegisterNode(&fakeFactory{})

	node, err := registry.CreateNode(context.Background(), "fake", "node-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "node-1", node.ID())
	assert.True(t, registry.IsNodeRegistered("fake"))
}

func TestRegistry_UnknownType(t *testing.T) {
	registry := NewRegistry(testLogger())

	_, err := registry.CreateNode(context.Background(), "missing", "node-1", nil)
	require.Error(t, err)
	assert.False(t, registry.IsNodeRegistered("missing"))
}

func TestRegistry_SchemaValidation(t *testing.T) {
	registry := NewRegistry(testLogger())
	registry.RegisterNode(&fakeFactory{schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
		},
		"required": []any{"url"},
	}})

	_, err := registry.CreateNode(context.Background(), "fake", "node-1", map[string]any{})
	require.Error(t, err)

	_, err = registry.CreateNode(context.Background(), "fake", "node-1", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
}

func TestValidateConfig_EmptySchemaAcceptsAll(t *testing.T) {
	assert.NoError(t, ValidateConfig(nil, map[string]any{"anything": true}))
}

type failingFactory struct{ fakeFactory }

func (f *failingFactory) Create(_ context.Context, _ string, _ map[string]any) (protocol.NodeExecutor, error) {
	return nil, errors.New("create failed")
}

func TestRegistry_FactoryErrorPropagates(t *testing.T) {
	registry := NewRegistry(testLogger())
	registry.RegisterNode(&failingFactory{})

	_, err := registry.CreateNode(context.Background(), "fake", "node-1", nil)
	assert.EqualError(t, err, "create failed")
}
