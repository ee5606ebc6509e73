package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/internal/mnemod/service/backend"
	"github.com/mnemora/mnemora/internal/mnemod/service/container"
	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/memory"
)

func newTestRegistry(t *testing.T) *plugin.Registry {
	t.Helper()

	ctn := container.New()
	require.NoError(t, ctn.RegisterInstance(plugin.BackendCapability, "memory", backend.NewMemoryStore()))

	reg := plugin.NewRegistry(&plugin.Host{Container: ctn, Bus: event.NewBus(0)})
	require.NoError(t, reg.Register(New()))
	require.NoError(t, reg.Register(memory.New(memory.Config{})))
	require.NoError(t, reg.InitializeAll(context.Background()))
	t.Cleanup(func() { reg.TeardownAll(context.Background()) })

	return reg
}

func invoke(t *testing.T, reg *plugin.Registry, tool, op string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	h, err := reg.OperationHandler(tool, op)
	require.NoError(t, err)
	out, err := operation.Invoke(context.Background(), h, params)
	require.NoError(t, err, "operation %s.%s returned %v", tool, op, out)
	return out
}

func TestExtract(t *testing.T) {
	reg := newTestRegistry(t)

	out := invoke(t, reg, ToolName, "extract", map[string]interface{}{
		"text": "Alice moved to Berlin and she met Bob there.",
	})

	assert.EqualValues(t, 3, out["count"])
	assert.ElementsMatch(t, []string{"alice", "berlin", "bob"}, out["entities"])
}

func TestIndexedThroughMemoryEvents(t *testing.T) {
	reg := newTestRegistry(t)

	added := invoke(t, reg, memory.ToolName, "add", map[string]interface{}{
		"content": "Grace works at Initech in Austin",
	})
	id := added["memory"].(map[string]interface{})["id"].(string)

	resolved := invoke(t, reg, ToolName, "resolve", map[string]interface{}{"name": "Grace"})
	assert.Equal(t, true, resolved["found"])
	assert.EqualValues(t, 1, resolved["mentions"])
	assert.Contains(t, resolved["memories"], id)
}

func TestResolveUnknown(t *testing.T) {
	reg := newTestRegistry(t)

	out := invoke(t, reg, ToolName, "resolve", map[string]interface{}{"name": "Nobody"})
	assert.Equal(t, false, out["found"])
}

func TestListSortedByMentions(t *testing.T) {
	reg := newTestRegistry(t)

	invoke(t, reg, ToolName, "extract", map[string]interface{}{"text": "Alice and Bob"})
	invoke(t, reg, ToolName, "extract", map[string]interface{}{"text": "Alice again"})

	out := invoke(t, reg, ToolName, "list", nil)
	entities := out["entities"].([]interface{})
	require.Len(t, entities, 2)

	first := entities[0].(map[string]interface{})
	assert.Equal(t, "alice", first["name"])
	assert.EqualValues(t, 2, first["mentions"])
}

func TestStopwordsAndShortTokensIgnored(t *testing.T) {
	names := extractNames("The cat sat. I saw It near A fence by Rome.")
	assert.Equal(t, []string{"rome"}, names)
}
