package export

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
)

func newTestPlugin(t *testing.T) (*Plugin, backend.Client) {
	t.Helper()

	store := backend.NewMemoryStore()
	ctn := container.New()
	require.NoError(t, ctn.RegisterInstance(plugin.BackendCapability, "memory", store))

	p := New()
	require.NoError(t, p.Setup(context.Background(), &plugin.Host{Container: ctn, Bus: event.NewBus(0)}))
	return p, store
}

func run(t *testing.T, p *Plugin, op string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	ops := p.Tools()[0].Operations
	out, err := operation.Invoke(context.Background(), ops[op], params)
	require.NoError(t, err, "operation %s returned %v", op, out)
	return out
}

func TestDumpAndRestoreRoundTrip(t *testing.T) {
	p, store := newTestPlugin(t)

	_, err := store.Add(context.Background(), backend.Record{Content: "first", UserID: "u1"})
	require.NoError(t, err)
	_, err = store.Add(context.Background(), backend.Record{Content: "second", UserID: "u2"})
	require.NoError(t, err)

	dumped := run(t, p, "dump", map[string]interface{}{})
	assert.EqualValues(t, 2, dumped["count"])
	assert.Len(t, dumped["ids"], 2)

	data, ok := dumped["data"].(string)
	require.True(t, ok)

	// Restore into a fresh store.
	fresh, freshStore := newTestPlugin(t)
	restored := run(t, fresh, "restore", map[string]interface{}{"data": data})
	assert.EqualValues(t, 2, restored["restored"])

	records, err := freshStore.GetAll(context.Background(), backend.Filter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDumpFiltersByUser(t *testing.T) {
	p, store := newTestPlugin(t)

	_, err := store.Add(context.Background(), backend.Record{Content: "mine", UserID: "u1"})
	require.NoError(t, err)
	_, err = store.Add(context.Background(), backend.Record{Content: "theirs", UserID: "u2"})
	require.NoError(t, err)

	dumped := run(t, p, "dump", map[string]interface{}{"user_id": "u1"})
	assert.EqualValues(t, 1, dumped["count"])
}

func TestRestoreRejectsGarbage(t *testing.T) {
	p, _ := newTestPlugin(t)

	ops := p.Tools()[0].Operations
	_, err := operation.Invoke(context.Background(), ops["restore"], map[string]interface{}{
		"data": "not json at all",
	})
	assert.Error(t, err)
}
