package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
)

func newTestPlugin(t *testing.T) (*Plugin, *event.Bus) {
	t.Helper()

	bus := event.NewBus(0)
	p := New()
	require.NoError(t, p.Setup(context.Background(), &plugin.Host{Bus: bus}))
	t.Cleanup(func() { p.Teardown(context.Background()) })
	return p, bus
}

func run(t *testing.T, p *Plugin, op string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	ops := p.Tools()[0].Operations
	out, err := operation.Invoke(context.Background(), ops[op], params)
	require.NoError(t, err, "operation %s returned %v", op, out)
	return out
}

func TestRegisterDeliverUnregister(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		bodies = append(bodies, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p, bus := newTestPlugin(t)

	registered := run(t, p, "register", map[string]interface{}{
		"url":    server.URL + "/hook",
		"events": []interface{}{"memory.added"},
	})
	id, _ := registered["webhook_id"].(string)
	require.NotEmpty(t, id)

	require.NoError(t, bus.Emit(context.Background(), "memory.added", map[string]interface{}{"memory_id": "m1"}))

	// Delivery is async.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bodies) == 1
	}, 2*time.Second, 10*time.Millisecond)

	removed := run(t, p, "unregister", map[string]interface{}{"webhook_id": id})
	assert.Equal(t, true, removed["removed"])

	require.NoError(t, bus.Emit(context.Background(), "memory.added", map[string]interface{}{"memory_id": "m2"}))
	p.wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, bodies, 1)
}

func TestRegisterRejectsBadURL(t *testing.T) {
	p, _ := newTestPlugin(t)

	ops := p.Tools()[0].Operations
	out, err := operation.Invoke(context.Background(), ops["register"], map[string]interface{}{
		"url":    "not a url",
		"events": []interface{}{"memory.added"},
	})
	require.Error(t, err)
	assert.Equal(t, errno.KindValidation, errno.KindOf(err))
	assert.NotEmpty(t, out["violations"])
}

func TestList(t *testing.T) {
	p, _ := newTestPlugin(t)

	run(t, p, "register", map[string]interface{}{
		"url":    "http://example.com/a",
		"events": []interface{}{"memory.added", "memory.deleted"},
	})

	out := run(t, p, "list", nil)
	assert.EqualValues(t, 1, out["count"])

	hooks := out["webhooks"].([]interface{})
	entry := hooks[0].(map[string]interface{})
	assert.Equal(t, "http://example.com/a", entry["url"])
	assert.ElementsMatch(t, []string{"memory.added", "memory.deleted"}, entry["events"])
}
