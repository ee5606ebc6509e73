package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
)

func handlers(t *testing.T) map[string]operation.Handler {
	t.Helper()
	defs := New().Tools()
	require.Len(t, defs, 1)
	return defs[0].Operations
}

func run(t *testing.T, ops map[string]operation.Handler, op string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	out, err := operation.Invoke(context.Background(), ops[op], params)
	require.NoError(t, err, "operation %s returned %v", op, out)
	return out
}

func TestAddAndNeighbors(t *testing.T) {
	ops := handlers(t)

	out := run(t, ops, "add_relation", map[string]interface{}{
		"source": "alice", "relation": "works_at", "target": "initech",
	})
	assert.Equal(t, true, out["added"])

	run(t, ops, "add_relation", map[string]interface{}{
		"source": "initech", "relation": "located_in", "target": "austin",
	})

	both := run(t, ops, "neighbors", map[string]interface{}{"entity": "initech"})
	assert.EqualValues(t, 2, both["count"])

	outgoing := run(t, ops, "neighbors", map[string]interface{}{
		"entity": "initech", "direction": "out",
	})
	assert.EqualValues(t, 1, outgoing["count"])
	rel := outgoing["relations"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "located_in", rel["relation"])
}

func TestDuplicateRelationRejected(t *testing.T) {
	ops := handlers(t)

	params := map[string]interface{}{
		"source": "a", "relation": "knows", "target": "b",
	}
	run(t, ops, "add_relation", params)

	again := run(t, ops, "add_relation", map[string]interface{}{
		"source": "a", "relation": "knows", "target": "b",
	})
	assert.Equal(t, false, again["added"])
}

func TestDeleteRelation(t *testing.T) {
	ops := handlers(t)

	run(t, ops, "add_relation", map[string]interface{}{
		"source": "a", "relation": "knows", "target": "b",
	})
	out := run(t, ops, "delete_relation", map[string]interface{}{
		"source": "a", "relation": "knows", "target": "b",
	})
	assert.Equal(t, true, out["deleted"])

	// The tombstoned edge no longer shows up in traversals.
	neighbors := run(t, ops, "neighbors", map[string]interface{}{"entity": "a"})
	assert.EqualValues(t, 0, neighbors["count"])

	_, err := operation.Invoke(context.Background(), ops["delete_relation"], map[string]interface{}{
		"source": "a", "relation": "knows", "target": "b",
	})
	assert.Error(t, err)
}

func TestNeighborsDirectionChoices(t *testing.T) {
	ops := handlers(t)

	out, err := operation.Invoke(context.Background(), ops["neighbors"], map[string]interface{}{
		"entity": "a", "direction": "sideways",
	})
	require.Error(t, err)
	assert.Equal(t, errno.KindValidation, errno.KindOf(err))
	assert.NotEmpty(t, out["violations"])
}
