package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/internal/mnemod/service/container"
	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
)

type fakePlugin struct {
	md       Metadata
	setupErr error
	setups   *[]string
	downs    *[]string
	tools    []ToolDefinition
}

func (p *fakePlugin) Metadata() Metadata { return p.md }

func (p *fakePlugin) Setup(ctx context.Context, host *Host) error {
	if p.setups != nil {
		*p.setups = append(*p.setups, p.md.Name)
	}
	return p.setupErr
}

func (p *fakePlugin) Teardown(ctx context.Context) error {
	if p.downs != nil {
		*p.downs = append(*p.downs, p.md.Name)
	}
	return nil
}

func (p *fakePlugin) Tools() []ToolDefinition { return p.tools }

func newHost() *Host {
	return &Host{Container: container.New(), Bus: event.NewBus(0)}
}

func echoTool(tool string) []ToolDefinition {
	return []ToolDefinition{{
		Name: tool,
		Operations: map[string]operation.Handler{
			"echo": operation.NewFunc(schema.Metadata{Name: "echo"},
				func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
					return map[string]interface{}{"ok": true}, nil
				}),
		},
	}}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "memory"}}))
	err := r.Register(&fakePlugin{md: Metadata{Name: "memory"}})
	require.Error(t, err)
}

func TestInitializeAllRespectsDependencyOrder(t *testing.T) {
	var setups []string
	r := NewRegistry(newHost())

	require.NoError(t, r.Register(&fakePlugin{
		md: Metadata{Name: "graph", Dependencies: []string{"entity"}}, setups: &setups}))
	require.NoError(t, r.Register(&fakePlugin{
		md: Metadata{Name: "entity", Dependencies: []string{"memory"}}, setups: &setups}))
	require.NoError(t, r.Register(&fakePlugin{
		md: Metadata{Name: "memory"}, setups: &setups}))

	require.NoError(t, r.InitializeAll(context.Background()))
	assert.Equal(t, []string{"memory", "entity", "graph"}, setups)
}

func TestInitializeAllUnresolvedDependency(t *testing.T) {
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{
		md: Metadata{Name: "graph", Dependencies: []string{"missing"}}}))

	err := r.InitializeAll(context.Background())
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindPluginDepUnresolved))
}

func TestInitializeAllDependencyCycle(t *testing.T) {
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{
		md: Metadata{Name: "a", Dependencies: []string{"b"}}}))
	require.NoError(t, r.Register(&fakePlugin{
		md: Metadata{Name: "b", Dependencies: []string{"a"}}}))

	err := r.InitializeAll(context.Background())
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindPluginDepCycle))
}

func TestSetupFailureLeavesOperationsUnexposedAndFailsDependents(t *testing.T) {
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{
		md:       Metadata{Name: "memory"},
		setupErr: errors.New("no store"),
		tools:    echoTool("memory"),
	}))
	require.NoError(t, r.Register(&fakePlugin{
		md: Metadata{Name: "entity", Dependencies: []string{"memory"}}}))

	require.NoError(t, r.InitializeAll(context.Background()))

	_, err := r.OperationHandler("memory", "echo")
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindUnknownTool))

	infos := r.Infos()
	require.Len(t, infos, 2)
	assert.Equal(t, StateFailed, infos[0].State)
	assert.Equal(t, StateFailed, infos[1].State)
}

func okOp(name string) operation.Handler {
	return operation.NewFunc(schema.Metadata{Name: name},
		func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"ok": true}, nil
		})
}

func TestToolMergesOperationsAcrossPlugins(t *testing.T) {
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p1"}, tools: []ToolDefinition{{
		Name:        "memory",
		Description: "record store",
		Operations:  map[string]operation.Handler{"echo": okOp("echo")},
	}}}))
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p2"}, tools: []ToolDefinition{{
		Name:       "memory",
		Operations: map[string]operation.Handler{"stats": okOp("stats")},
	}}}))

	require.NoError(t, r.InitializeAll(context.Background()))

	_, err := r.OperationHandler("memory", "echo")
	require.NoError(t, err)
	_, err = r.OperationHandler("memory", "stats")
	require.NoError(t, err)

	defs := r.ToolDefinitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "memory", defs[0].Name)
	assert.Equal(t, "record store", defs[0].Description)
	assert.Len(t, defs[0].Operations, 2)

	for _, info := range r.Infos() {
		assert.Equal(t, StateActive, info.State)
		assert.Equal(t, []string{"memory"}, info.Tools)
	}
}

func TestReloadWithdrawsOnlyOwnOperations(t *testing.T) {
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p1"}, tools: []ToolDefinition{{
		Name:       "memory",
		Operations: map[string]operation.Handler{"echo": okOp("echo")},
	}}}))
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p2"}, tools: []ToolDefinition{{
		Name:       "memory",
		Operations: map[string]operation.Handler{"stats": okOp("stats")},
	}}}))
	require.NoError(t, r.InitializeAll(context.Background()))

	require.NoError(t, r.ReloadPlugin(context.Background(), "p2"))

	_, err := r.OperationHandler("memory", "echo")
	require.NoError(t, err)
	_, err = r.OperationHandler("memory", "stats")
	require.NoError(t, err)
}

func TestOperationCollisionIsFatal(t *testing.T) {
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p1"}, tools: echoTool("memory")}))
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p2"}, tools: echoTool("memory")}))

	err := r.InitializeAll(context.Background())
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindOperationCollision))
}

func TestExposeFailureWithdrawsEarlierTools(t *testing.T) {
	invalid := operation.NewFunc(schema.Metadata{
		Name: "echo",
		Parameters: []schema.ParameterDefinition{{
			Name:     "text",
			Type:     schema.TypeString,
			Required: true,
			Default:  "hi",
		}},
	}, func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		return nil, nil
	})

	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p1"}, tools: []ToolDefinition{
		{Name: "alpha", Operations: map[string]operation.Handler{"echo": okOp("echo")}},
		{Name: "beta", Operations: map[string]operation.Handler{"echo": invalid}},
	}}))

	require.NoError(t, r.InitializeAll(context.Background()))

	_, err := r.OperationHandler("alpha", "echo")
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindUnknownTool))
	_, err = r.OperationHandler("beta", "echo")
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindUnknownTool))

	infos := r.Infos()
	require.Len(t, infos, 1)
	assert.Equal(t, StateFailed, infos[0].State)
	assert.Empty(t, infos[0].Tools)
}

func TestOperationLookupErrors(t *testing.T) {
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p1"}, tools: echoTool("memory")}))
	require.NoError(t, r.InitializeAll(context.Background()))

	_, err := r.OperationHandler("nope", "echo")
	assert.True(t, errno.IsKind(err, errno.KindUnknownTool))

	_, err = r.OperationHandler("memory", "nope")
	assert.True(t, errno.IsKind(err, errno.KindUnknownOperation))

	h, err := r.OperationHandler("memory", "echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", h.Metadata().Name)
}

func TestTeardownAllReversesInitOrder(t *testing.T) {
	var setups, downs []string
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "memory"}, setups: &setups, downs: &downs}))
	require.NoError(t, r.Register(&fakePlugin{
		md: Metadata{Name: "entity", Dependencies: []string{"memory"}}, setups: &setups, downs: &downs}))

	require.NoError(t, r.InitializeAll(context.Background()))
	r.TeardownAll(context.Background())

	assert.Equal(t, []string{"memory", "entity"}, setups)
	assert.Equal(t, []string{"entity", "memory"}, downs)

	for _, info := range r.Infos() {
		assert.Equal(t, StateStopped, info.State)
	}
}

func TestReloadPlugin(t *testing.T) {
	var setups, downs []string
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{
		md: Metadata{Name: "memory"}, setups: &setups, downs: &downs, tools: echoTool("memory")}))

	require.NoError(t, r.InitializeAll(context.Background()))
	require.NoError(t, r.ReloadPlugin(context.Background(), "memory"))

	assert.Equal(t, []string{"memory", "memory"}, setups)
	assert.Equal(t, []string{"memory"}, downs)

	_, err := r.OperationHandler("memory", "echo")
	require.NoError(t, err)

	err = r.ReloadPlugin(context.Background(), "ghost")
	require.Error(t, err)
}

func TestToolDefinitionsSorted(t *testing.T) {
	r := NewRegistry(newHost())
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p1"}, tools: echoTool("zeta")}))
	require.NoError(t, r.Register(&fakePlugin{md: Metadata{Name: "p2"}, tools: echoTool("alpha")}))
	require.NoError(t, r.InitializeAll(context.Background()))

	defs := r.ToolDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "zeta", defs[1].Name)
}
