package container

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
)

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) factory(_ Resolver) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n, nil
}

func TestSingletonConstructedOnce(t *testing.T) {
	c := New()
	ctr := &counter{}
	require.NoError(t, c.Register("store", "", ScopeSingleton, ctr.factory))

	first, err := c.Resolve("store")
	require.NoError(t, err)
	second, err := c.Resolve("store")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, ctr.n)
}

func TestTransientConstructedEveryTime(t *testing.T) {
	c := New()
	ctr := &counter{}
	require.NoError(t, c.Register("store", "", ScopeTransient, ctr.factory))

	_, err := c.Resolve("store")
	require.NoError(t, err)
	_, err = c.Resolve("store")
	require.NoError(t, err)

	assert.Equal(t, 2, ctr.n)
}

func TestRequestScopeClearedBetweenWindows(t *testing.T) {
	c := New()
	ctr := &counter{}
	require.NoError(t, c.Register("session", "", ScopeRequest, ctr.factory))

	first, err := c.Resolve("session")
	require.NoError(t, err)
	second, err := c.Resolve("session")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	c.ClearRequestScope()

	third, err := c.Resolve("session")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, 2, ctr.n)
}

func TestUnregisteredCapability(t *testing.T) {
	c := New()
	_, err := c.Resolve("missing")
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindDependencyNotRegistered))
}

func TestLastRegistrationWinsUnnamed(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterInstance("backend", "memory", "in-memory"))
	require.NoError(t, c.RegisterInstance("backend", "bolt", "bolt"))

	got, err := c.Resolve("backend")
	require.NoError(t, err)
	assert.Equal(t, "bolt", got)

	named, err := c.ResolveNamed("backend", "memory")
	require.NoError(t, err)
	assert.Equal(t, "in-memory", named)
}

func TestResolveAllPreservesRegistrationOrder(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterInstance("backend", "a", 1))
	require.NoError(t, c.RegisterInstance("backend", "b", 2))

	all, err := c.ResolveAll("backend")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 2}, all)
}

func TestCircularDependencyDetected(t *testing.T) {
	c := New()
	require.NoError(t, c.Register("a", "", ScopeTransient, func(r Resolver) (interface{}, error) {
		return r.Resolve("b")
	}))
	require.NoError(t, c.Register("b", "", ScopeTransient, func(r Resolver) (interface{}, error) {
		return r.Resolve("a")
	}))

	_, err := c.Resolve("a")
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindCircularDependency))
}

func TestDiamondDependencyIsNotACycle(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterInstance("leaf", "", "leaf"))
	require.NoError(t, c.Register("left", "", ScopeTransient, func(r Resolver) (interface{}, error) {
		return r.Resolve("leaf")
	}))
	require.NoError(t, c.Register("right", "", ScopeTransient, func(r Resolver) (interface{}, error) {
		return r.Resolve("leaf")
	}))
	require.NoError(t, c.Register("root", "", ScopeTransient, func(r Resolver) (interface{}, error) {
		if _, err := r.Resolve("left"); err != nil {
			return nil, err
		}
		return r.Resolve("right")
	}))

	_, err := c.Resolve("root")
	require.NoError(t, err)
}

func TestChildFallsBackToParent(t *testing.T) {
	parent := New()
	require.NoError(t, parent.RegisterInstance("config", "", "parent-config"))

	child := parent.CreateChild()
	got, err := child.Resolve("config")
	require.NoError(t, err)
	assert.Equal(t, "parent-config", got)

	require.NoError(t, child.RegisterInstance("config", "", "child-config"))
	got, err = child.Resolve("config")
	require.NoError(t, err)
	assert.Equal(t, "child-config", got)

	got, err = parent.Resolve("config")
	require.NoError(t, err)
	assert.Equal(t, "parent-config", got)
}

func TestUnregisterRemovesLocalOnly(t *testing.T) {
	parent := New()
	require.NoError(t, parent.RegisterInstance("svc", "", "parent"))
	child := parent.CreateChild()
	require.NoError(t, child.RegisterInstance("svc", "", "child"))

	assert.True(t, child.Unregister("svc"))
	got, err := child.Resolve("svc")
	require.NoError(t, err)
	assert.Equal(t, "parent", got)
}

func TestHasNamed(t *testing.T) {
	parent := New()
	require.NoError(t, parent.RegisterInstance("backend", "bolt", "bolt"))

	child := parent.CreateChild()
	require.NoError(t, child.RegisterInstance("backend", "memory", "in-memory"))

	assert.True(t, child.HasNamed("backend", "memory"))
	assert.True(t, child.HasNamed("backend", "bolt"))
	assert.False(t, child.HasNamed("backend", "redis"))
	assert.False(t, parent.HasNamed("backend", "memory"))
	assert.False(t, child.HasNamed("missing", "memory"))
}

func TestUnregisterNamedKeepsSiblings(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterInstance("backend", "memory", "in-memory"))
	require.NoError(t, c.RegisterInstance("backend", "bolt", "bolt"))

	assert.True(t, c.UnregisterNamed("backend", "memory"))
	assert.False(t, c.UnregisterNamed("backend", "memory"))

	_, err := c.ResolveNamed("backend", "memory")
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindDependencyNotRegistered))

	got, err := c.ResolveNamed("backend", "bolt")
	require.NoError(t, err)
	assert.Equal(t, "bolt", got)
	assert.True(t, c.Has("backend"))
}

func TestUnregisterNamedLastRegistrationDropsCapability(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterInstance("backend", "memory", "in-memory"))

	assert.True(t, c.UnregisterNamed("backend", "memory"))
	assert.False(t, c.Has("backend"))

	_, err := c.Resolve("backend")
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindDependencyNotRegistered))
}

func TestConstructionFailureWrapped(t *testing.T) {
	c := New()
	require.NoError(t, c.Register("flaky", "", ScopeSingleton, func(r Resolver) (interface{}, error) {
		return nil, assert.AnError
	}))

	_, err := c.Resolve("flaky")
	require.Error(t, err)
	assert.True(t, errno.IsKind(err, errno.KindConstructionFailed))

	// A failed singleton build must not be cached.
	_, err = c.Resolve("flaky")
	require.Error(t, err)
}

func TestConcurrentSingletonResolution(t *testing.T) {
	c := New()
	ctr := &counter{}
	require.NoError(t, c.Register("store", "", ScopeSingleton, ctr.factory))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Resolve("store")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ctr.n)
}
