package portal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/backend/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.NewStore(memory.Config{JWTSecret: "s"}, nil)
	clock := &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(store, append([]RegistryOption{
		WithIdleTimeout(30 * time.Minute),
		WithSweepInterval(0),
		WithClock(clock.Now),
	}, opts...)...)
	t.Cleanup(r.Close)
	return r, store, clock
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	shell, err := r.Create(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, shell.ID())
	assert.Equal(t, ViewLogin, shell.View(context.Background()).Kind)

	got, ok := r.Get(shell.ID())
	require.True(t, ok)
	assert.Same(t, shell, got)

	_, ok = r.Get("unknown")
	assert.False(t, ok)

	other, err := r.Create(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, shell.ID(), other.ID())
	assert.Equal(t, 2, r.Len())

	r.Remove(shell.ID())
	_, ok = r.Get(shell.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_IdleExpiry(t *testing.T) {
	r, store, clock := newTestRegistry(t)
	_, err := store.AddUser("ana@example.com", "pw", backend.Profile{Rol: "cliente"})
	require.NoError(t, err)

	idle, err := r.Create(context.Background())
	require.NoError(t, err)
	active, err := r.Create(context.Background())
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	_, ok := r.Get(active.ID())
	require.True(t, ok)

	clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	_, ok = r.Get(idle.ID())
	assert.False(t, ok)
	_, ok = r.Get(active.ID())
	assert.True(t, ok)

	// The expired shell no longer follows its auth client.
	_, err = idle.Handle().Auth.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, ViewLogin, idle.View(context.Background()).Kind)

	clock.Advance(31 * time.Minute)
	_, ok = r.Get(active.ID())
	assert.False(t, ok, "expired on access")
	assert.Zero(t, r.Len())
}

func TestRegistry_MaxShells(t *testing.T) {
	r, _, clock := newTestRegistry(t, WithMaxShells(2))

	first, err := r.Create(context.Background())
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)
	second, err := r.Create(context.Background())
	require.NoError(t, err)

	_, err = r.Create(context.Background())
	assert.ErrorIs(t, err, ErrRegistryFull)
	assert.Equal(t, 2, r.Len())

	// Once the first shell has idled out it makes room for a new one.
	clock.Advance(15 * time.Minute)
	third, err := r.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	_, ok := r.Get(first.ID())
	assert.False(t, ok)
	_, ok = r.Get(second.ID())
	assert.True(t, ok)
	_, ok = r.Get(third.ID())
	assert.True(t, ok)
}

func TestRegistry_Close(t *testing.T) {
	store := memory.NewStore(memory.Config{JWTSecret: "s"}, nil)
	r := NewRegistry(store, WithSweepInterval(10*time.Millisecond))

	_, err := r.Create(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())

	r.Close()
	r.Close()
	assert.Zero(t, r.Len())

	_, err = r.Create(context.Background())
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistry_BackgroundSweep(t *testing.T) {
	store := memory.NewStore(memory.Config{JWTSecret: "s"}, nil)
	clock := &fakeClock{now: time.Now()}
	r := NewRegistry(store,
		WithIdleTimeout(time.Minute),
		WithSweepInterval(5*time.Millisecond),
		WithClock(clock.Now),
	)
	defer r.Close()

	_, err := r.Create(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}
