package confirm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ConfirmedBySameActor(t *testing.T) {
	r := NewRegistry(time.Second)
	p, err := r.Begin("u1", "c1")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	done := make(chan error, 1)
	go func() { done <- p.Wait(context.Background()) }()

	assert.False(t, r.Offer("u2", "c1", "yes"), "other actor")
	assert.False(t, r.Offer("u1", "c2", "yes"), "other channel")
	assert.False(t, r.Offer("u1", "c1", "yes please"), "not the token")
	assert.True(t, r.Offer("u1", "c1", "  YES "))
	assert.False(t, r.Offer("u1", "c1", "yes"), "consumed once")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return")
	}
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Timeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	p, err := r.Begin("u1", "c1")
	require.NoError(t, err)

	assert.ErrorIs(t, p.Wait(context.Background()), ErrTimeout)
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Offer("u1", "c1", "yes"))
}

func TestRegistry_SecondPendingRejected(t *testing.T) {
	r := NewRegistry(time.Second)
	_, err := r.Begin("u1", "c1")
	require.NoError(t, err)

	_, err = r.Begin("u1", "c1")
	assert.ErrorIs(t, err, ErrAlreadyPending)

	_, err = r.Begin("u1", "c2")
	assert.NoError(t, err)
	_, err = r.Begin("u2", "c1")
	assert.NoError(t, err)
}

func TestRegistry_SlotFreedAfterTimeout(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	p, err := r.Begin("u1", "c1")
	require.NoError(t, err)
	require.ErrorIs(t, p.Wait(context.Background()), ErrTimeout)

	_, err = r.Begin("u1", "c1")
	assert.NoError(t, err)
}

func TestRegistry_ContextCancelled(t *testing.T) {
	r := NewRegistry(time.Minute)
	p, err := r.Begin("u1", "c1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
	assert.Equal(t, 0, r.Len())
}
