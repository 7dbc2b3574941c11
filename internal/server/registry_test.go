package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFirstAndLastTransitions(t *testing.T) {
	h, _ := newTestHub(t)
	r := NewRegistry()

	c1 := NewClient(nil, h, "test", "")
	c2 := NewClient(nil, h, "test", "")

	assert.True(t, r.Register("bob", c1))
	assert.False(t, r.Register("bob", c2))
	assert.True(t, r.IsOnline("bob"))
	assert.Len(t, r.ConnectionsFor("bob"), 2)

	userID, last, found := r.Deregister(c1.ID())
	assert.Equal(t, "bob", userID)
	assert.False(t, last)
	assert.True(t, found)
	assert.True(t, r.IsOnline("bob"))

	userID, last, found = r.Deregister(c2.ID())
	assert.Equal(t, "bob", userID)
	assert.True(t, last)
	assert.True(t, found)
	assert.False(t, r.IsOnline("bob"))
	assert.Empty(t, r.ConnectionsFor("bob"))
}

func TestRegistryDuplicateRegisterIsNoOp(t *testing.T) {
	h, _ := newTestHub(t)
	r := NewRegistry()

	c := NewClient(nil, h, "test", "")
	assert.True(t, r.Register("bob", c))
	assert.False(t, r.Register("bob", c))
	assert.Len(t, r.ConnectionsFor("bob"), 1)

	// A single deregister fully removes the doubly-registered connection.
	_, last, found := r.Deregister(c.ID())
	assert.True(t, last)
	assert.True(t, found)
	assert.False(t, r.IsOnline("bob"))
}

func TestRegistryDeregisterUnknownConnection(t *testing.T) {
	r := NewRegistry()

	userID, last, found := r.Deregister("no-such-conn")
	assert.Empty(t, userID)
	assert.False(t, last)
	assert.False(t, found)
}

func TestRegistryOnlineCount(t *testing.T) {
	h, _ := newTestHub(t)
	r := NewRegistry()

	bob := NewClient(nil, h, "test", "")
	bob2 := NewClient(nil, h, "test", "")
	carol := NewClient(nil, h, "test", "")

	r.Register("bob", bob)
	r.Register("bob", bob2)
	r.Register("carol", carol)
	assert.Equal(t, 2, r.OnlineCount())

	r.Deregister(bob.ID())
	assert.Equal(t, 2, r.OnlineCount())
	r.Deregister(carol.ID())
	assert.Equal(t, 1, r.OnlineCount())
}

func TestRegistryConcurrentChurn(t *testing.T) {
	h, _ := newTestHub(t)
	r := NewRegistry()

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c := NewClient(nil, h, "test", "")
				r.Register("bob", c)
				r.Deregister(c.ID())
			}
		}()
	}
	wg.Wait()

	require.False(t, r.IsOnline("bob"))
	assert.Zero(t, r.OnlineCount())
}
