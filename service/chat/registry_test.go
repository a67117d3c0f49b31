package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewMemoryRegistry()

	c := &Client{ConnID: "c1"}
	r.Register("7", c)

	got, ok := r.Lookup("7")
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = r.Lookup("8")
	assert.False(t, ok)
}

func TestRegistryLastConnectWins(t *testing.T) {
	r := NewMemoryRegistry()

	old := &Client{ConnID: "c1"}
	fresh := &Client{ConnID: "c2"}
	r.Register("7", old)
	r.Register("7", fresh)

	got, ok := r.Lookup("7")
	require.True(t, ok)
	assert.Same(t, fresh, got)
	assert.Len(t, r.Snapshot(), 1)

	// The replaced connection's eventual disconnect must not evict the
	// newer one.
	r.Unregister("c1")
	got, ok = r.Lookup("7")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestRegistryUnregisterByConn(t *testing.T) {
	r := NewMemoryRegistry()

	r.Register("7", &Client{ConnID: "c1"})
	r.Register("9", &Client{ConnID: "c2"})

	r.Unregister("c1")
	_, ok := r.Lookup("7")
	assert.False(t, ok)
	_, ok = r.Lookup("9")
	assert.True(t, ok)

	// unknown conn id is a no-op
	r.Unregister("nope")
	assert.Equal(t, []string{"9"}, r.Snapshot())
}

func TestRegistryUnregisterSweepsAllEntries(t *testing.T) {
	r := NewMemoryRegistry()

	// the same handle under two users must not leave a ghost behind
	shared := &Client{ConnID: "c1"}
	r.Register("7", shared)
	r.Register("8", shared)
	r.Register("9", &Client{ConnID: "c2"})

	r.Unregister("c1")
	assert.Equal(t, []string{"9"}, r.Snapshot())
}

func TestRegistrySnapshotSorted(t *testing.T) {
	r := NewMemoryRegistry()

	r.Register("30", &Client{ConnID: "a"})
	r.Register("12", &Client{ConnID: "b"})
	r.Register("25", &Client{ConnID: "c"})

	assert.Equal(t, []string{"12", "25", "30"}, r.Snapshot())
	assert.Len(t, r.All(), 3)
}

func TestRegistryIgnoresEmpty(t *testing.T) {
	r := NewMemoryRegistry()

	r.Register("", &Client{ConnID: "c1"})
	r.Register("7", nil)

	assert.Empty(t, r.Snapshot())
}
