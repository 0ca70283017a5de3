package userapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasherRequiresSalt(t *testing.T) {
	_, err := NewHasher("")
	assert.Error(t, err)

	h, err := NewHasher("salt")
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestHashIsDeterministic(t *testing.T) {
	h, err := NewHasher("salt")
	require.NoError(t, err)

	a := h.Hash("user-1", "hunter2")
	b := h.Hash("user-1", "hunter2")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashVariesWithEveryInput(t *testing.T) {
	h1, err := NewHasher("salt-a")
	require.NoError(t, err)
	h2, err := NewHasher("salt-b")
	require.NoError(t, err)

	base := h1.Hash("user-1", "hunter2")

	assert.NotEqual(t, base, h1.Hash("user-2", "hunter2"), "user id must change the digest")
	assert.NotEqual(t, base, h1.Hash("user-1", "hunter3"), "password must change the digest")
	assert.NotEqual(t, base, h2.Hash("user-1", "hunter2"), "salt must change the digest")
}

func TestHashEmptyPasswordIsProbeMode(t *testing.T) {
	h, err := NewHasher("salt")
	require.NoError(t, err)

	probe := h.Hash("user-1", "")
	assert.NotEmpty(t, probe)
	assert.NotEqual(t, probe, h.Hash("user-1", "hunter2"))
}
