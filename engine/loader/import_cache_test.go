package loader

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrDecode_DecodesOnce(t *testing.T) {
	c := NewImportCache()
	calls := 0
	decode := func() (string, error) {
		calls++
		return "material", nil
	}

	for i := 0; i < 3; i++ {
		v, err := GetOrDecode(c, KindMaterial, 4, decode)
		require.NoError(t, err)
		assert.Equal(t, "material", v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.DecodeCount(KindMaterial, 4))
}

func TestGetOrDecode_KeepsValueStoredDuringDecode(t *testing.T) {
	c := NewImportCache()
	v, err := GetOrDecode(c, KindMesh, 2, func() (string, error) {
		require.NoError(t, c.Publish(KindMesh, 2, "first"))
		return "second", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.Equal(t, 1, c.DecodeCount(KindMesh, 2))

	stored, ok := Lookup[string](c, KindMesh, 2)
	require.True(t, ok)
	assert.Equal(t, "first", stored)

	_, err = GetOrDecode(c, KindMesh, 3, func() (int, error) {
		require.NoError(t, c.Publish(KindMesh, 3, "other"))
		return 3, nil
	})
	assert.Error(t, err)
}

func TestGetOrDecode_KeyedByKindAndIndex(t *testing.T) {
	c := NewImportCache()
	_, err := GetOrDecode(c, KindTexture, 0, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	_, err = GetOrDecode(c, KindTexture, 1, func() (int, error) { return 2, nil })
	require.NoError(t, err)
	_, err = GetOrDecode(c, KindMaterial, 0, func() (int, error) { return 3, nil })
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	v, ok := Lookup[int](c, KindTexture, 1)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestGetOrDecode_ErrorLeavesSlotEmpty(t *testing.T) {
	c := NewImportCache()
	boom := errors.New("boom")
	_, err := GetOrDecode(c, KindMesh, 0, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.DecodeCount(KindMesh, 0))

	v, err := GetOrDecode(c, KindMesh, 0, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGetOrDecode_TypeMismatch(t *testing.T) {
	c := NewImportCache()
	require.NoError(t, c.Publish(KindNode, 0, "not a slice"))
	_, err := GetOrDecode(c, KindNode, 0, func() (int, error) { return 1, nil })
	assert.Error(t, err)
}

func TestPublish_WritesOnce(t *testing.T) {
	c := NewImportCache()
	require.NoError(t, c.Publish(KindBuffer, 0, []byte{1}))
	err := c.Publish(KindBuffer, 0, []byte{2})
	assert.ErrorIs(t, err, errAlreadyPublished)

	v, ok := Lookup[[]byte](c, KindBuffer, 0)
	require.True(t, ok)
	assert.Equal(t, []byte{1}, v)
}

func TestLookup_Missing(t *testing.T) {
	c := NewImportCache()
	v, ok := Lookup[*struct{}](c, KindSkin, 3)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestRelease(t *testing.T) {
	c := NewImportCache()
	require.NoError(t, c.Publish(KindImage, 0, "img"))
	c.Release()

	assert.True(t, c.Released())
	assert.Equal(t, 0, c.Len())
	_, ok := Lookup[string](c, KindImage, 0)
	assert.False(t, ok)
	assert.ErrorIs(t, c.Publish(KindImage, 1, "img"), errCacheReleased)
	_, err := GetOrDecode(c, KindImage, 2, func() (string, error) { return "x", nil })
	assert.ErrorIs(t, err, errCacheReleased)
}

func TestResourceKindString(t *testing.T) {
	assert.Equal(t, "bone weights", KindBoneWeights.String())
	assert.Equal(t, "animation", KindAnimation.String())
	assert.Equal(t, "unknown", ResourceKind(99).String())
}
