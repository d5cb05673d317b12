package voice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/rpgai/internal/providers/wyoming"
)

func TestKey(t *testing.T) {
	assert.Equal(t, Key("hello", "default"), Key("hello", ""))
	assert.NotEqual(t, Key("hello", "voiceA"), Key("hello", "voiceB"))
	assert.NotEqual(t, Key("hello", "voiceA"), Key("hello!", "voiceA"))
	assert.Len(t, Key("x", "y"), 32)
}

func TestCache_StoreLookupClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	c, err := NewCache(dir)
	require.NoError(t, err)

	key := Key("hello", "en_US")
	_, ok := c.Lookup(key)
	assert.False(t, ok)

	art, err := c.Store(key, []byte{1, 2, 3, 4}, wyoming.AudioFormat{Rate: 22050})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, key+".wav"), art.Path)
	assert.Equal(t, 22050, art.SampleRate)
	assert.Equal(t, 2, art.SampleWidth)
	assert.Equal(t, 1, art.Channels)

	hit, ok := c.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, art, hit)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))
	n, err := c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok = c.Lookup(key)
	assert.False(t, ok)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestCache_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir)
	require.NoError(t, err)

	_, err = c.Store(Key("a", ""), []byte{0, 0}, wyoming.AudioFormat{})
	require.NoError(t, err)

	tmp, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, tmp)
}
