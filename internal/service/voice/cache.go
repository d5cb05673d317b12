package voice

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/providers/wyoming"
)

const defaultVoiceKey = "default"

// Cache stores one WAV file per (voice, text) under its md5 key.
type Cache struct {
	dir string
}

func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) Dir() string {
	return c.dir
}

// Key is md5("<voice>:<text>") with an empty voice spelled "default".
func Key(text, voice string) string {
	if voice == "" {
		voice = defaultVoiceKey
	}
	sum := md5.Sum([]byte(voice + ":" + text))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) Path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}

// Lookup returns the artifact for key when a readable file exists.
func (c *Cache) Lookup(key string) (*core.AudioArtifact, bool) {
	path := c.Path(key)
	f, err := ReadWAVFormat(path)
	if err != nil {
		return nil, false
	}
	return artifact(key, path, f), true
}

// Store writes the samples under key. Concurrent writers of the same key
// produce the same bytes, so the last rename wins.
func (c *Cache) Store(key string, pcm []byte, f wyoming.AudioFormat) (*core.AudioArtifact, error) {
	f = f.WithDefaults()

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp audio: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(EncodeWAV(pcm, f)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("close audio: %w", err)
	}

	path := c.Path(key)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("publish audio: %w", err)
	}
	return artifact(key, path, f), nil
}

// Clear removes every cached artifact and reports how many were deleted.
func (c *Cache) Clear() (int, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.wav"))
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func artifact(key, path string, f wyoming.AudioFormat) *core.AudioArtifact {
	return &core.AudioArtifact{
		CacheKey:    key,
		Path:        path,
		SampleRate:  f.Rate,
		SampleWidth: f.Width,
		Channels:    f.Channels,
	}
}
