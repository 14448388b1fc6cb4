package cache

import (
	"strconv"
	"time"
	"unsafe"

	"github.com/coocood/freecache"
)

// SettingsCache keeps per-server settings in process memory for a short TTL.
// Instances do not share it, so a change made elsewhere is visible after at most one TTL.
type SettingsCache interface {
	BufferDays(server string) (int, bool)
	SetBufferDays(server string, days int)
	Invalidate(server string)
}

type freeSettingsCache struct {
	cache *freecache.Cache
	ttl   int
}

// NewSettingsCache allocates sizeMB of cache. Zero size disables caching.
func NewSettingsCache(sizeMB int, ttl time.Duration) SettingsCache {
	if sizeMB <= 0 {
		return noopSettingsCache{}
	}
	secs := int(ttl.Seconds())
	if secs < 1 {
		secs = 1
	}
	return &freeSettingsCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   secs,
	}
}

func bufferKey(server string) string {
	return "buffer:" + server
}

// keyBytes avoids a copy; freecache copies keys internally and never mutates them.
func keyBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func (c *freeSettingsCache) BufferDays(server string) (int, bool) {
	val, err := c.cache.Get(keyBytes(bufferKey(server)))
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(string(val))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *freeSettingsCache) SetBufferDays(server string, days int) {
	_ = c.cache.Set(keyBytes(bufferKey(server)), []byte(strconv.Itoa(days)), c.ttl)
}

func (c *freeSettingsCache) Invalidate(server string) {
	c.cache.Del(keyBytes(bufferKey(server)))
}

type noopSettingsCache struct{}

func (noopSettingsCache) BufferDays(string) (int, bool) { return 0, false }
func (noopSettingsCache) SetBufferDays(string, int)     {}
func (noopSettingsCache) Invalidate(string)             {}
