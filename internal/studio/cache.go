package studio

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// SynthesisCache is a thread-safe in-memory cache of synthesized audio.
// The key covers everything that shapes the provider's output (voice,
// reference recording, language, pitch and text), so switching any of them
// misses until it is switched back. Nothing is written to disk.
//
// When the cache is full the oldest entry is evicted.
type SynthesisCache struct {
	mu      sync.RWMutex
	entries map[string]domain.EncodedAudio
	order   []string // insertion order, oldest first
	max     int
	log     *logger.Logger
	hits    int64
	misses  int64
}

// NewSynthesisCache creates a cache holding at most maxEntries payloads.
// maxEntries <= 0 disables caching.
func NewSynthesisCache(maxEntries int, log *logger.Logger) *SynthesisCache {
	return &SynthesisCache{
		entries: make(map[string]domain.EncodedAudio),
		max:     maxEntries,
		log:     log,
	}
}

// Get returns cached audio for req and true, or the zero value and false.
func (c *SynthesisCache) Get(req domain.SynthesisRequest) (domain.EncodedAudio, bool) {
	if c.max <= 0 {
		return domain.EncodedAudio{}, false
	}
	key := cacheKey(req)

	c.mu.Lock()
	defer c.mu.Unlock()
	audio, ok := c.entries[key]
	if ok {
		c.hits++
		c.log.Debug("cache hit: %s (%d bytes)", truncateForLog(req.Text, 40), len(audio.Data))
	} else {
		c.misses++
	}
	return audio, ok
}

// Put stores audio for req.
func (c *SynthesisCache) Put(req domain.SynthesisRequest, audio domain.EncodedAudio) {
	if c.max <= 0 || audio.Empty() {
		return
	}
	key := cacheKey(req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = audio
	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.log.Debug("cache store: %s (%d bytes, %d entries)", truncateForLog(req.Text, 40), len(audio.Data), len(c.entries))
}

// Len returns the number of cached entries.
func (c *SynthesisCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *SynthesisCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Clear empties the cache and resets its counters.
func (c *SynthesisCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]domain.EncodedAudio)
	c.order = nil
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
	c.log.Debug("cache cleared")
}

// cacheKey is sha256 over voice, reference, language, pitch and text.
func cacheKey(req domain.SynthesisRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Voice.Preset))
	h.Write([]byte{0})
	if req.Voice.Reference != nil {
		ref := sha256.Sum256(req.Voice.Reference.Data)
		h.Write(ref[:])
	}
	h.Write([]byte{0})
	h.Write([]byte(req.Language))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(req.Pitch, 'f', 2, 64)))
	h.Write([]byte{0})
	h.Write([]byte(req.Text))
	return hex.EncodeToString(h.Sum(nil))
}

func truncateForLog(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
