// internal/audio/cache.go
package audio

import (
	"github.com/patrickmn/go-cache"
)

// Loader produces a Clip for a path
type Loader interface {
	Load(path string) (*Clip, error)
}

// FileLoader decodes WAV files from disk on every call
type FileLoader struct{}

// Load implements Loader
func (FileLoader) Load(path string) (*Clip, error) {
	return Load(path)
}

type cachedClip struct {
	clip *Clip
	err  error
}

// CachedLoader memoizes decoded clips, and decode failures, by path.
// Clips are immutable so cached values are shared between callers.
type CachedLoader struct {
	next  Loader
	clips *cache.Cache
}

// NewCachedLoader wraps next with a non-expiring cache. The cache runs no
// janitor goroutine, so dropping the loader releases everything.
func NewCachedLoader(next Loader) *CachedLoader {
	if next == nil {
		next = FileLoader{}
	}
	return &CachedLoader{
		next:  next,
		clips: cache.New(cache.NoExpiration, 0),
	}
}

// Load returns the cached clip for path, decoding it on first use
func (l *CachedLoader) Load(path string) (*Clip, error) {
	if v, ok := l.clips.Get(path); ok {
		entry := v.(cachedClip)
		return entry.clip, entry.err
	}

	clip, err := l.next.Load(path)
	l.clips.Set(path, cachedClip{clip: clip, err: err}, cache.NoExpiration)
	return clip, err
}

// Len returns the number of cached paths
func (l *CachedLoader) Len() int {
	return l.clips.ItemCount()
}

// Flush drops every cached clip
func (l *CachedLoader) Flush() {
	l.clips.Flush()
}
