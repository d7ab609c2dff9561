package audio

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
}

func (l *countingLoader) Load(path string) (*Clip, error) {
	l.mu.Lock()
	l.calls[path]++
	l.mu.Unlock()

	if path == "bad.wav" {
		return nil, errors.New("decode failed")
	}
	return NewClip([]float64{0.1, 0.2}, 8000)
}

func TestCachedLoader_MemoizesClipsAndErrors(t *testing.T) {
	inner := &countingLoader{calls: map[string]int{}}
	loader := NewCachedLoader(inner)

	first, err := loader.Load("a.wav")
	require.NoError(t, err)
	second, err := loader.Load("a.wav")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = loader.Load("bad.wav")
	assert.Error(t, err)
	_, err = loader.Load("bad.wav")
	assert.Error(t, err)

	assert.Equal(t, 1, inner.calls["a.wav"])
	assert.Equal(t, 1, inner.calls["bad.wav"])
	assert.Equal(t, 2, loader.Len())

	loader.Flush()
	assert.Equal(t, 0, loader.Len())
	_, err = loader.Load("a.wav")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls["a.wav"])
}

func TestNewCachedLoader_DefaultsToFiles(t *testing.T) {
	loader := NewCachedLoader(nil)
	_, err := loader.Load("does-not-exist.wav")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
