package push

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionLimiter_AcquireRelease(t *testing.T) {
	l := NewConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire())
	assert.Equal(t, int64(2), l.Current())

	l.Release()
	assert.True(t, l.Acquire())
	assert.Equal(t, int64(2), l.Max())
}

func TestConnectionLimiter_Concurrent(t *testing.T) {
	l := NewConnectionLimiter(50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire() {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, acquired)
	assert.Equal(t, int64(50), l.Current())
}
