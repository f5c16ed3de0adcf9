package keylock_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"talentrag/apps/backend/internal/keylock"
)

func TestMap_Lock(t *testing.T) {
	k := keylock.New()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("R1")
			mu.Lock()
			inside++
			maxInside = max(maxInside, inside)
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Equal(t, 0, k.Len())

	// distinct keys do not block each other
	a := k.Lock("a")
	b := k.Lock("b")
	assert.Equal(t, 2, k.Len())
	a()
	b()
}
