package note

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_SerializesPerKey(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocker()

	var (
		wg      sync.WaitGroup
		counter int
	)

	for range 100 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			unlock := locks.Lock("doc")
			counter++
			unlock()
		}()
	}

	wg.Wait()

	require.Equal(t, 100, counter)
	require.Equal(t, 0, locks.size())
}

func TestKeyedLocker_IndependentKeys(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocker()

	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")

	require.Equal(t, 2, locks.size())

	unlockA()
	unlockB()

	require.Equal(t, 0, locks.size())
}

func TestShareCache_NilIsDisabled(t *testing.T) {
	t.Parallel()

	var cache *ShareCache

	cache.put("code", "doc")
	cache.remove("code")

	_, ok := cache.get("code")
	require.False(t, ok)
	require.Equal(t, 0, cache.Len())
	require.Nil(t, NewShareCache(0, 0))
}
