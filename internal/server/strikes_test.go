package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrikeCache(t *testing.T) {
	t.Run("counts per host", func(t *testing.T) {
		sc := NewStrikeCache(4)

		assert.Equal(t, 1, sc.Add("10.0.0.1"))
		assert.Equal(t, 2, sc.Add("10.0.0.1"))
		assert.Equal(t, 1, sc.Add("10.0.0.2"))
		assert.Equal(t, 2, sc.Count("10.0.0.1"))
		assert.Equal(t, 0, sc.Count("10.0.0.3"))
		assert.Equal(t, 2, sc.Len())
	})

	t.Run("forget", func(t *testing.T) {
		sc := NewStrikeCache(4)
		sc.Add("host")
		sc.Forget("host")

		assert.Equal(t, 0, sc.Count("host"))
		assert.Equal(t, 0, sc.Len())
	})

	t.Run("evicts least recent", func(t *testing.T) {
		sc := NewStrikeCache(2)
		sc.Add("a")
		sc.Add("b")
		sc.Add("a")
		sc.Add("c")

		assert.Equal(t, 2, sc.Count("a"))
		assert.Equal(t, 0, sc.Count("b"))
		assert.Equal(t, 1, sc.Count("c"))
	})

	t.Run("concurrent adds", func(t *testing.T) {
		sc := NewStrikeCache(16)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					sc.Add(fmt.Sprintf("host-%d", i%2))
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 200, sc.Count("host-0"))
		assert.Equal(t, 200, sc.Count("host-1"))
	})

	t.Run("invalid size panics", func(t *testing.T) {
		assert.Panics(t, func() { NewStrikeCache(0) })
	})
}
