package viewmodels

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateObserve(t *testing.T) {
	s := NewState("a")
	var got []string
	unsubscribe := s.Observe(func(v string) { got = append(got, v) })

	s.Set("b")
	s.Set("c")
	unsubscribe()
	unsubscribe()
	s.Set("d")

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, "d", s.Get())
}

func TestStateConcurrentSet(t *testing.T) {
	s := NewState(0)
	var mu sync.Mutex
	seen := 0
	defer s.Observe(func(int) {
		mu.Lock()
		seen++
		mu.Unlock()
	})()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Set(v)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 51, seen)
	assert.NotZero(t, s.Get())
}
