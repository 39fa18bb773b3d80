package telemetry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircularBuffer_KeepsOrderUntilFull(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	buf.Add("a")
	buf.Add("b")

	assert.Equal(t, []string{"a", "b"}, buf.Items())
	assert.Equal(t, 2, buf.Size())
}

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	// Given: a buffer of three
	buf := NewCircularBuffer[string](3)

	// When: five items are added
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		buf.Add(s)
	}

	// Then: the newest three remain, oldest first
	assert.Equal(t, []string{"c", "d", "e"}, buf.Items())
	assert.Equal(t, 3, buf.Size())
}

func TestCircularBuffer_Empty(t *testing.T) {
	buf := NewCircularBuffer[int](0)

	assert.Empty(t, buf.Items())
	assert.NotNil(t, buf.Items())
}

func TestCircularBuffer_Clear(t *testing.T) {
	buf := NewCircularBuffer[int](2)
	buf.Add(1)
	buf.Add(2)

	buf.Clear()
	buf.Add(3)

	assert.Equal(t, []int{3}, buf.Items())
}

func TestCircularBuffer_ConcurrentAdd(t *testing.T) {
	buf := NewCircularBuffer[int](50)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 20 {
				buf.Add(i*100 + j)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, buf.Size())
}
