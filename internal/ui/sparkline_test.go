package ui

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSparkline_RenderScalesToPeak(t *testing.T) {
	// Given: three samples
	s := NewSparkline(10)
	s.Add(0)
	s.Add(4)
	s.Add(8)

	// When: rendering wider than the sample count
	out := s.Render(5)

	// Then: bars are scaled and the rest is padded
	assert.Equal(t, "▁▄█  ", out)
	assert.Equal(t, 3, s.Count())
}

func TestSparkline_AllZero(t *testing.T) {
	s := NewSparkline(4)
	s.Add(0)
	s.Add(0)

	assert.Equal(t, "▁▁  ", s.Render(4))
}

func TestSparkline_RingEvictsOldest(t *testing.T) {
	// Given: a full ring
	s := NewSparkline(3)
	for _, v := range []float64{8, 1, 1, 1} {
		s.Add(v)
	}

	// Then: the evicted peak no longer scales the bars
	assert.Equal(t, "███", s.Render(3))
}

func TestSparkline_RenderNarrowKeepsNewest(t *testing.T) {
	s := NewSparkline(10)
	for _, v := range []float64{7, 0, 7} {
		s.Add(v)
	}

	assert.Equal(t, "▁█", s.Render(2))
}

func TestSparkline_DefaultWidthAndClear(t *testing.T) {
	// Given: a default-width sparkline with data
	s := NewSparkline(0)
	s.Add(3)

	// When: clearing it
	s.Clear()

	// Then: it renders blank at its own width
	out := s.Render(0)
	assert.Equal(t, 60, utf8.RuneCountInString(out))
	assert.Equal(t, 0, s.Count())
}
