package ui

import "strings"

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps the last width samples in a ring and renders them as bars
// scaled to the largest sample in view.
type Sparkline struct {
	samples []float64
	width   int
	head    int
	count   int
}

// NewSparkline creates a sparkline holding width samples (default 60).
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{samples: make([]float64, width), width: width}
}

// Add appends a sample, evicting the oldest when full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width
	s.count++
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int { return s.count }

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head, s.count = 0, 0
}

// values returns the held samples, oldest first.
func (s *Sparkline) values() []float64 {
	n := min(s.count, s.width)
	out := make([]float64, 0, n)
	start := 0
	if s.count >= s.width {
		start = s.head
	}
	for i := range n {
		out = append(out, s.samples[(start+i)%s.width])
	}
	return out
}

// Render draws the most recent width samples. Missing samples are padded
// with spaces on the right. width <= 0 uses the sparkline's own width.
func (s *Sparkline) Render(width int) string {
	if width <= 0 {
		width = s.width
	}
	vals := s.values()
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}

	peak := 0.0
	for _, v := range vals {
		peak = max(peak, v)
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	for _, v := range vals {
		idx := 0
		if peak > 0 {
			idx = int(v / peak * float64(len(SparklineChars)-1))
			idx = max(0, min(idx, len(SparklineChars)-1))
		}
		sb.WriteRune(SparklineChars[idx])
	}
	sb.WriteString(strings.Repeat(" ", width-len(vals)))
	return sb.String()
}
