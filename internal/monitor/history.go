package monitor

import "sync"

// History is a fixed-capacity ring of metric samples. Once full, each
// new sample evicts the oldest one.
type History struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{samples: make([]float64, capacity)}
}

func (h *History) Add(sample float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.next] = sample
	h.next = (h.next + 1) % len(h.samples)
	if h.next == 0 {
		h.full = true
	}
}

// Samples returns the recorded values oldest first.
func (h *History) Samples() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]float64, h.next)
		copy(out, h.samples[:h.next])
		return out
	}
	out := make([]float64, 0, len(h.samples))
	out = append(out, h.samples[h.next:]...)
	out = append(out, h.samples[:h.next]...)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.full {
		return len(h.samples)
	}
	return h.next
}
