package avatar3d

import "sync"

// Weights is a concurrency-safe expression weight table. It satisfies
// ExpressionManager and backs the VRM expression manager.
type Weights struct {
	mu     sync.RWMutex
	values map[ExpressionName]float32
}

// NewWeights returns an empty weight table.
func NewWeights() *Weights {
	return &Weights{values: make(map[ExpressionName]float32)}
}

// SetValue stores weight for name, clamped to [0, 1].
func (w *Weights) SetValue(name ExpressionName, weight float32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.values[name] = clamp(weight, 0, 1)
}

// Value returns the stored weight, zero when never set.
func (w *Weights) Value(name ExpressionName) float32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.values[name]
}

// Snapshot copies the current table.
func (w *Weights) Snapshot() map[ExpressionName]float32 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[ExpressionName]float32, len(w.values))
	for k, v := range w.values {
		out[k] = v
	}
	return out
}

// Reset zeroes every weight.
func (w *Weights) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k := range w.values {
		w.values[k] = 0
	}
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
