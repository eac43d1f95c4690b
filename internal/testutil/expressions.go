package testutil

import (
	"sync"

	"github.com/normanking/lumiavatar/internal/avatar3d"
)

// ExpressionCall is one recorded SetValue.
type ExpressionCall struct {
	Name   avatar3d.ExpressionName
	Weight float32
}

// ExpressionRecorder is an avatar3d.ExpressionManager that keeps the current
// weights and every write made to it.
type ExpressionRecorder struct {
	*avatar3d.Weights

	mu    sync.Mutex
	calls []ExpressionCall
}

// NewExpressionRecorder returns an empty recorder.
func NewExpressionRecorder() *ExpressionRecorder {
	return &ExpressionRecorder{Weights: avatar3d.NewWeights()}
}

// SetValue records the write and stores the weight.
func (r *ExpressionRecorder) SetValue(name avatar3d.ExpressionName, weight float32) {
	r.mu.Lock()
	r.calls = append(r.calls, ExpressionCall{Name: name, Weight: weight})
	r.mu.Unlock()
	r.Weights.SetValue(name, weight)
}

// Calls returns a copy of every recorded write.
func (r *ExpressionRecorder) Calls() []ExpressionCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ExpressionCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// ResetCalls forgets recorded writes but keeps the weights.
func (r *ExpressionRecorder) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
