package avatar3d

// ExpressionManager is the expression capability of a loaded model.
type ExpressionManager interface {
	SetValue(name ExpressionName, weight float32)
}

// Poser advances a model's animation and pose state.
type Poser interface {
	Update(dt float32)
}

// Avatar adapts a loaded model to the operations the lip-sync scheduler and
// emotion applicator need. A nil *Avatar, or one without an expression
// manager, silently ignores expression writes.
type Avatar struct {
	expressions ExpressionManager
	poser       Poser
}

// NewAvatar wraps a model's expression manager and pose updater. Either may be nil.
func NewAvatar(expressions ExpressionManager, poser Poser) *Avatar {
	return &Avatar{
		expressions: expressions,
		poser:       poser,
	}
}

// HasExpressions reports whether expression writes reach a model.
func (a *Avatar) HasExpressions() bool {
	return a != nil && a.expressions != nil
}

// SetExpression sets a named expression weight.
func (a *Avatar) SetExpression(name ExpressionName, weight float32) {
	if !a.HasExpressions() {
		return
	}
	a.expressions.SetValue(name, weight)
}

// ClearLips zeroes the five lip-shape presets.
func (a *Avatar) ClearLips() {
	if !a.HasExpressions() {
		return
	}
	for _, name := range LipExpressions {
		a.expressions.SetValue(name, 0)
	}
}

// Update advances the model pose by dt seconds.
func (a *Avatar) Update(dt float32) {
	if a == nil || a.poser == nil {
		return
	}
	a.poser.Update(dt)
}
