package nn

// GradientTransform rewrites accumulated gradients before an optimiser step.
type GradientTransform func(params []*Param)

// NegateGroup flips the sign of every gradient belonging to scope. Combined
// with a minimising optimiser this performs gradient ascent on that scope,
// as used for adversarial objectives.
func NegateGroup(scope string) GradientTransform {
	return func(params []*Param) {
		for _, p := range params {
			if p.InScope(scope) {
				p.Grad.Scale(-1, p.Grad)
			}
		}
	}
}

// ApplyGradients runs the transforms in order and then steps the optimiser.
func ApplyGradients(opt *Adam, transforms ...GradientTransform) error {
	for _, tf := range transforms {
		tf(opt.Params())
	}
	return opt.Step()
}
