package nn

import (
	"github.com/YuminosukeSato/ssvae/pkg/errors"
)

// Module is a sub-network registered under a scope.
type Module interface {
	// Scope returns the registry key the module was built under.
	Scope() string
	// Params returns the trainable parameters.
	Params() []*Param
	// State returns the non-trainable tensors (running statistics).
	State() []*Param
}

// Registry owns every sub-network of a model, keyed by scope name. A scope
// is created once; later requests with reuse=true return the same module so
// that several forward calls share weights.
type Registry struct {
	modules map[string]Module
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Build returns the module registered under scope. With reuse=false the
// scope must be new and build is invoked to create it; with reuse=true the
// scope must already exist and build is not called.
func (r *Registry) Build(scope string, reuse bool, build func() (Module, error)) (Module, error) {
	m, exists := r.modules[scope]
	if reuse {
		if !exists {
			return nil, errors.NewScopeError(scope, reuse, "scope has not been built; build it with reuse=false first")
		}
		return m, nil
	}
	if exists {
		return nil, errors.NewScopeError(scope, reuse, "scope already exists; pass reuse=true to share it")
	}

	m, err := build()
	if err != nil {
		return nil, errors.Wrapf(err, "building scope %q", scope)
	}
	r.modules[scope] = m
	r.order = append(r.order, scope)
	return m, nil
}

// Get returns the module registered under scope.
func (r *Registry) Get(scope string) (Module, error) {
	m, ok := r.modules[scope]
	if !ok {
		return nil, errors.NewScopeError(scope, true, "scope has not been built")
	}
	return m, nil
}

// Scopes lists scope names in creation order.
func (r *Registry) Scopes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Params returns the trainable parameters of the given scopes, or of every
// scope when none is named. Unknown scopes are skipped.
func (r *Registry) Params(scopes ...string) []*Param {
	if len(scopes) == 0 {
		scopes = r.order
	}
	var out []*Param
	for _, s := range scopes {
		if m, ok := r.modules[s]; ok {
			out = append(out, m.Params()...)
		}
	}
	return out
}

// Variables returns every trainable parameter followed by every state
// tensor, in creation order. This is the checkpoint set.
func (r *Registry) Variables() []*Param {
	var out []*Param
	for _, s := range r.order {
		m := r.modules[s]
		out = append(out, m.Params()...)
		out = append(out, m.State()...)
	}
	return out
}

// ZeroGrad clears gradients of every trainable parameter.
func (r *Registry) ZeroGrad() {
	for _, p := range r.Params() {
		p.ZeroGrad()
	}
}
