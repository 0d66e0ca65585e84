// Package nn provides the building blocks of the variational model: named
// parameters, a scope registry that hands out shared sub-networks, dense,
// batch-normalisation and activation layers with explicit backward closures,
// and an Adam optimiser with a gradient-transform step.
//
// There is no global graph. A forward call returns its output together with
// a Backward closure that captures everything the call needs to propagate an
// upstream gradient; calling it accumulates parameter gradients in place.
// Training mode is always an explicit argument.
package nn

import "gonum.org/v1/gonum/mat"

// Backward propagates the gradient of the loss with respect to a forward
// call's output back to its input, accumulating parameter gradients.
type Backward func(dy *mat.Dense) *mat.Dense
