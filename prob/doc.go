// Package prob implements the probability primitives of the variational
// objective together with their analytic gradients.
//
// All functions operate row-wise on gonum matrices: each row is one batch
// element and per-element results are summed over columns, returning one
// scalar per row. Gradient functions take an upstream scale per row (the
// derivative of the final loss with respect to that row's scalar) and return
// matrices shaped like their inputs.
package prob
