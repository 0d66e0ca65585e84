// Package model provides fitted-state management, model interfaces and the
// checkpoint format shared by the models of this module.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Transformer is the interface for feature transformations fitted on data.
type Transformer interface {
	// Fit learns the transformation parameters.
	Fit(X mat.Matrix) error

	// Transform applies the learned transformation.
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform fits and transforms in one call.
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer is a Transformer whose transformation can be undone.
type InverseTransformer interface {
	Transformer

	// InverseTransform maps transformed data back to the original space.
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their hyperparameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// Persistable is the interface for models that checkpoint to a directory.
type Persistable interface {
	// Save writes the model to dir, creating it if necessary.
	Save(dir string) error

	// Load restores the model from dir.
	Load(dir string) error
}
