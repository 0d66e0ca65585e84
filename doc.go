// Package ssvae is the root of a semi-supervised variational autoencoder
// regressor written on top of gonum.
//
// The model learns a regressor q(y|x) from a small labeled set together
// with a large unlabeled set. Three sub-networks share the input: an
// encoder q(z|x), a regressor q(y|x) and a decoder p(x|z,y). A linear
// preventor tries to recover y from z, and its gradient is reversed into
// the encoder so that the latent code stays free of target information.
//
// # Installation
//
//	go get github.com/YuminosukeSato/ssvae
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/ssvae/data"
//	    "github.com/YuminosukeSato/ssvae/ssvae"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    labeled, _ := data.NewMatrixSource(xl, yl, 32)
//	    unlabeled, _ := data.NewMatrixSource(xu, nil, 32)
//
//	    model, err := ssvae.New(ssvae.Config{
//	        InputDim:  xl.RawMatrix().Cols,
//	        VAEDims:   []int{32},
//	        RegDims:   []int{32},
//	        LatentDim: 2,
//	    }, ssvae.WithSeed(42))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    if _, err := model.Train(context.Background(), labeled, unlabeled, 50, nil); err != nil {
//	        log.Fatal(err)
//	    }
//	    mean, logStd, err := model.Predict(xTest)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(mat.Formatted(mean), mat.Formatted(logStd))
//	}
//
// # Packages
//
//   - ssvae: the regressor (Train, Predict, Save, Load, PlotInfo)
//   - nn: dense layers, batch normalisation, Adam, scope registry
//   - prob: Gaussian sampling, KL divergence and Bernoulli cross-entropy
//   - data: batch sources for labeled and unlabeled matrices
//   - diagnostics: per-step loss record and the nine-panel training figure
//   - metrics: evaluation metrics (MSE, RMSE, MAE, R², Gaussian NLL)
//   - preprocessing: MinMax and Standard scalers
//   - core/model: fitted state, interfaces and the checkpoint format
//   - core/parallel: row-range fan-out for layer kernels
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// See examples/semi_supervised for a runnable end-to-end program.
package ssvae
