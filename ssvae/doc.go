/*
Package ssvae implements a semi-supervised variational autoencoder for
regression (an M2-style model with continuous targets).

Four sub-networks are held in a scope registry:

	encoder    q(z|x)   latent posterior
	regressor  q(y|x)   target posterior
	decoder    p(x|z,y) Bernoulli reconstruction in (0, 1)
	preventor  ŷ = Wz+b adversarial linear probe on the latent sample

Every training step pulls one labeled and one unlabeled batch and applies
three Adam updates in order:

 1. labeled:   mean[CE(x̂,x) + KL(q(z|x)) - α·log N(y; q(y|x))]
 2. preventor: β·mean((y-ŷ)²), minimised by the preventor while the encoder
    receives the negated gradient
 3. unlabeled: mean[CE(x̂,x) + KL(q(z|x)) + KL(q(y|x))], decoding a sampled ỹ

Inputs are expected in [0, 1]; scale them with preprocessing.MinMaxScaler.

Example:

	reg, err := ssvae.New(ssvae.Config{
		InputDim:  4,
		VAEDims:   []int{8},
		RegDims:   []int{8},
		LatentDim: 2,
	}, ssvae.WithSeed(42))
	if err != nil {
		log.Fatal(err)
	}
	status, err := reg.Train(ctx, labeled, unlabeled, 10, nil)
	mean, logStd, err := reg.Predict(x)
*/
package ssvae
