// Package log defines standard attribute keys for training and inference logs.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples",
// "metrics.loss") so that JSON log lines can be filtered by prefix.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model, e.g. "SSVAERegressor".
	ModelNameKey = "model.name"

	// ScopeKey names a sub-network parameter scope: "encoder", "regressor",
	// "decoder" or "preventor".
	ScopeKey = "model.scope"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of rows in a batch or dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the input dimension.
	FeaturesKey = "data.features"

	// TargetsKey indicates the prediction dimension.
	TargetsKey = "data.targets"

	// ShapeKey records a "rows x cols" layer or tensor shape.
	ShapeKey = "data.shape"

	// BatchSizeKey indicates the size of processing batches.
	BatchSizeKey = "data.batch_size"
)

// Training progress and metrics
const (
	DurationMsKey = "perf.duration_ms"

	// EpochKey records the model's running epoch counter.
	EpochKey = "training.epoch"

	// StepKey records the minibatch step inside an epoch.
	StepKey = "training.step"

	// StatusKey records the terminal state of a training run.
	StatusKey = "training.status"

	LossKey           = "metrics.loss"
	KLDKey            = "metrics.kld"
	ReconstructionKey = "metrics.reconstruction"
	LogDensityKey     = "metrics.log_density"
	KLDTargetKey      = "metrics.kld_target"
	PreventLossKey    = "metrics.prevent_loss"
	MSEKey            = "metrics.mse"
)

// Hyperparameters and configuration
const (
	HyperParamsKey  = "model.hyperparams"
	LearningRateKey = "hyperparams.learning_rate"
	AlphaKey        = "hyperparams.alpha"
	RandomSeedKey   = "config.random_seed"
	PathKey         = "io.path"
)

// Error context
const (
	// ErrorKey carries the error value itself.
	ErrorKey = "error"

	// StacktraceKey contains stack trace information extracted from
	// cockroachdb/errors safe details.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationSave    = "save"
	OperationLoad    = "load"
	OperationPlot    = "plot"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"
)
