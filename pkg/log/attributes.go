// Package log defines standard attribute keys for genomic prediction runs.
//
// Keys follow a hierarchical naming convention ("cv.protocol",
// "data.accessions") so that a run's JSON log can be filtered per pair
// or per component.

package log

// Model and Operation Context
const (
	// ModelKindKey identifies the estimator. Values: "gblup", "me_gblup".
	ModelKindKey = "model.kind"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "build_grm", "partition", "evaluate"
	OperationKey = "op"

	// ComponentKey identifies which package is logging.
	// Examples: "grm", "gblup", "cv", "evaluate"
	ComponentKey = "component"

	// RunIDKey is the uuid assigned to one evaluation run.
	RunIDKey = "run.id"
)

// Cross-validation context
const (
	// ProtocolKey is the CV protocol: "CV0", "CV00" or "CV1".
	ProtocolKey = "cv.protocol"

	// FocalEnvKey is the environment being predicted.
	FocalEnvKey = "cv.focal_env"

	// FoldKey is the fold index under CV1.
	FoldKey = "cv.fold"

	// FallbackKey is true when a partition or a solve fell back.
	FallbackKey = "cv.fallback"

	// SeedKey records the random seed for reproducibility.
	SeedKey = "cv.seed"
)

// Data shape
const (
	// AccessionsKey is the number of accessions (GRM rows, or a set size).
	AccessionsKey = "data.accessions"

	// MarkersKey is the number of marker columns before filtering.
	MarkersKey = "data.markers"

	// RetainedMarkersKey is the number of polymorphic markers used.
	RetainedMarkersKey = "data.markers_retained"

	// EnvironmentsKey is the number of distinct environments.
	EnvironmentsKey = "data.environments"

	// TrainObservationsKey is the number of training observations.
	TrainObservationsKey = "data.train_obs"

	// TestAccessionsKey is the number of accessions to predict.
	TestAccessionsKey = "data.test_accessions"

	// UngenotypedKey counts accessions absent from the GRM.
	UngenotypedKey = "data.ungenotyped"
)

// Metrics and performance
const (
	// PearsonRKey is the Pearson correlation between observed and predicted.
	PearsonRKey = "metrics.pearson_r"

	// RMSEKey is the root mean squared error.
	RMSEKey = "metrics.rmse"

	// LambdaKey is the ridge added to the kernel diagonal.
	LambdaKey = "model.lambda"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context
const (
	// ErrorKey holds the error message.
	ErrorKey = "error"

	// StacktraceKey contains stack trace information for debugging.
	// Populated from cockroachdb/errors safe details.
	StacktraceKey = "error.stacktrace"

	// ErrorTypeKey categorizes the error or warning, e.g. "SchemaError".
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationBuildGRM  = "build_grm"
	OperationPartition = "partition"
	OperationEvaluate  = "evaluate"
)
