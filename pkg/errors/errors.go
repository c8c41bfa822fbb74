// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
//
// Errors carry stack traces through github.com/cockroachdb/errors and every
// structured type can be attached to a zerolog event. Warnings are plain
// error values routed through a process-wide handler so that numerical
// fallbacks and partition fallbacks are reported without failing the caller.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("genopredict-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the fallback warning handler used when no
// zerolog sink has been registered.
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc registers the structured warning sink (set by pkg/log).
// Passing nil restores the plain handler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// SingularMatrixWarning is raised when a regularized system could not be
// solved directly and the least-squares fallback was used instead.
type SingularMatrixWarning struct {
	Operation string
	Size      int
	Reason    string
}

func (w *SingularMatrixWarning) Error() string {
	return fmt.Sprintf("%s: %dx%d system is singular or ill-conditioned (%s); using minimum-norm least squares",
		w.Operation, w.Size, w.Size, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *SingularMatrixWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Operation).
		Int("size", w.Size).
		Str("reason", w.Reason).
		Str("type", "SingularMatrixWarning")
}

// NewSingularMatrixWarning creates a SingularMatrixWarning.
func NewSingularMatrixWarning(operation string, size int, reason string) *SingularMatrixWarning {
	return &SingularMatrixWarning{Operation: operation, Size: size, Reason: reason}
}

// PartitionFallbackWarning is raised when a focal environment has no
// phenotype rows and the partition degrades to "train on everything".
type PartitionFallbackWarning struct {
	FocalEnv string
	Protocol string
	Train    int
	Test     int
}

func (w *PartitionFallbackWarning) Error() string {
	return fmt.Sprintf("no phenotype rows for focal environment %q under %s; training on all %d rows and testing %d accessions",
		w.FocalEnv, w.Protocol, w.Train, w.Test)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *PartitionFallbackWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("focal_env", w.FocalEnv).
		Str("protocol", w.Protocol).
		Int("train_rows", w.Train).
		Int("test_accessions", w.Test).
		Str("type", "PartitionFallbackWarning")
}

// NewPartitionFallbackWarning creates a PartitionFallbackWarning.
func NewPartitionFallbackWarning(focalEnv, protocol string, train, test int) *PartitionFallbackWarning {
	return &PartitionFallbackWarning{FocalEnv: focalEnv, Protocol: protocol, Train: train, Test: test}
}

// DegenerateGRMWarning is raised when no marker survives filtering and the
// relationship matrix is left empty (metadata-only mode).
type DegenerateGRMWarning struct {
	Accessions int
	Markers    int
}

func (w *DegenerateGRMWarning) Error() string {
	return fmt.Sprintf("no informative markers among %d columns for %d accessions; relationship matrix is empty",
		w.Markers, w.Accessions)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DegenerateGRMWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("accessions", w.Accessions).
		Int("markers", w.Markers).
		Str("type", "DegenerateGRMWarning")
}

// NewDegenerateGRMWarning creates a DegenerateGRMWarning.
func NewDegenerateGRMWarning(accessions, markers int) *DegenerateGRMWarning {
	return &DegenerateGRMWarning{Accessions: accessions, Markers: markers}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// For example a correlation over a constant prediction vector.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError is returned when a prediction is requested from a nil or
// zero-valued model.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("genopredict: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("genopredict: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, axisName(e.Axis), e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName(e.Axis)).
		Str("type", "DimensionError")
}

func axisName(axis int) string {
	if axis == 0 {
		return "rows"
	}
	return "columns"
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("genopredict: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// SchemaError reports a phenotype or marker table whose columns cannot be
// resolved: a missing identifier column, or zero / several trait columns.
// It is never recovered locally.
type SchemaError struct {
	Table   string
	Column  string
	Reason  string
	Columns []string
}

func (e *SchemaError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("genopredict: %s table: %s: %s %v", e.Table, e.Column, e.Reason, e.Columns)
	}
	return fmt.Sprintf("genopredict: %s table: %s: %s", e.Table, e.Column, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("table", e.Table).
		Str("column", e.Column).
		Str("reason", e.Reason).
		Strs("columns", e.Columns).
		Str("type", "SchemaError")
}

// NewSchemaError creates a SchemaError with a stack trace.
func NewSchemaError(table, column, reason string, columns []string) error {
	err := &SchemaError{Table: table, Column: column, Reason: reason, Columns: columns}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("genopredict: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError wraps a failure inside fitting or prediction.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("genopredict: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("genopredict: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// NumericalInstabilityError reports NaN or Inf values in a computed matrix.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("genopredict: numerical instability detected in %s. Values: [%s]", e.Operation, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64) error {
	err := &NumericalInstabilityError{Operation: operation, Values: values}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// CombineErrors returns err, or other when err is nil. When both are set
// other is attached to err as a secondary error.
func CombineErrors(err, other error) error {
	return errors.CombineErrors(err, other)
}

// Mark makes Is(err, reference) true while keeping err's type for As.
func Mark(err, reference error) error {
	return errors.Mark(err, reference)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")

	// ErrUnknownModelKind is returned when dispatching on an unsupported model kind.
	ErrUnknownModelKind = New("unknown model kind")

	// ErrUnknownAccession is returned when an accession id is not in the marker index.
	ErrUnknownAccession = New("unknown accession")
)
