package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/fmd-gateway/internal/classifier"
	"github.com/example/fmd-gateway/internal/logging"
)

// FailureKind discriminates the terminal outcomes of a prediction request so
// the HTTP layer can map each one exhaustively instead of probing response
// fields at runtime.
type FailureKind int

const (
	// KindStorage covers save and post-save verification failures. The
	// classifier is never spawned when this occurs.
	KindStorage FailureKind = iota + 1
	// KindClassifier covers non-zero classifier exits and spawn failures.
	KindClassifier
	// KindBadOutput covers a zero exit whose stdout was not valid JSON.
	KindBadOutput
	// KindTimeout covers a classifier killed at its deadline.
	KindTimeout
	// KindOverflow covers a classifier killed for flooding its streams.
	KindOverflow
)

// String names the failure kind for logs.
func (k FailureKind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindClassifier:
		return "classifier"
	case KindBadOutput:
		return "bad_output"
	case KindTimeout:
		return "timeout"
	case KindOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// PredictionError is the tagged failure returned by Predict.
type PredictionError struct {
	Kind    FailureKind
	Details string
	Err     error
}

// Error implements the error interface.
func (e *PredictionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("prediction failed (%s): %s", e.Kind, e.Details)
	}
	return fmt.Sprintf("prediction failed (%s): %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PredictionError) Unwrap() error {
	return e.Err
}

// UploadStore defines the persistence operations needed by the use case.
type UploadStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Verify(path string) error
	Remove(path string) error
}

// PredictionUseCase orchestrates the save, verify, classify, resolve flow for
// one uploaded image. Each call is independent; there is no shared state
// between requests.
type PredictionUseCase struct {
	store       UploadStore
	runner      classifier.Runner
	logger      *zap.Logger
	keepUploads bool
}

// UseCaseOption configures the prediction use case.
type UseCaseOption func(*PredictionUseCase)

// WithKeepUploads retains temp files after classification, for debugging.
func WithKeepUploads(keep bool) UseCaseOption {
	return func(uc *PredictionUseCase) {
		uc.keepUploads = keep
	}
}

// NewPredictionUseCase constructs a new use case instance.
func NewPredictionUseCase(store UploadStore, runner classifier.Runner, logger *zap.Logger, opts ...UseCaseOption) *PredictionUseCase {
	uc := &PredictionUseCase{
		store:  store,
		runner: runner,
		logger: logger.Named("prediction_usecase"),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Predict persists the uploaded image, runs the classifier against it, and
// returns the classifier's JSON verbatim. Failures carry a PredictionError
// whose kind identifies the terminal branch; exactly one branch applies per
// call. The temp file is removed once the classifier has completed unless the
// use case was configured to keep uploads.
func (uc *PredictionUseCase) Predict(ctx context.Context, originalName string, image io.Reader) (json.RawMessage, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.predict", requestID)

	path, err := uc.store.Save(originalName, image)
	if err != nil {
		opLogger.Error("failed to save upload", zap.Error(err))
		return nil, &PredictionError{Kind: KindStorage, Err: logging.NewOperationError("usecase.save_upload", requestID, err)}
	}
	if !uc.keepUploads {
		defer func() {
			if err := uc.store.Remove(path); err != nil {
				opLogger.Warn("failed to remove temp file", zap.String("path", path), zap.Error(err))
			}
		}()
	}

	if err := uc.store.Verify(path); err != nil {
		opLogger.Error("saved upload failed verification", zap.String("path", path), zap.Error(err))
		return nil, &PredictionError{Kind: KindStorage, Err: logging.NewOperationError("usecase.verify_upload", requestID, err)}
	}
	opLogger.Info("upload saved", zap.String("path", path))

	result, err := uc.runner.Classify(ctx, path)
	if err != nil {
		return nil, uc.classifyFailure(opLogger, requestID, err)
	}

	opLogger.Info("prediction completed", zap.Int("payload_bytes", len(result.Payload)))
	return result.Payload, nil
}

func (uc *PredictionUseCase) classifyFailure(opLogger *zap.Logger, requestID string, err error) error {
	wrapped := logging.NewOperationError("usecase.classify", requestID, err)

	var exitErr *classifier.ExitError
	switch {
	case errors.As(err, &exitErr):
		opLogger.Error("classifier exited non-zero", zap.Int("exit_code", exitErr.Code), zap.String("stderr", exitErr.Stderr))
		return &PredictionError{Kind: KindClassifier, Details: exitErr.Stderr, Err: wrapped}
	case errors.Is(err, classifier.ErrTimeout):
		opLogger.Error("classifier timed out", zap.Error(err))
		return &PredictionError{Kind: KindTimeout, Err: wrapped}
	case errors.Is(err, classifier.ErrOutputLimit):
		opLogger.Error("classifier output overflow", zap.Error(err))
		return &PredictionError{Kind: KindOverflow, Err: wrapped}
	case errors.Is(err, classifier.ErrBadOutput):
		opLogger.Error("classifier output unparseable", zap.Error(err))
		return &PredictionError{Kind: KindBadOutput, Err: wrapped}
	default:
		opLogger.Error("classifier invocation failed", zap.Error(err))
		return &PredictionError{Kind: KindClassifier, Details: err.Error(), Err: wrapped}
	}
}
