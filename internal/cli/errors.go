package cli

import (
	"errors"
	"io/fs"

	"github.com/tz301/kaldi-onnx-tf/internal/cache"
	"github.com/tz301/kaldi-onnx-tf/internal/chunk"
	"github.com/tz301/kaldi-onnx-tf/internal/config"
	"github.com/tz301/kaldi-onnx-tf/internal/descriptor"
	"github.com/tz301/kaldi-onnx-tf/internal/emit"
	"github.com/tz301/kaldi-onnx-tf/internal/graph"
	"github.com/tz301/kaldi-onnx-tf/internal/nnet3"
)

// Error codes surfaced in CLI output. Codes name the pipeline stage that
// rejected the model, so scripts can branch without parsing messages.
const (
	ErrCodeParse            = "PARSE"
	ErrCodeUnknownComponent = "UNKNOWN_COMPONENT"
	ErrCodeCycle            = "CYCLE"
	ErrCodeContextMismatch  = "CONTEXT_MISMATCH"
	ErrCodeChunkRange       = "CHUNK_RANGE"
	ErrCodeUnsupportedOp    = "UNSUPPORTED_OP"
	ErrCodeConfig           = "CONFIG"
	ErrCodeIO               = "IO"
	ErrCodeGeneric          = "INTERNAL"
)

// classifyError maps a pipeline error to its CLI code and exit code.
// Model defects are failures (exit 1); environment problems like missing
// files or bad config are command errors (exit 2).
func classifyError(err error) (string, int) {
	var (
		parseErr      *nnet3.ParseError
		descErr       *descriptor.ParseError
		unknownErr    *nnet3.UnknownComponentError
		cycleErr      *graph.CycleError
		mismatchErr   *graph.ContextMismatchError
		chunkErr      *chunk.ChunkRangeError
		unsupportedOp *emit.UnsupportedOpError
		configErr     *config.ConfigError
		storeErr      *cache.StoreError
		pathErr       *fs.PathError
	)
	switch {
	case errors.As(err, &parseErr), errors.As(err, &descErr):
		return ErrCodeParse, ExitFailure
	case errors.As(err, &unknownErr):
		return ErrCodeUnknownComponent, ExitFailure
	case errors.As(err, &cycleErr):
		return ErrCodeCycle, ExitFailure
	case errors.As(err, &mismatchErr):
		return ErrCodeContextMismatch, ExitFailure
	case errors.As(err, &chunkErr):
		return ErrCodeChunkRange, ExitFailure
	case errors.As(err, &unsupportedOp):
		return ErrCodeUnsupportedOp, ExitFailure
	case errors.As(err, &configErr):
		return ErrCodeConfig, ExitCommandError
	case errors.As(err, &storeErr), errors.As(err, &pathErr):
		return ErrCodeIO, ExitCommandError
	}
	return ErrCodeGeneric, ExitCommandError
}

// fail reports err through the formatter and converts it to an ExitError
// carrying the right exit code.
func fail(formatter *OutputFormatter, err error) error {
	code, exitCode := classifyError(err)
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(exitCode, code, err)
}
