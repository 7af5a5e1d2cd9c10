package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeExtraction      ErrorType = "extraction"
	ErrorTypeScoringInput    ErrorType = "scoring_input"
	ErrorTypeExternalService ErrorType = "external_service"
	ErrorTypeConfig          ErrorType = "configuration"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeIO              ErrorType = "io"
	ErrorTypeInternal        ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewExtractionError reports a document that could not be read or turned into a candidate record.
func NewExtractionError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeExtraction, code, message, cause)
}

// NewScoringInputError reports a malformed job requirement. It is fatal for a run.
func NewScoringInputError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeScoringInput, code, message, cause)
}

// NewExternalServiceError reports a timeout, quota or network failure of the model service.
func NewExternalServiceError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeExternalService, code, message, cause)
}

// NewConfigError reports invalid configuration. It is fatal at startup.
func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsType reports whether any AppError in err's chain has the given type.
func IsType(err error, typ ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == typ {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsFatal reports whether err must abort a whole pipeline run.
func IsFatal(err error) bool {
	return IsType(err, ErrorTypeScoringInput) || IsType(err, ErrorTypeConfig)
}

// Code returns the code of the outermost AppError in err's chain, or "".
func Code(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger writing JSON to stderr.
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewLoggerWithWriter(io.Discard, slog.LevelError)
}

// With returns a child logger carrying the given attributes on every record.
// Every Logger method is a no-op on a nil receiver.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{logger: l.logger.With(args...)}
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	if l == nil || err == nil {
		return
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}
		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}
		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
		return
	}

	logArgs := append([]any{"error", err.Error()}, args...)
	l.logger.Error(message, logArgs...)
}

func (l *Logger) Info(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Warn(message, args...)
}

func (l *Logger) Error(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Error(message, args...)
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound       = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable    = "FILE_NOT_READABLE"
	ErrCodeFileTooLarge       = "FILE_TOO_LARGE"
	ErrCodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	ErrCodeCorruptDocument    = "CORRUPT_DOCUMENT"
	ErrCodeExtractionFailed   = "EXTRACTION_FAILED"
	ErrCodeInvalidJob         = "INVALID_JOB_REQUIREMENT"
	ErrCodeMissingJob         = "MISSING_JOB_REQUIREMENT"
	ErrCodeModelFailed        = "MODEL_SERVICE_FAILED"
	ErrCodeModelTimeout       = "MODEL_TIMEOUT"
	ErrCodeModelUnavailable   = "MODEL_UNAVAILABLE"
	ErrCodeInvalidModelOutput = "INVALID_MODEL_OUTPUT"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeMissingAPIKey      = "MISSING_API_KEY"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeInvalidWeights     = "INVALID_WEIGHTS"
	ErrCodeInvalidBands       = "INVALID_BANDS"
	ErrCodeStorageFailed      = "STORAGE_FAILED"
	ErrCodeQueueFailed        = "QUEUE_FAILED"
	ErrCodeStageFailed        = "STAGE_FAILED"
	ErrCodeRunNotFound        = "RUN_NOT_FOUND"
)
