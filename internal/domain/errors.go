package domain

import (
	"errors"
	"fmt"
)

// Category sentinels — use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrDisabled     = fmt.Errorf("disabled")
	ErrUnavailable  = fmt.Errorf("unavailable")
)

// Sentinel errors for the domain layer.
var (
	ErrUnparseable    = fmt.Errorf("unparseable schedule")
	ErrUnknownChannel = fmt.Errorf("unknown notification channel")
	ErrNoCreator      = fmt.Errorf("no creator identity stored")
	ErrConfigLoad     = fmt.Errorf("failed to load configuration")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Store.Delete")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "store", "notify"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem so that
// ErrorCodeOf can map the sentinel + subsystem pair to a specific ErrorCode.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown        ErrorCode = "UNKNOWN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeDuplicate      ErrorCode = "DUPLICATE"
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeDisabled       ErrorCode = "DISABLED"
	CodeUnavailable    ErrorCode = "UNAVAILABLE"
	CodeUnparseable    ErrorCode = "SCHEDULE_UNPARSEABLE"
	CodeUnknownChannel ErrorCode = "CHANNEL_UNKNOWN"
	CodeNoCreator      ErrorCode = "CREATOR_MISSING"
	CodeConfigLoad     ErrorCode = "CONFIG_LOAD"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeJobNotFound     ErrorCode = "JOB_NOT_FOUND"
	CodeJobDuplicate    ErrorCode = "JOB_DUPLICATE"
	CodeLogNotFound     ErrorCode = "LOG_NOT_FOUND"
	CodeResultNotFound  ErrorCode = "RESULT_NOT_FOUND"
	CodeExecTimeout     ErrorCode = "EXEC_TIMEOUT"
	CodeNotifyRateLimit ErrorCode = "NOTIFY_RATE_LIMITED"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:       CodeNotFound,
	ErrDuplicate:      CodeDuplicate,
	ErrTimeout:        CodeTimeout,
	ErrInvalidInput:   CodeInvalidInput,
	ErrDisabled:       CodeDisabled,
	ErrUnavailable:    CodeUnavailable,
	ErrUnparseable:    CodeUnparseable,
	ErrUnknownChannel: CodeUnknownChannel,
	ErrNoCreator:      CodeNoCreator,
	ErrConfigLoad:     CodeConfigLoad,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific codes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"store":   CodeJobNotFound,
		"journal": CodeLogNotFound,
		"results": CodeResultNotFound,
	},
	ErrDuplicate: {
		"store": CodeJobDuplicate,
	},
	ErrTimeout: {
		"executor": CodeExecTimeout,
	},
	ErrUnavailable: {
		"notify": CodeNotifyRateLimit,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if de.SubSystem != "" {
			if subsysMap, ok := subSystemCodeMap[de.Err]; ok {
				if code, ok := subsysMap[de.SubSystem]; ok {
					return code
				}
			}
		}
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
