// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Ingest error codes. Export and validation failures are never retried; storage failures are.
const (
	ErrCodeUnrecognizedFormat ErrorCode = "UNRECOGNIZED_FORMAT"
	ErrCodeMalformedField     ErrorCode = "MALFORMED_FIELD"
	ErrCodeIdentityAssumption ErrorCode = "IDENTITY_ASSUMPTION_VIOLATION"
	ErrCodeInvalidProfile     ErrorCode = "INVALID_PROFILE"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeStatsIndexNotFound ErrorCode = "STATS_INDEX_NOT_FOUND"
	ErrCodeProfileLoadFailed  ErrorCode = "PROFILE_LOAD_FAILED"
	ErrCodeProfileSaveFailed  ErrorCode = "PROFILE_SAVE_FAILED"
	ErrCodeProfileLocked      ErrorCode = "PROFILE_LOCKED"
	ErrCodeStatsIndexFailed   ErrorCode = "STATS_INDEX_FAILED"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeBrokerUnavailable  ErrorCode = "BROKER_UNAVAILABLE"
)

// Message shown for any export that cannot be read. Vendor field names stay in Details.
const unreadableExportMessage = "The export file could not be read"

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewUnrecognizedFormatError is returned when an upload matches no known vendor export.
func NewUnrecognizedFormatError(details string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnrecognizedFormat,
		Message:   unreadableExportMessage,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewMalformedFieldError is returned when a required export element has the wrong shape.
func NewMalformedFieldError(details string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedField,
		Message:   unreadableExportMessage,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewIdentityAssumptionError is returned when two profiles handed to a merge cannot belong to one account.
func NewIdentityAssumptionError(details string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIdentityAssumption,
		Message:   "Profiles cannot be merged",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidProfileError flags a normalized profile that breaks its own invariants.
func NewInvalidProfileError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidProfile,
		Message:   "Normalized profile failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError covers missing or undecodable job variables.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid job input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewProfileLoadFailedError(profileID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileLoadFailed,
		Message:   "Failed to load stored profile",
		Details:   fmt.Sprintf("profileId: %s, error: %s", profileID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewProfileSaveFailedError(profileID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileSaveFailed,
		Message:   "Failed to save profile",
		Details:   fmt.Sprintf("profileId: %s, error: %s", profileID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewProfileLockedError is returned when another upload holds the profile's merge lock.
func NewProfileLockedError(profileID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileLocked,
		Message:   "Profile is being updated by another upload",
		Details:   fmt.Sprintf("profileId: %s, error: %s", profileID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewStatsIndexFailedError(profileID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatsIndexFailed,
		Message:   "Failed to index profile stats",
		Details:   fmt.Sprintf("profileId: %s, error: %s", profileID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewStatsIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatsIndexNotFound,
		Message:   "Stats index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageUnavailableError wraps connection-level storage failures.
func NewStorageUnavailableError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUnavailable,
		Message:   fmt.Sprintf("Storage service '%s' unavailable", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewBrokerUnavailableError wraps Zeebe gateway failures.
func NewBrokerUnavailableError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBrokerUnavailable,
		Message:   "Workflow broker unavailable",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// FromError returns the StandardError in err's chain, or wraps err as an internal error.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the codes caught by boundary events.
// Every unreadable export surfaces as one BPMN error.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeUnrecognizedFormat: "EXPORT_UNREADABLE",
	ErrCodeMalformedField:     "EXPORT_UNREADABLE",
	ErrCodeIdentityAssumption: "MERGE_REJECTED",
	ErrCodeInvalidProfile:     "INVALID_PROFILE",
	ErrCodeInvalidInput:       "INVALID_INPUT",
	ErrCodeProfileLoadFailed:  "PROFILE_LOAD_FAILED",
	ErrCodeProfileSaveFailed:  "PROFILE_SAVE_FAILED",
	ErrCodeProfileLocked:      "PROFILE_LOCKED",
	ErrCodeStatsIndexFailed:   "STATS_INDEX_FAILED",
	ErrCodeStatsIndexNotFound: "STATS_INDEX_NOT_FOUND",
	ErrCodeStorageUnavailable: "STORAGE_UNAVAILABLE",
	ErrCodeBrokerUnavailable:  "BROKER_UNAVAILABLE",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeProfileLoadFailed,
		ErrCodeProfileSaveFailed,
		ErrCodeStorageUnavailable,
		ErrCodeBrokerUnavailable,
		ErrCodeStatsIndexFailed:
		return 3

	case ErrCodeProfileLocked:
		return 5 // contention clears once the other upload commits

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnrecognizedFormat || code == ErrCodeMalformedField:
		return "EXPORT"
	case code == ErrCodeIdentityAssumption:
		return "MERGE"
	case strings.Contains(codeStr, "STATS_INDEX"):
		return "SEARCH"
	case strings.HasPrefix(codeStr, "PROFILE_") || strings.HasPrefix(codeStr, "STORAGE_"):
		return "STORAGE"
	case code == ErrCodeBrokerUnavailable:
		return "BROKER"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
