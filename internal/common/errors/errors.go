// Package errors provides the orchestrator's error taxonomy and its mapping onto BPMN errors.
package errors

import (
	"context"
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

// Orchestration errors
const (
	ErrCodeEmptyQuery                 ErrorCode = "EMPTY_QUERY"
	ErrCodeMissingIdentifier          ErrorCode = "MISSING_IDENTIFIER"
	ErrCodeDecompositionFailed        ErrorCode = "DECOMPOSITION_FAILED"
	ErrCodeNoAgentMatch               ErrorCode = "NO_AGENT_MATCH"
	ErrCodeAllSpecialistsFailed       ErrorCode = "ALL_SPECIALISTS_FAILED"
	ErrCodeEscalationGenerationFailed ErrorCode = "ESCALATION_GENERATION_FAILED"
	ErrCodeEscalationNotFound         ErrorCode = "ESCALATION_NOT_FOUND"
	ErrCodeEscalationAlreadyResolved  ErrorCode = "ESCALATION_ALREADY_RESOLVED"
	ErrCodeInvalidJobVariables        ErrorCode = "INVALID_JOB_VARIABLES"
)

// Collaborator errors
const (
	ErrCodeCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE"
	ErrCodeLLMTimeout              ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMRateLimited          ErrorCode = "LLM_RATE_LIMITED"
	ErrCodeLLMInvalidResponse      ErrorCode = "LLM_INVALID_RESPONSE"
	ErrCodeFetchFailed             ErrorCode = "FETCH_FAILED"
	ErrCodeExtractionFailed        ErrorCode = "EXTRACTION_FAILED"
	ErrCodeSearchQueryFailed       ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeDatabaseQueryFailed     ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeNotificationSendFailed  ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
)

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

func (e *StandardError) Unwrap() error { return e.cause }

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

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewEmptyQueryError is raised when a query arrives without text.
func NewEmptyQueryError() *StandardError {
	return newError(ErrCodeEmptyQuery, "Query text is empty", "", false, nil)
}

// NewMissingIdentifierError is a contract violation surfaced to the caller.
func NewMissingIdentifierError(field string) *StandardError {
	return newError(ErrCodeMissingIdentifier, "Required identifier is missing", fmt.Sprintf("field: %s", field), false, nil)
}

func NewDecompositionFailedError(details string) *StandardError {
	return newError(ErrCodeDecompositionFailed, "Query decomposition produced no sub-queries", details, false, nil)
}

func NewAllSpecialistsFailedError(count int) *StandardError {
	return newError(ErrCodeAllSpecialistsFailed, "Every specialist dispatch failed", fmt.Sprintf("dispatches: %d", count), false, nil)
}

func NewEscalationGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeEscalationGenerationFailed, "Interim escalation response generation failed", errDetails(err), false, err)
}

func NewEscalationNotFoundError(escalationID string) *StandardError {
	return newError(ErrCodeEscalationNotFound, "Escalation not found", fmt.Sprintf("escalationId: %s", escalationID), false, nil)
}

func NewEscalationAlreadyResolvedError(escalationID string) *StandardError {
	return newError(ErrCodeEscalationAlreadyResolved, "Escalation is not pending", fmt.Sprintf("escalationId: %s", escalationID), false, nil)
}

func NewInvalidJobVariablesError(taskType, details string) *StandardError {
	return newError(ErrCodeInvalidJobVariables, "Job variables failed schema validation", fmt.Sprintf("taskType: %s, %s", taskType, details), false, nil)
}

// NewCollaboratorUnavailableError wraps a transient model/search/fetch failure.
func NewCollaboratorUnavailableError(service string, err error) *StandardError {
	return newError(ErrCodeCollaboratorUnavailable, fmt.Sprintf("Collaborator '%s' unavailable", service), errDetails(err), true, err)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM completion timeout", errDetails(err), true, err)
}

func NewLLMRateLimitedError(err error) *StandardError {
	return newError(ErrCodeLLMRateLimited, "LLM rate limit exceeded", errDetails(err), true, err)
}

func NewLLMInvalidResponseError(err error) *StandardError {
	return newError(ErrCodeLLMInvalidResponse, "LLM returned unparseable structured output", errDetails(err), true, err)
}

func NewFetchFailedError(url string, statusCode int) *StandardError {
	return newError(ErrCodeFetchFailed, "URL fetch failed", fmt.Sprintf("url: %s, status: %d", url, statusCode), false, nil)
}

func NewExtractionFailedError(url string) *StandardError {
	return newError(ErrCodeExtractionFailed, "No textual content after extraction", fmt.Sprintf("url: %s", url), false, nil)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error", fmt.Sprintf("index: %s, error: %s", index, errDetails(err)), true, err)
}

func NewDatabaseQueryFailedError(op string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database query execution error", fmt.Sprintf("op: %s, error: %s", op, errDetails(err)), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed", fmt.Sprintf("channel: %s, error: %s", channel, errDetails(err)), true, err)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeEmptyQuery:                 "EMPTY_QUERY",
	ErrCodeMissingIdentifier:          "MISSING_IDENTIFIER",
	ErrCodeDecompositionFailed:        "DECOMPOSITION_FAILED",
	ErrCodeNoAgentMatch:               "NO_AGENT_MATCH",
	ErrCodeAllSpecialistsFailed:       "ALL_SPECIALISTS_FAILED",
	ErrCodeEscalationGenerationFailed: "ESCALATION_GENERATION_FAILED",
	ErrCodeEscalationNotFound:         "ESCALATION_NOT_FOUND",
	ErrCodeEscalationAlreadyResolved:  "ESCALATION_ALREADY_RESOLVED",
	ErrCodeInvalidJobVariables:        "INVALID_JOB_VARIABLES",
	ErrCodeCollaboratorUnavailable:    "COLLABORATOR_UNAVAILABLE",
	ErrCodeLLMTimeout:                 "LLM_TIMEOUT",
	ErrCodeLLMRateLimited:             "LLM_RATE_LIMITED",
	ErrCodeLLMInvalidResponse:         "LLM_INVALID_RESPONSE",
	ErrCodeFetchFailed:                "FETCH_FAILED",
	ErrCodeExtractionFailed:           "EXTRACTION_FAILED",
	ErrCodeSearchQueryFailed:          "SEARCH_QUERY_FAILED",
	ErrCodeDatabaseQueryFailed:        "DATABASE_QUERY_FAILED",
	ErrCodeNotificationSendFailed:     "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCollaboratorUnavailable,
		ErrCodeLLMRateLimited,
		ErrCodeSearchQueryFailed,
		ErrCodeDatabaseQueryFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeLLMTimeout,
		ErrCodeLLMInvalidResponse:
		return 2

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

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// Normalize turns any error into a StandardError, keeping the original as cause.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return newError(ErrCodeCollaboratorUnavailable, "Operation timed out", errDetails(err), true, err)
	}
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false, err)
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "ESCALATION"):
		return "ESCALATION"
	case strings.Contains(codeStr, "FETCH") || strings.Contains(codeStr, "EXTRACTION"):
		return "FETCH"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "IDENTIFIER") || strings.Contains(codeStr, "VARIABLES"):
		return "VALIDATION"
	case strings.Contains(codeStr, "SPECIALIST") || strings.Contains(codeStr, "AGENT") || strings.Contains(codeStr, "DECOMPOSITION") || strings.Contains(codeStr, "COLLABORATOR"):
		return "ORCHESTRATION"
	default:
		return "OTHER"
	}
}
