// Package errors provides standardized error handling for the lead gateway.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeDisposableEmail    ErrorCode = "DISPOSABLE_EMAIL"
	ErrCodeSuspiciousEmail    ErrorCode = "SUSPICIOUS_EMAIL"
	ErrCodeMethodNotAllowed   ErrorCode = "METHOD_NOT_ALLOWED"

	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrCodeBotChallengeFailed         ErrorCode = "BOT_CHALLENGE_FAILED"
	ErrCodeBotVerificationUnavailable ErrorCode = "BOT_VERIFICATION_UNAVAILABLE"

	ErrCodeCRMAPIError               ErrorCode = "CRM_API_ERROR"
	ErrCodeCRMNotConfigured          ErrorCode = "CRM_NOT_CONFIGURED"
	ErrCodeEmailSendFailed           ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeNotificationPublishFailed ErrorCode = "NOTIFICATION_PUBLISH_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// User-facing messages shared by several endpoints.
const (
	MessageValidationFailed = "Validation failed"
	MessageMethodNotAllowed = "Method not allowed"
	MessageGeneric          = "Ein Fehler ist aufgetreten. Bitte versuchen Sie es erneut."
	MessageTechnical        = "Ein technischer Fehler ist aufgetreten. Bitte versuchen Sie es später erneut."
	MessageBotChallenge     = "Sicherheitsprüfung fehlgeschlagen. Bitte versuchen Sie es erneut."
	MessageDisposableEmail  = "Bitte verwenden Sie eine gültige E-Mail-Adresse."
	MessageSuspiciousEmail  = "Die E-Mail-Adresse scheint ungültig zu sein."
)

// StandardError represents a structured application error. Message is safe
// to show to a visitor; Details is for the server log only.
type StandardError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Retryable   bool                   `json:"retryable"`
	FieldErrors map[string][]string    `json:"errors,omitempty"`
	RetryAfter  time.Duration          `json:"-"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns the error with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// As extracts a StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a field-keyed validation error.
func NewValidationError(message string, fields map[string][]string) *StandardError {
	return &StandardError{
		Code:        ErrCodeValidationFailed,
		Message:     message,
		FieldErrors: fields,
		Retryable:   false,
		Timestamp:   time.Now().UTC(),
	}
}

// NewInputParsingError is returned when the request body is not the expected JSON object.
func NewInputParsingError(message string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputParsingFailed,
		Message:   message,
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDisposableEmailError(domain string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDisposableEmail,
		Message:   MessageDisposableEmail,
		Details:   "disposable domain " + domain,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSuspiciousEmailError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSuspiciousEmail,
		Message:   MessageSuspiciousEmail,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewMethodNotAllowedError(method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMethodNotAllowed,
		Message:   MessageMethodNotAllowed,
		Details:   "method " + method,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitExceededError creates a rejection that tells the client how long to wait.
func NewRateLimitExceededError(message string, retryAfter time.Duration) *StandardError {
	return &StandardError{
		Code:       ErrCodeRateLimitExceeded,
		Message:    message,
		RetryAfter: retryAfter,
		Retryable:  true,
		Timestamp:  time.Now().UTC(),
	}
}

// NewBotChallengeFailedError is returned when the verifier rejected the token.
func NewBotChallengeFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBotChallengeFailed,
		Message:   MessageBotChallenge,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBotVerificationUnavailableError is returned when the verifier could not be
// asked. The submission is still rejected.
func NewBotVerificationUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBotVerificationUnavailable,
		Message:   MessageBotChallenge,
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewCRMAPIError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMAPIError,
		Message:   MessageGeneric,
		Details:   fmt.Sprintf("%s: %s", operation, errDetails(err)),
		Retryable: true,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
	}
}

func NewCRMNotConfiguredError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMNotConfigured,
		Message:   MessageGeneric,
		Details:   provider + " API key not configured",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEmailSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailSendFailed,
		Message:   MessageGeneric,
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationPublishFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationPublishFailed,
		Message:   MessageGeneric,
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   MessageGeneric,
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Utility Functions
// ==========================

// HTTPStatus maps an error code to the response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInputParsingFailed,
		ErrCodeDisposableEmail, ErrCodeSuspiciousEmail:
		return http.StatusBadRequest
	case ErrCodeBotChallengeFailed, ErrCodeBotVerificationUnavailable:
		return http.StatusForbidden
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryableErrorCode reports whether resubmitting the same request later may succeed.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeRateLimitExceeded,
		ErrCodeBotVerificationUnavailable,
		ErrCodeCRMAPIError,
		ErrCodeEmailSendFailed,
		ErrCodeNotificationPublishFailed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING") ||
		strings.Contains(codeStr, "EMAIL") && !strings.Contains(codeStr, "SEND"):
		return "VALIDATION"
	case strings.Contains(codeStr, "RATE_LIMIT"):
		return "ABUSE"
	case strings.Contains(codeStr, "BOT"):
		return "SECURITY"
	case strings.Contains(codeStr, "CRM") || strings.Contains(codeStr, "SEND") || strings.Contains(codeStr, "PUBLISH"):
		return "COLLABORATOR"
	default:
		return "OTHER"
	}
}
