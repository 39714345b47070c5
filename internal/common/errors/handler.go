// internal/common/errors/handler.go
package errors

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	httpclient "ipa-leadgate/internal/common/http"
)

// ErrorHandler turns errors into JSON responses for one endpoint.
type ErrorHandler struct {
	logger     Logger
	endpoint   string
	messageKey string
	fallback   string
	recorder   FailureRecorder
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// FailureRecorder counts rejected requests per category.
type FailureRecorder interface {
	RecordError(endpoint, category string)
}

type HandlerOption func(*ErrorHandler)

// WithMessageKey sets the JSON key carrying the message, "message" by default.
func WithMessageKey(key string) HandlerOption {
	return func(h *ErrorHandler) { h.messageKey = key }
}

// WithFallbackMessage replaces the message of collaborator and internal errors.
func WithFallbackMessage(msg string) HandlerOption {
	return func(h *ErrorHandler) { h.fallback = msg }
}

func WithRecorder(r FailureRecorder) HandlerOption {
	return func(h *ErrorHandler) { h.recorder = r }
}

func NewErrorHandler(logger Logger, endpoint string, opts ...HandlerOption) *ErrorHandler {
	h := &ErrorHandler{
		logger:     logger,
		endpoint:   endpoint,
		messageKey: "message",
		fallback:   MessageGeneric,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Respond writes the error response and aborts the gin chain.
func (h *ErrorHandler) Respond(c *gin.Context, err error) {
	stdErr := h.normalizeError(err)
	category := GetErrorCategory(stdErr.Code)

	h.logError(c, stdErr, category)
	if h.recorder != nil {
		h.recorder.RecordError(h.endpoint, category)
	}

	if stdErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(stdErr.RetryAfter.Seconds()))))
	}

	c.AbortWithStatusJSON(HTTPStatus(stdErr.Code), h.Body(stdErr))
}

// Body builds the response body for a normalized error.
func (h *ErrorHandler) Body(stdErr *StandardError) gin.H {
	msg := stdErr.Message
	switch GetErrorCategory(stdErr.Code) {
	case "COLLABORATOR", "OTHER":
		if stdErr.Code != ErrCodeMethodNotAllowed {
			msg = h.fallback
		}
	}

	body := gin.H{
		"success":    false,
		h.messageKey: msg,
	}
	if len(stdErr.FieldErrors) > 0 {
		body["errors"] = stdErr.FieldErrors
	}
	return body
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

func (h *ErrorHandler) logError(c *gin.Context, stdErr *StandardError, category string) {
	fields := map[string]interface{}{
		"endpoint":      h.endpoint,
		"errorCode":     string(stdErr.Code),
		"errorCategory": category,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"clientIp":      c.GetString(httpclient.KeyClientIP),
		"requestId":     c.GetString(httpclient.KeyRequestID),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	switch {
	case category == "VALIDATION" || stdErr.Code == ErrCodeMethodNotAllowed:
		if len(stdErr.FieldErrors) > 0 {
			fields["fields"] = stdErr.FieldErrors
		}
		h.logger.Debug("Request rejected", fields)
	case category == "ABUSE" || category == "SECURITY":
		h.logger.Warn("Request rejected", fields)
	default:
		h.logger.Error("Request failed", fields)
	}
}
