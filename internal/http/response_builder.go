package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the body. A nil value sends no body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.data == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	body, err := json.Marshal(b.data)
	if err != nil {
		http.Error(w, `{"error":{"kind":"internal","message":"encoding failed"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	kindUnavailable = "unavailable"
	kindInternal    = "internal"
)

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, kind, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(ErrorBody{Error: ErrorDetail{Kind: kind, Message: message}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, string(core.KindValidation), message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, string(core.KindNotFound), message)
}

// StatusFor maps err to the status code and kind reported to the client.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrMailDisabled), errors.Is(err, services.ErrSheetsDisabled):
		return http.StatusServiceUnavailable, kindUnavailable
	}
	kind := core.KindOf(err)
	switch kind {
	case core.KindValidation:
		return http.StatusUnprocessableEntity, string(kind)
	case core.KindConflict:
		return http.StatusConflict, string(kind)
	case core.KindNotFound:
		return http.StatusNotFound, string(kind)
	case core.KindTimeout:
		return http.StatusGatewayTimeout, string(kind)
	case core.KindRemote, core.KindAdvisor:
		return http.StatusBadGateway, string(kind)
	case core.KindSession:
		return http.StatusUnauthorized, string(kind)
	case core.KindFormat:
		return http.StatusInternalServerError, string(kind)
	}
	return http.StatusInternalServerError, kindInternal
}

// ErrorFor builds the error response for err. Internal failures do not leak
// their message.
func ErrorFor(err error) *JSONResponseBuilder {
	status, kind := StatusFor(err)
	msg := err.Error()
	if kind == kindInternal {
		msg = http.StatusText(status)
	}
	return ErrorResponse(status, kind, msg)
}

func errorTypeFor(kind core.Kind) string {
	switch kind {
	case core.KindValidation:
		return log.ErrorTypeValidation
	case core.KindConflict:
		return log.ErrorTypeConflict
	case core.KindNotFound:
		return log.ErrorTypeNotFound
	case core.KindTimeout:
		return log.ErrorTypeTimeout
	case core.KindRemote:
		return log.ErrorTypeNetwork
	case core.KindAdvisor:
		return log.ErrorTypeAdvisor
	case core.KindFormat:
		return log.ErrorTypeFormat
	}
	return log.ErrorTypeInternal
}
