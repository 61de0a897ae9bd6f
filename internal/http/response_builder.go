// Package http serves the finance pages and their HTMX partials.
//
// This file holds the builder used to assemble HTMX responses: HX-Trigger
// events, status and body in one fluent chain.
package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"finassist/internal/core"
)

// Client-side events fired after writes so dependent panels refresh.
const (
	EventTransactionsChanged = "transactions:changed"
	EventGoalsChanged        = "goals:changed"
	EventJournalChanged      = "journal:changed"
	EventFormReset           = "form:reset"
	EventNotification        = "show-notification"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerTableChanged fires the refresh event for one table.
func (b *HTMXResponseBuilder) TriggerTableChanged(event, op, id string) *HTMXResponseBuilder {
	return b.Trigger(event, map[string]string{"operation": op, "id": id})
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(EventFormReset, struct{}{})
}

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message, HTML-escaped, inside an error box.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`).
		TriggerErrorNotification(message)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}

var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidKind,
	core.ErrInvalidFrequency,
	core.ErrDescriptionTooLong,
}

// ErrorFor maps service errors onto responses: unparseable input is 400,
// a rule violation 422, a missing row 404 and anything else 500. Failures
// of the stored tables are 500 even when the stored data fails to parse.
// Internal error text is never sent to the client.
func ErrorFor(err error) *HTMXResponseBuilder {
	var (
		pe *core.ParseError
		se *core.StorageError
	)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("Record not found")
	case errors.As(err, &se):
		return InternalServerError("Something went wrong, please retry")
	case errors.As(err, &pe):
		return BadRequestError(pe.Error())
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return UnprocessableEntityError(err.Error())
		}
	}
	return InternalServerError("Something went wrong, please retry")
}
