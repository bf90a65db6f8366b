package marshal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NonFieldErrorsKey is the bucket used for errors that do not belong to a
// single field, such as bound validator rejections.
const NonFieldErrorsKey = "non_field_errors"

var (
	// ErrConfiguration marks build-time configuration failures.
	ErrConfiguration = errors.New("marshal: configuration error")
	// ErrNotFound is returned by stores when a referenced row does not exist.
	ErrNotFound = errors.New("marshal: object not found")
)

// ConfigurationError reports a build-time misconfiguration. It unwraps to
// ErrConfiguration.
type ConfigurationError struct {
	Model  string
	Reason string
	Fields []string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("marshal: configuration error")
	if e.Model != "" {
		b.WriteString(" (model ")
		b.WriteString(e.Model)
		b.WriteString(")")
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Fields) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Fields, ", "))
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func configErr(model, reason string, fields ...string) *ConfigurationError {
	return &ConfigurationError{Model: model, Reason: reason, Fields: fields}
}

// ValidationError aggregates request-time failures keyed by field name, plus
// a non-field bucket.
type ValidationError struct {
	Fields   map[string][]string
	NonField []string
}

// NewFieldError returns a ValidationError holding one message for field.
func NewFieldError(field, message string) *ValidationError {
	verr := &ValidationError{}
	verr.Add(field, message)
	return verr
}

// NewNonFieldError returns a ValidationError holding one non-field message.
func NewNonFieldError(message string) *ValidationError {
	verr := &ValidationError{}
	verr.AddNonField(message)
	return verr
}

// Add records a message for the named field. The non-field key routes to the
// non-field bucket.
func (e *ValidationError) Add(field, message string) {
	if field == "" || field == NonFieldErrorsKey {
		e.AddNonField(message)
		return
	}
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// AddNonField records a message in the non-field bucket.
func (e *ValidationError) AddNonField(message string) {
	e.NonField = append(e.NonField, message)
}

// Merge folds other into e.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, messages := range other.Fields {
		for _, message := range messages {
			e.Add(field, message)
		}
	}
	e.NonField = append(e.NonField, other.NonField...)
}

// Empty reports whether no messages were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || (len(e.Fields) == 0 && len(e.NonField) == 0)
}

// Map flattens the error into a field → messages map using NonFieldErrorsKey
// for the non-field bucket.
func (e *ValidationError) Map() map[string][]string {
	if e.Empty() {
		return nil
	}
	out := make(map[string][]string, len(e.Fields)+1)
	for field, messages := range e.Fields {
		out[field] = append([]string(nil), messages...)
	}
	if len(e.NonField) > 0 {
		out[NonFieldErrorsKey] = append([]string(nil), e.NonField...)
	}
	return out
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return "marshal: validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, strings.Join(e.Fields[key], "; ")))
	}
	if len(e.NonField) > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", NonFieldErrorsKey, strings.Join(e.NonField, "; ")))
	}
	return "marshal: validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) orNil() error {
	if e.Empty() {
		return nil
	}
	return e
}
