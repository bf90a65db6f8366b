package marshal

import (
	"errors"
	"fmt"
	"strings"
)

// Message keys for request-time validation failures. Translators receive
// the key plus the message params.
const (
	MsgRequired       = "marshal.required"
	MsgNull           = "marshal.null"
	MsgBlank          = "marshal.blank"
	MsgInvalidInteger = "marshal.invalid_integer"
	MsgInvalidNumber  = "marshal.invalid_number"
	MsgInvalidBoolean = "marshal.invalid_boolean"
	MsgInvalidString  = "marshal.invalid_string"
	MsgInvalidUUID    = "marshal.invalid_uuid"
	MsgInvalidEmail   = "marshal.invalid_email"
	MsgInvalidURL     = "marshal.invalid_url"
	MsgInvalidSlug    = "marshal.invalid_slug"
	MsgInvalidValue   = "marshal.invalid_value"
	MsgInvalidChoice  = "marshal.invalid_choice"
	MsgDateTimeFormat = "marshal.datetime_format"
	MsgDateFormat     = "marshal.date_format"
	MsgTimeFormat     = "marshal.time_format"
	MsgMaxLength      = "marshal.max_length"
	MsgMinLength      = "marshal.min_length"
	MsgMinValue       = "marshal.min_value"
	MsgMaxValue       = "marshal.max_value"
	MsgDoesNotExist   = "marshal.does_not_exist"
	MsgUnique         = "marshal.unique"
)

var defaultMessages = map[string]string{
	MsgRequired:       "This field is required.",
	MsgNull:           "This field may not be null.",
	MsgBlank:          "This field may not be blank.",
	MsgInvalidInteger: "A valid integer is required.",
	MsgInvalidNumber:  "A valid number is required.",
	MsgInvalidBoolean: "Must be a valid boolean.",
	MsgInvalidString:  "Not a valid string.",
	MsgInvalidUUID:    "Must be a valid UUID.",
	MsgInvalidEmail:   "Enter a valid email address.",
	MsgInvalidURL:     "Enter a valid URL.",
	MsgInvalidSlug:    "Enter a valid slug.",
	MsgInvalidValue:   "Enter a valid value.",
	MsgInvalidChoice:  "%q is not a valid choice.",
	MsgDateTimeFormat: "Datetime has wrong format.",
	MsgDateFormat:     "Date has wrong format.",
	MsgTimeFormat:     "Time has wrong format.",
	MsgMaxLength:      "Ensure this field has no more than %v characters.",
	MsgMinLength:      "Ensure this field has at least %v characters.",
	MsgMinValue:       "Ensure this value is greater than or equal to %v.",
	MsgMaxValue:       "Ensure this value is less than or equal to %v.",
	MsgDoesNotExist:   "Invalid pk %q - object does not exist.",
	MsgUnique:         "%s with this %s already exists.",
}

// Translator resolves a message key for a locale.
type Translator interface {
	Translate(locale, key string, params ...any) (string, error)
}

// MissingTranslationHandler picks the text used when a translator is absent
// or fails. fallback is the default English text.
type MissingTranslationHandler func(locale, key, fallback string, err error) string

// ErrMissingTranslator is passed to the missing handler when no translator
// is configured.
var ErrMissingTranslator = errors.New("marshal: translator not configured")

// Message is a keyed validation failure. Error renders the default text.
type Message struct {
	Key    string
	Params []any
}

func newMessage(key string, params ...any) *Message {
	return &Message{Key: key, Params: params}
}

func (m *Message) Error() string {
	format, ok := defaultMessages[m.Key]
	if !ok {
		return m.Key
	}
	if len(m.Params) == 0 {
		return format
	}
	return fmt.Sprintf(format, m.Params...)
}

// localizer turns decode failures into user-facing text.
type localizer struct {
	locale     string
	translator Translator
	onMissing  MissingTranslationHandler
}

func (l localizer) text(err error) string {
	var msg *Message
	if !errors.As(err, &msg) {
		return err.Error()
	}
	fallback := msg.Error()
	if l.translator == nil {
		if l.onMissing != nil {
			return l.onMissing(l.locale, msg.Key, fallback, ErrMissingTranslator)
		}
		return fallback
	}
	out, terr := l.translator.Translate(l.locale, msg.Key, msg.Params...)
	if terr == nil && strings.TrimSpace(out) != "" {
		return out
	}
	if l.onMissing != nil {
		return l.onMissing(l.locale, msg.Key, fallback, terr)
	}
	return fallback
}

func (l localizer) add(verr *ValidationError, field string, err error) {
	verr.Add(field, l.text(err))
}
