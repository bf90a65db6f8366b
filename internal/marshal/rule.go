package marshal

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Kind names the wire-level serialization behaviour of a field.
type Kind string

const (
	KindInteger  Kind = "integer"
	KindFloat    Kind = "float"
	KindDecimal  Kind = "decimal"
	KindString   Kind = "string"
	KindEmail    Kind = "email"
	KindURL      Kind = "url"
	KindSlug     Kind = "slug"
	KindUUID     Kind = "uuid"
	KindBoolean  Kind = "boolean"
	KindDateTime Kind = "datetime"
	KindDate     Kind = "date"
	KindTime     Kind = "time"
	KindJSON     Kind = "json"
	KindChoice   Kind = "choice"
	KindNested   Kind = "nested"
	KindUnknown  Kind = "unknown"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// Rule is the serialization rule attached to one external field.
type Rule struct {
	Kind       Kind
	Required   bool
	AllowNull  bool
	AllowBlank bool
	ReadOnly   bool
	Source     string
	MaxLength  int
	Choices    []any
	Validators []FieldValidator
	Unique     *UniqueCheck
	Nested     *Marshaller
}

// FieldValidator is a named single-value check run after coercion.
type FieldValidator struct {
	Name  string
	Check func(value any) error
}

// UniqueCheck binds a uniqueness rule to the collection owning the field.
// Exclude is the instance path holding the key of the row being updated.
type UniqueCheck struct {
	Model   *schema.Model
	Column  string
	Exclude string
}

// IsString reports whether the rule produces string values.
func (r Rule) IsString() bool {
	switch r.Kind {
	case KindString, KindEmail, KindURL, KindSlug:
		return true
	default:
		return false
	}
}

func (r Rule) validatorNames() []string {
	names := make([]string, 0, len(r.Validators))
	for _, v := range r.Validators {
		names = append(names, v.Name)
	}
	return names
}

// coerce converts a raw wire value into the rule's internal representation.
func (r Rule) coerce(value any) (any, error) {
	switch r.Kind {
	case KindInteger:
		n, ok := toInteger(value)
		if !ok {
			return nil, newMessage(MsgInvalidInteger)
		}
		return n, nil
	case KindFloat:
		if _, ok := value.(bool); ok {
			return nil, newMessage(MsgInvalidNumber)
		}
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, newMessage(MsgInvalidNumber)
		}
		return f, nil
	case KindDecimal:
		raw, err := cast.ToStringE(value)
		if err != nil {
			return nil, newMessage(MsgInvalidNumber)
		}
		raw = strings.TrimSpace(raw)
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return nil, newMessage(MsgInvalidNumber)
		}
		return raw, nil
	case KindString, KindEmail, KindURL, KindSlug:
		return r.coerceString(value)
	case KindUUID:
		raw, err := cast.ToStringE(value)
		if err != nil {
			return nil, newMessage(MsgInvalidUUID)
		}
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, newMessage(MsgInvalidUUID)
		}
		return id.String(), nil
	case KindBoolean:
		b, ok := toBoolean(value)
		if !ok {
			return nil, newMessage(MsgInvalidBoolean)
		}
		return b, nil
	case KindDateTime:
		t, err := cast.ToTimeE(value)
		if err != nil {
			return nil, newMessage(MsgDateTimeFormat)
		}
		return t, nil
	case KindDate:
		return parseLayout(value, dateLayout, MsgDateFormat)
	case KindTime:
		return parseLayout(value, timeLayout, MsgTimeFormat)
	case KindChoice:
		for _, choice := range r.Choices {
			if fmt.Sprint(choice) == fmt.Sprint(value) {
				return choice, nil
			}
		}
		return nil, newMessage(MsgInvalidChoice, fmt.Sprint(value))
	default:
		return value, nil
	}
}

func (r Rule) coerceString(value any) (any, error) {
	switch value.(type) {
	case map[string]any, Record, []any:
		return nil, newMessage(MsgInvalidString)
	}
	raw, err := cast.ToStringE(value)
	if err != nil {
		return nil, newMessage(MsgInvalidString)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if r.AllowBlank {
			return raw, nil
		}
		return nil, newMessage(MsgBlank)
	}
	switch r.Kind {
	case KindEmail:
		if _, err := mail.ParseAddress(raw); err != nil {
			return nil, newMessage(MsgInvalidEmail)
		}
	case KindURL:
		if u, err := url.ParseRequestURI(raw); err != nil || u.Host == "" {
			return nil, newMessage(MsgInvalidURL)
		}
	case KindSlug:
		if !slugPattern.MatchString(raw) {
			return nil, newMessage(MsgInvalidSlug)
		}
	}
	if r.MaxLength > 0 && len([]rune(raw)) > r.MaxLength {
		return nil, newMessage(MsgMaxLength, r.MaxLength)
	}
	return raw, nil
}

// toInteger accepts integer numbers, integral floats and base-10 strings.
func toInteger(value any) (int64, bool) {
	switch v := value.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case float64:
		if math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case float32:
		return toInteger(float64(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := cast.ToInt64E(v)
		return n, err == nil
	}
	return 0, false
}

// toBoolean accepts booleans, the numbers 0 and 1 and their string forms.
func toBoolean(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
		return false, false
	}
	n, ok := toInteger(value)
	if !ok || (n != 0 && n != 1) {
		return false, false
	}
	return n == 1, true
}

func parseLayout(value any, layout, key string) (any, error) {
	if t, ok := value.(time.Time); ok {
		return t, nil
	}
	raw, err := cast.ToStringE(value)
	if err != nil {
		return nil, newMessage(key)
	}
	t, err := time.Parse(layout, strings.TrimSpace(raw))
	if err != nil {
		return nil, newMessage(key)
	}
	return t, nil
}

// represent converts an internal value into its wire form.
func (r Rule) represent(value any) any {
	if value == nil {
		return nil
	}
	switch r.Kind {
	case KindInteger:
		if n, err := cast.ToInt64E(value); err == nil {
			return n
		}
	case KindFloat:
		if f, err := cast.ToFloat64E(value); err == nil {
			return f
		}
	case KindDecimal, KindString, KindEmail, KindURL, KindSlug, KindUUID:
		if s, err := cast.ToStringE(value); err == nil {
			return s
		}
	case KindBoolean:
		if b, err := cast.ToBoolE(value); err == nil {
			return b
		}
	case KindDateTime:
		if t, ok := value.(time.Time); ok {
			return t.Format(time.RFC3339Nano)
		}
	case KindDate:
		if t, ok := value.(time.Time); ok {
			return t.Format(dateLayout)
		}
	case KindTime:
		if t, ok := value.(time.Time); ok {
			return t.Format(timeLayout)
		}
	case KindNested:
		if r.Nested == nil {
			return value
		}
		if nested, ok := asMap(value); ok {
			return r.Nested.Encode(Record(nested))
		}
	}
	return value
}

// parseValidator resolves a declared validator name such as "min:3" or
// "email" into a FieldValidator.
func parseValidator(spec string) (FieldValidator, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
	name = strings.TrimSpace(name)
	arg = strings.TrimSpace(arg)

	number := func() (float64, error) {
		n, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return 0, fmt.Errorf("validator %q expects a numeric argument", spec)
		}
		return n, nil
	}

	switch name {
	case "min", "max":
		limit, err := number()
		if err != nil {
			return FieldValidator{}, err
		}
		return FieldValidator{Name: spec, Check: func(value any) error {
			n, err := cast.ToFloat64E(value)
			if err != nil {
				return nil
			}
			if name == "min" && n < limit {
				return newMessage(MsgMinValue, arg)
			}
			if name == "max" && n > limit {
				return newMessage(MsgMaxValue, arg)
			}
			return nil
		}}, nil
	case "min_length", "max_length":
		limit, err := number()
		if err != nil {
			return FieldValidator{}, err
		}
		return FieldValidator{Name: spec, Check: func(value any) error {
			s, ok := value.(string)
			if !ok {
				return nil
			}
			length := float64(len([]rune(s)))
			if name == "min_length" && length < limit {
				return newMessage(MsgMinLength, arg)
			}
			if name == "max_length" && length > limit {
				return newMessage(MsgMaxLength, arg)
			}
			return nil
		}}, nil
	case "regex":
		pattern, err := regexp.Compile(arg)
		if err != nil {
			return FieldValidator{}, fmt.Errorf("validator %q: %w", spec, err)
		}
		return FieldValidator{Name: spec, Check: func(value any) error {
			s, ok := value.(string)
			if ok && !pattern.MatchString(s) {
				return newMessage(MsgInvalidValue)
			}
			return nil
		}}, nil
	case "email":
		return FieldValidator{Name: spec, Check: func(value any) error {
			s, ok := value.(string)
			if !ok {
				return nil
			}
			if _, err := mail.ParseAddress(s); err != nil {
				return newMessage(MsgInvalidEmail)
			}
			return nil
		}}, nil
	case "slug":
		return FieldValidator{Name: spec, Check: func(value any) error {
			s, ok := value.(string)
			if ok && !slugPattern.MatchString(s) {
				return newMessage(MsgInvalidSlug)
			}
			return nil
		}}, nil
	default:
		return FieldValidator{}, fmt.Errorf("unknown validator %q", spec)
	}
}
