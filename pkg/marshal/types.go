package marshal

import internal "github.com/goliatone/go-modelgen/internal/marshal"

type (
	// Builder derives marshallers from model descriptors.
	Builder            = internal.Builder
	Marshaller         = internal.Marshaller
	FieldInfo          = internal.FieldInfo
	Rule               = internal.Rule
	Kind               = internal.Kind
	Group              = internal.Group
	FieldValidator     = internal.FieldValidator
	UniqueCheck        = internal.UniqueCheck
	TypeTable          = internal.TypeTable
	Config             = internal.Config
	Proxy              = internal.Proxy
	Validator          = internal.Validator
	ValidateFunc       = internal.ValidateFunc
	Record             = internal.Record
	Entry              = internal.Entry
	Store              = internal.Store
	DecodeOption       = internal.DecodeOption
	PrefetchTree       = internal.PrefetchTree
	PrefetchBranch     = internal.PrefetchBranch
	PrefetchKind       = internal.PrefetchKind
	Cache              = internal.Cache
	ConfigurationError = internal.ConfigurationError
	ValidationError    = internal.ValidationError
	Message            = internal.Message
	Translator         = internal.Translator

	MissingTranslationHandler = internal.MissingTranslationHandler
)

const (
	KindInteger  = internal.KindInteger
	KindFloat    = internal.KindFloat
	KindDecimal  = internal.KindDecimal
	KindString   = internal.KindString
	KindEmail    = internal.KindEmail
	KindURL      = internal.KindURL
	KindSlug     = internal.KindSlug
	KindUUID     = internal.KindUUID
	KindBoolean  = internal.KindBoolean
	KindDateTime = internal.KindDateTime
	KindDate     = internal.KindDate
	KindTime     = internal.KindTime
	KindJSON     = internal.KindJSON
	KindChoice   = internal.KindChoice
	KindNested   = internal.KindNested
	KindUnknown  = internal.KindUnknown
)

const (
	GroupConcrete = internal.GroupConcrete
	GroupProxy    = internal.GroupProxy
	GroupRelation = internal.GroupRelation
	GroupComputed = internal.GroupComputed
	GroupPrefetch = internal.GroupPrefetch
)

const (
	PrefetchField    = internal.PrefetchField
	PrefetchSiblings = internal.PrefetchSiblings
	PrefetchNested   = internal.PrefetchNested
)

// Validation message keys passed to a Translator.
const (
	MsgRequired       = internal.MsgRequired
	MsgNull           = internal.MsgNull
	MsgBlank          = internal.MsgBlank
	MsgInvalidInteger = internal.MsgInvalidInteger
	MsgInvalidNumber  = internal.MsgInvalidNumber
	MsgInvalidBoolean = internal.MsgInvalidBoolean
	MsgInvalidString  = internal.MsgInvalidString
	MsgInvalidUUID    = internal.MsgInvalidUUID
	MsgInvalidEmail   = internal.MsgInvalidEmail
	MsgInvalidURL     = internal.MsgInvalidURL
	MsgInvalidSlug    = internal.MsgInvalidSlug
	MsgInvalidValue   = internal.MsgInvalidValue
	MsgInvalidChoice  = internal.MsgInvalidChoice
	MsgDateTimeFormat = internal.MsgDateTimeFormat
	MsgDateFormat     = internal.MsgDateFormat
	MsgTimeFormat     = internal.MsgTimeFormat
	MsgMaxLength      = internal.MsgMaxLength
	MsgMinLength      = internal.MsgMinLength
	MsgMinValue       = internal.MsgMinValue
	MsgMaxValue       = internal.MsgMaxValue
	MsgDoesNotExist   = internal.MsgDoesNotExist
	MsgUnique         = internal.MsgUnique
)

// NonFieldErrorsKey is the error bucket for failures not tied to one field.
const NonFieldErrorsKey = internal.NonFieldErrorsKey

var (
	ErrConfiguration = internal.ErrConfiguration
	ErrNotFound      = internal.ErrNotFound

	ErrMissingTranslator = internal.ErrMissingTranslator
)

var (
	NewValidator       = internal.NewValidator
	NewFieldError      = internal.NewFieldError
	NewNonFieldError   = internal.NewNonFieldError
	WithInstance       = internal.WithInstance
	Partial            = internal.Partial
	WithLocale         = internal.WithLocale
	PrefetchOne        = internal.PrefetchOne
	PrefetchList       = internal.PrefetchList
	PrefetchMap        = internal.PrefetchMap
	Branch             = internal.Branch
	ParsePrefetch      = internal.ParsePrefetch
	ParsePrefetchSpecs = internal.ParsePrefetchSpecs
	ParsePrefetchYAML  = internal.ParsePrefetchYAML
	StandardKind       = internal.StandardKind
	Key                = internal.Key
)
