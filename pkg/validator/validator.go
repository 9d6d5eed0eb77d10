// Package validator wraps go-playground/validator with JSON field naming and
// human readable failure messages for request payloads.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// messages renders a failed tag. Templates take the field name and, when they
// contain a second verb, the tag parameter.
var messages = map[string]string{
	"required": "%s is required",
	"notblank": "%s is required",
	"email":    "%s must be a valid email address",
	"min":      "%s must be at least %s characters",
	"max":      "%s must be at most %s characters",
	"oneof":    "%s must be one of [%s]",
}

// FieldError describes one rule a payload field did not satisfy.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Message renders the failure as a sentence, e.g. "password is required".
func (f FieldError) Message() string {
	field := strings.ToLower(strings.ReplaceAll(f.Field, "_", " "))
	if field == "" {
		field = "field"
	}

	tmpl, ok := messages[f.Tag]
	switch {
	case !ok && f.Param != "":
		return fmt.Sprintf("%s failed validation: %s=%s", field, f.Tag, f.Param)
	case !ok:
		return fmt.Sprintf("%s failed validation: %s", field, f.Tag)
	case strings.Count(tmpl, "%s") == 2:
		return fmt.Sprintf(tmpl, field, f.Param)
	default:
		return fmt.Sprintf(tmpl, field)
	}
}

// FieldErrors is returned by Struct when one or more rules fail.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation failed"
	}
	out := make([]string, len(fe))
	for i, f := range fe {
		out[i] = f.Message()
	}
	return strings.Join(out, "; ")
}

// Validator validates structs tagged with `validate:"..."`.
type Validator struct {
	engine *validator.Validate
}

// New returns a Validator that reports JSON field names and knows the
// notblank rule.
func New() *Validator {
	engine := validator.New(validator.WithRequiredStructEnabled())
	engine.RegisterTagNameFunc(jsonFieldName)
	if err := engine.RegisterValidation("notblank", notBlank); err != nil {
		panic(fmt.Sprintf("validator: register notblank: %v", err))
	}
	return &Validator{engine: engine}
}

// Struct validates s. Rule failures come back as FieldErrors; anything else,
// such as passing a non-struct, is returned unchanged.
func (v *Validator) Struct(s any) error {
	err := v.engine.Struct(s)
	if err == nil {
		return nil
	}

	var raw validator.ValidationErrors
	if !errors.As(err, &raw) {
		return err
	}
	failures := make(FieldErrors, len(raw))
	for i, fe := range raw {
		failures[i] = FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
	}
	return failures
}

// Register adds a custom rule.
func (v *Validator) Register(tag string, fn validator.Func) error {
	return v.engine.RegisterValidation(tag, fn)
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
)

// Default returns the process-wide Validator.
func Default() *Validator {
	defaultOnce.Do(func() { defaultV = New() })
	return defaultV
}

// ValidateStruct validates s with the Default validator.
func ValidateStruct(s any) error {
	return Default().Struct(s)
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(field.String()) != ""
}
