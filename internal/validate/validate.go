// Package validate configures gin's request validator: English messages,
// JSON field names and the academy's custom tags.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	hhmmTag   = "hhmm"
	hhmmText  = "{0} must be a time of day formatted HH:MM"
	hhmmRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	requiredTag  = "required"
	requiredText = "{0} is required"

	translator ut.Translator
	setupOnce  sync.Once
)

// Setup registers translations and custom validations on gin's validator.
// It is safe to call more than once.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		Register(v)
	})
}

// Register prepares v and installs the package translator.
func Register(v *validator.Validate) {
	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")

	_ = en_translations.RegisterDefaultTranslations(v, translator)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	_ = v.RegisterValidation(hhmmTag, func(fl validator.FieldLevel) bool {
		return hhmmRegex.MatchString(fl.Field().String())
	})
	registerTranslation(v, hhmmTag, hhmmText, false)
	registerTranslation(v, requiredTag, requiredText, true)
}

func registerTranslation(v *validator.Validate, tag, text string, override bool) {
	_ = v.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Var checks a single value against validator tags such as
// "required,email", using the same engine as request binding.
func Var(value interface{}, tag string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		v = fallback()
	}
	return v.Var(value, tag)
}

var fallback = sync.OnceValue(func() *validator.Validate { return validator.New() })

// ValidTime reports whether s is a HH:MM time of day.
func ValidTime(s string) bool {
	return hhmmRegex.MatchString(s)
}

// Error is a validation failure keyed by JSON field name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field builds a single-field validation error.
func Field(name, message string) *Error {
	return &Error{Fields: map[string]string{name: message}}
}

// Fields turns a binding error into a field -> message map. ok is false
// when err is not a validation failure (malformed JSON, for instance).
func Fields(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			if translator != nil {
				out[fe.Field()] = fe.Translate(translator)
			} else {
				out[fe.Field()] = fe.Error()
			}
		}
		return out, true
	}
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Fields, true
	}
	return nil, false
}
