// Package validation wires go-playground/validator with English messages keyed by JSON
// field names.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
)

var (
	requiredTag  = "required"
	requiredText = "this field is required"

	datetimeTag  = "datetime"
	datetimeText = "{0} must be a date in YYYY-MM-DD format"

	// urlOrEmptyTag lets a patch clear an optional URL with "".
	urlOrEmptyTag  = "url_or_empty"
	urlOrEmptyText = "{0} must be a valid URL"
)

type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func New() *Validator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(urlOrEmptyTag, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || validate.Var(s, "url") == nil
	})

	registerTranslation(validate, translator, datetimeTag, datetimeText, true)
	registerTranslation(validate, translator, urlOrEmptyTag, urlOrEmptyText, false)
	registerTranslation(validate, translator, requiredTag, requiredText, true)

	return &Validator{validate: validate, translator: translator}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates s and returns a *appErrors.ValidationError listing every failing field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validating")
	}
	return appErrors.NewValidationError(nil, v.FieldErrors(verrs)...)
}

// FieldErrors flattens validator errors into paths like "sections[0].title".
func (v *Validator) FieldErrors(verrs validator.ValidationErrors) []appErrors.FieldError {
	fields := make([]appErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, appErrors.FieldError{
			Field: fieldPath(fe.Namespace()),
			Error: fe.Translate(v.translator),
		})
	}
	return fields
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
