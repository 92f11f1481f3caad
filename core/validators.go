package core

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const requiredText = "this field is required"

// customRule is a validation tag shared by every domain package.
type customRule struct {
	tag  string
	text string
	fn   validator.Func
}

var customRules = []customRule{
	{tag: "notblank", text: "this field cannot be blank", fn: notBlank},
	{tag: "filename", text: "{0} must be a plain file name", fn: plainFileName},
}

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	locale := en.New()
	translator, _ := ut.New(locale, locale).GetTranslator(locale.Locale())
	return translator
}

// InitValidators registers the shared tags and their messages on validate.
// Field errors are reported under their JSON names.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)
	validate.RegisterTagNameFunc(jsonFieldName)

	for _, rule := range customRules {
		_ = validate.RegisterValidation(rule.tag, rule.fn)
		RegisterCustomTranslation(validate, translator, rule.tag, rule.text)
	}
	for _, tag := range []string{"required", "required_with"} {
		RegisterCustomTranslation(validate, translator, tag, requiredText, true)
	}
}

// RegisterCustomTranslation sets the message of a validation tag; {0} is the field name.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	replace := len(override) > 0 && override[0]
	register := func(t ut.Translator) error {
		return t.Add(tag, text, replace)
	}
	translate := func(t ut.Translator, fe validator.FieldError) string {
		msg, err := t.T(tag, fe.Field())
		if err != nil {
			return fe.Error()
		}
		return msg
	}
	_ = validate.RegisterTranslation(tag, translator, register, translate)
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func notBlank(fl validator.FieldLevel) bool {
	fld := fl.Field()
	return fld.Kind() != reflect.String || strings.TrimSpace(fld.String()) != ""
}

// plainFileName rejects names that would escape the storage directory.
func plainFileName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	switch name {
	case ".", "..":
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}
