package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	personNameTag   = "personname"
	personNameText  = "Invalid Name: Please use only letters and single spaces between words (no numbers or special characters)."
	personNameRegex = regexp.MustCompile(`^[a-zA-Z]+(?: [a-zA-Z]+)*$`)

	usernameTag   = "username"
	usernameText  = "Invalid Username: Please use only letters (A-Z, a-z). No numbers, spaces, or special characters."
	usernameRegex = regexp.MustCompile(`^[a-zA-Z]+$`)

	passwordTag   = "password"
	passwordText  = "Invalid Password: Only letters (A-Z, a-z) and numbers (0-9) are allowed. No spaces or special characters."
	passwordRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

	requiredTag  = "required"
	requiredText = "{0} is required"
)

// NewValidator instantiates the validator and its english Translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()

	// Register the english error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(personNameTag, regexValidation(personNameRegex))
	_ = validate.RegisterValidation(usernameTag, regexValidation(usernameRegex))
	_ = validate.RegisterValidation(passwordTag, regexValidation(passwordRegex))

	RegisterCustomTranslation(validate, translator, personNameTag, personNameText)
	RegisterCustomTranslation(validate, translator, usernameTag, usernameText)
	RegisterCustomTranslation(validate, translator, passwordTag, passwordText)
	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)

	return validate, translator
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
// `{0}` in text is replaced by the field name.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// regexValidation only allows strings fully matching re.
func regexValidation(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}
