package binder

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	isoCodeRE = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{1,8})*$`)
)

// isoCodeValidator accepts BCP 47 style language tags such as "en", "fr" or
// "tpi-Latn-PG". The empty string is allowed so optional fields can be left
// out; add `required` when the code must be present.
func isoCodeValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return isoCodeRE.MatchString(value)
}
