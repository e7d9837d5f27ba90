// Package validate runs the field rules written as `validate` struct tags on the service
// inputs, and reports the first failure as an apperr validation error naming the field.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/matt-steen/taskflow/pkg/apperr"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// These constants bound the free-text fields. The struct tags repeat them.
const (
	MaxNameLength        = 50
	MaxDescriptionLength = 255
	MaxNoteLength        = 4000
	MinPasswordLength    = 8
	MaxPasswordLength    = 10
)

var (
	acronymPattern  = regexp.MustCompile(`^[A-Za-z0-9 ]{1,50}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,50}$`)
	groupPattern    = regexp.MustCompile(`^[A-Za-z0-9_]{1,50}$`)
	colorPattern    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	letterPattern   = regexp.MustCompile(`[A-Za-z]`)
	digitPattern    = regexp.MustCompile(`[0-9]`)
	specialPattern  = regexp.MustCompile(`[^A-Za-z0-9\s]`)
)

var checker = newChecker()

func newChecker() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(jsonName)

	patterns := map[string]*regexp.Regexp{
		"acronym":   acronymPattern,
		"username":  usernamePattern,
		"groupname": groupPattern,
		"rgbcolor":  colorPattern,
	}

	for tag, pattern := range patterns {
		pattern := pattern
		mustRegister(v, tag, func(fl validator.FieldLevel) bool {
			return pattern.MatchString(fl.Field().String())
		})
	}

	mustRegister(v, "password", isPassword)
	mustRegister(v, "gtedate", isOnOrAfter)

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("error registering validation %s: %s", tag, err))
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}

	return name
}

// isPassword wants 8 to 10 characters with at least one letter, one digit and one special
// character.
func isPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()

	n := utf8.RuneCountInString(s)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return false
	}

	return letterPattern.MatchString(s) && digitPattern.MatchString(s) && specialPattern.MatchString(s)
}

// isOnOrAfter compares two DateLayout dates; the param names the start field. Unparsable
// dates pass here and fail on their datetime tag.
func isOnOrAfter(fl validator.FieldLevel) bool {
	other, _, _, ok := fl.GetStructFieldOK2()
	if !ok {
		return false
	}

	end, err := time.Parse(DateLayout, fl.Field().String())
	if err != nil {
		return true
	}

	start, err := time.Parse(DateLayout, other.String())
	if err != nil {
		return true
	}

	return !end.Before(start)
}

// Struct checks the validate tags of s.
func Struct(s interface{}) error {
	err := checker.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Internal(err)
	}

	return describe(fieldErrs[0], fieldErrs[0].Field(), reflect.TypeOf(s))
}

// Var checks one value against tag, naming it field in the error.
func Var(field string, value interface{}, tag string) error {
	err := checker.Var(value, tag)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Internal(err)
	}

	return describe(fieldErrs[0], field, nil)
}

func describe(fe validator.FieldError, field string, owner reflect.Type) error {
	switch fe.Tag() {
	case "required":
		return apperr.Validation("%s is required", field)
	case "max":
		return apperr.Validation("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return apperr.Validation("%s must be at least %s", field, fe.Param())
	case "datetime":
		return apperr.Validation("%s must be a date formatted as YYYY-MM-DD", field)
	case "gtedate":
		return apperr.Validation("%s must not be before %s", field, fieldName(owner, fe.Param()))
	case "acronym":
		return apperr.Validation("%s may only contain letters, digits and spaces (max %d)", field, MaxNameLength)
	case "username":
		return apperr.Validation("%s may only contain letters, digits, '.', '_' and '-' (max %d)", field, MaxNameLength)
	case "groupname":
		return apperr.Validation("group '%v' may only contain letters, digits and '_' (max %d)", fe.Value(), MaxNameLength)
	case "password":
		return apperr.Validation("%s must be %d to %d characters with a letter, a digit and a special character",
			field, MinPasswordLength, MaxPasswordLength)
	case "email":
		return apperr.Validation("%s '%v' is not a valid address", field, fe.Value())
	case "rgbcolor":
		return apperr.Validation("%s '%v' must look like #RRGGBB", field, fe.Value())
	case "oneof":
		return apperr.Validation("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return apperr.Validation("%s is invalid", field)
	}
}

// fieldName returns the json name of the Go field goName of owner, or goName itself.
func fieldName(owner reflect.Type, goName string) string {
	for owner != nil && owner.Kind() == reflect.Ptr {
		owner = owner.Elem()
	}

	if owner == nil || owner.Kind() != reflect.Struct {
		return goName
	}

	f, ok := owner.FieldByName(goName)
	if !ok {
		return goName
	}

	if name := jsonName(f); name != "" {
		return name
	}

	return goName
}

// Date parses a calendar date that already passed its datetime tag.
func Date(s string) time.Time {
	d, _ := time.Parse(DateLayout, s)

	return d
}

// Names trims a list of names and drops repeats, keeping the first occurrence order.
func Names(names []string) []string {
	seen := map[string]bool{}
	out := []string{}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	return out
}
