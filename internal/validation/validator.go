// Package validation checks canonical climb records against the import rules
// using go-playground/validator with a handful of climb-specific tags.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ignite/climblog/internal/domain"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New()

		// Use JSON tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})

		must(v.RegisterValidation("notblank", notBlank))
		must(v.RegisterValidation("climbdate", climbDate))
		must(v.RegisterValidation("nonnegint", nonNegativeInt))
		must(v.RegisterValidation("ratingrange", ratingRange))
		must(v.RegisterValidation("positivenum", positiveNumber))
		must(v.RegisterValidation("climbduration", positiveDuration))
		must(v.RegisterValidation("isnumber", isNumber))

		validate = v
	})
	return validate
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// ValidateClimb returns the rule violations of c in field order. A nil result
// means the record is importable. The record is never modified.
func ValidateClimb(c domain.CsvClimb) []string {
	err := instance().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, message(fe))
	}
	return msgs
}

//nolint:gocyclo // one arm per registered tag
func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "notblank":
		return field + " is required"
	case "climbdate":
		return field + " must be a valid date in YYYY-MM-DD format"
	case "oneof":
		allowed := strings.ReplaceAll(fe.Param(), " ", ", ")
		return fmt.Sprintf("%s must be one of: %s (got %q)", field, allowed, fmt.Sprint(fe.Value()))
	case "nonnegint":
		return field + " must be a non-negative integer"
	case "ratingrange":
		return field + " must be between 1 and 5"
	case "positivenum":
		return field + " must be a positive number"
	case "climbduration":
		return field + " must be a positive number of seconds or HH:MM:SS"
	case "isnumber":
		return field + " must be a number if present"
	default:
		return field + " is invalid"
	}
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// climbDate requires YYYY-MM-DD and a calendar date that formats back to the
// same text, so 2023-02-30 is rejected rather than rolled into March.
func climbDate(fl validator.FieldLevel) bool {
	return IsCalendarDate(fl.Field().String())
}

func nonNegativeInt(fl validator.FieldLevel) bool {
	n, ok := domain.Scalar(fl.Field().String()).Int()
	return ok && n >= 0
}

func ratingRange(fl validator.FieldLevel) bool {
	f, ok := domain.Scalar(fl.Field().String()).Float()
	return ok && f >= 1 && f <= 5
}

func positiveNumber(fl validator.FieldLevel) bool {
	f, ok := domain.Scalar(fl.Field().String()).Float()
	return ok && f > 0
}

func positiveDuration(fl validator.FieldLevel) bool {
	secs, ok := ParseDurationSeconds(fl.Field().String())
	return ok && secs > 0
}

func isNumber(fl validator.FieldLevel) bool {
	_, ok := domain.Scalar(fl.Field().String()).Float()
	return ok
}

// IsCalendarDate reports whether s is a real date written as YYYY-MM-DD.
func IsCalendarDate(s string) bool {
	if len(s) != len(domain.DateLayout) || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return false
	}
	return t.Format(domain.DateLayout) == s
}

// ParseDurationSeconds reads a duration given as raw seconds ("5400", "90.5")
// or as HH:MM:SS / MM:SS.
func ParseDurationSeconds(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ":") {
		return domain.Scalar(s).Float()
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var total float64
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		// minutes and seconds stay below 60 once a larger unit is present
		if i > 0 && n >= 60 {
			return 0, false
		}
		total = total*60 + float64(n)
	}
	return total, true
}
