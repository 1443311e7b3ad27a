package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"socialnet/internal/models"
)

const (
	minBirthYear = 1900
	// Accounts must be born strictly before this year.
	cutoffYear = 2020
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct validation and reports the first failing field.
func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		return invalid("%s failed on '%s'", field, fe.Tag())
	}
	return invalid("invalid input")
}

func checkID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("%s must be a valid id", field)
	}
	return nil
}

// validBirthDate rejects impossible dates such as 31/02 as well as years
// outside [minBirthYear, cutoffYear).
func validBirthDate(b models.BirthDate) bool {
	if b.Year < minBirthYear || b.Year >= cutoffYear || b.Month < 1 || b.Month > 12 || b.Day < 1 {
		return false
	}
	t := time.Date(b.Year, time.Month(b.Month), b.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == b.Day && int(t.Month()) == b.Month
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func fullName(n models.Name) string {
	return fmt.Sprintf("%s %s", n.First, n.Last)
}
