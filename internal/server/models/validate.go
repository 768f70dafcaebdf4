package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate = v
	})
	return validate
}

// Validate checks the field rules of an entry. It must be called with the
// plaintext password.
func (e *Entry) Validate() error {
	return check(e)
}

// Validate checks the field rules of a group.
func (g *Group) Validate() error {
	return check(g)
}

// Validate checks the user fields. The raw password is passed separately
// because the model only ever holds the encoded value; required selects the
// create rules, where a password is mandatory.
func (u *User) Validate(rawPassword string, required bool) error {
	ve := &common.ValidationError{}
	if err := check(u); err != nil {
		var fieldErrs *common.ValidationError
		if !errors.As(err, &fieldErrs) {
			return err
		}
		ve.Violations = append(ve.Violations, fieldErrs.Violations...)
	}
	switch {
	case rawPassword == "" && required:
		ve.Add("password", "must not be blank")
	case len(rawPassword) > 72:
		ve.Add("password", "must be at most 72 bytes")
	}
	return ve.OrNil()
}

func check(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}
	ve := &common.ValidationError{}
	for _, fe := range fieldErrs {
		ve.Add(fieldPath(fe), message(fe))
	}
	return ve
}

// fieldPath drops the struct name, so "Entry.name" becomes "name" and
// "User.roles[0].name" becomes "roles[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "must not be blank"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}
