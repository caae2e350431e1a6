package rest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"slotbook/backend/internal/domain"
)

type bindingRule struct {
	tag string
	fn  validator.Func
}

var (
	registerOnce sync.Once
	bindingRules = []bindingRule{
		{tag: "clock", fn: validateClock},
		{tag: "half_hour", fn: validateHalfHour},
		{tag: "service_type", fn: validateServiceType},
	}
)

// registerValidators adds the request-level rules to gin's validator engine.
// It panics when they cannot be installed, since every request body that uses
// them would otherwise be rejected.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			panic(fmt.Sprintf("rest: unexpected binding engine %T", binding.Validator.Engine()))
		}
		if err := registerRules(v, bindingRules); err != nil {
			panic(err)
		}
	})
}

func registerRules(v *validator.Validate, rules []bindingRule) error {
	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			return fmt.Errorf("register %q validation: %w", r.tag, err)
		}
	}
	return nil
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := domain.ToMinutes(fl.Field().String())
	return err == nil
}

func validateHalfHour(fl validator.FieldLevel) bool {
	m, err := domain.ToMinutes(fl.Field().String())
	return err == nil && m%30 == 0
}

func validateServiceType(fl validator.FieldLevel) bool {
	return domain.ServiceType(fl.Field().String()).Valid()
}

// describeBindError turns the first validator failure into a client-facing
// message. Other decode failures get a generic one.
func describeBindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "clock":
		return field + " must be HH:MM"
	case "half_hour":
		return field + " must be on a 30-minute boundary"
	case "service_type":
		return field + " must be one of MEDICAL HOUSE_HELP BEAUTY FITNESS EDUCATION OTHER"
	}
	return field + " is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
