package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"barecourier/internal/types"
)

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the domain tags:
//
//	notification_category  a known types.Category
//	is_timezone            an IANA zone name
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator. Field names in errors follow the json tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "notification_category", func(fl validator.FieldLevel) bool {
		return types.Category(fl.Field().String()).Valid()
	})
	mustRegister(v, "is_timezone", func(fl validator.FieldLevel) bool {
		tz := fl.Field().String()
		if tz == "" || tz == "Local" {
			return false
		}
		_, err := time.LoadLocation(tz)
		return err == nil
	})

	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %s validation: %v", tag, err))
	}
}

// ValidateStruct checks s against its validate tags. Failures return an
// *types.AppError whose code reflects the first failed field and whose
// details carry every failure under "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		if v.logger != nil {
			v.logger.Error("validator misuse", "error", err)
		}
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: messageFor(fe),
		})
	}

	first := fieldErrs[0]
	return types.NewAppError(codeForTag(first.Tag()), out[0].Message, nil).
		WithDetails(map[string]any{"validation_errors": out})
}

func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "required":
		return types.ErrCodeValidationMissingField
	case "notification_category":
		return types.ErrCodeValidationInvalidCategory
	case "is_timezone":
		return types.ErrCodeValidationInvalidTimezone
	case "uuid":
		return types.ErrCodeValidationInvalidID
	default:
		return types.ErrCodeValidationInvalidBody
	}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "notification_category":
		return fmt.Sprintf("%s is not a known category: %v", fe.Field(), fe.Value())
	case "is_timezone":
		return fmt.Sprintf("%s is not a valid IANA timezone: %v", fe.Field(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "url":
		return fe.Field() + " must be a valid URL"
	case "uuid":
		return fmt.Sprintf("%s must be a UUID: %v", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
