package mailer

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"eventmail/internal/types"
)

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkRequest validates the arguments of a send before any I/O happens.
func (m *Mailer) checkRequest(kind types.EmailKind, recipient *types.Recipient, event *types.EventContext) error {
	if !kind.Valid() {
		return types.NewAppError(
			types.ErrCodeValidationUnknownKind,
			fmt.Sprintf("unknown email kind %q", kind),
			nil,
		)
	}

	if recipient == nil {
		return types.NewAppError(types.ErrCodeValidationMissingField, "recipient is required", nil)
	}
	if err := m.structErr("recipient", recipient); err != nil {
		return err
	}

	if event == nil {
		if kind == types.EmailEventCancellation {
			return types.NewAppError(types.ErrCodeValidationMissingField, "event is required", nil)
		}
		return nil
	}
	return m.structErr("event", event)
}

// structErr runs struct validation and converts the first failure into an
// AppError named after prefix.field.
func (m *Mailer) structErr(prefix string, v any) error {
	err := m.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidBody, fmt.Sprintf("invalid %s", prefix), err)
	}

	fe := verrs[0]
	field := prefix + "." + fe.Field()
	details := map[string]any{"field": field, "rule": fe.Tag()}

	switch fe.Tag() {
	case "required":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			field+" is required", nil, details)
	case "email":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidEmail,
			field+" is not a valid email address", nil, details)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidBody,
			fmt.Sprintf("%s failed %q validation", field, fe.Tag()), nil, details)
	}
}
