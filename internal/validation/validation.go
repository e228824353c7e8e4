// Package validation checks request payloads and reports field-keyed messages.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
			return types.TaskStatus(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("task_priority", func(fl validator.FieldLevel) bool {
			return types.TaskPriority(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("member_role", func(fl validator.FieldLevel) bool {
			return types.Role(fl.Field().String()).IsMemberRole()
		})
		// An empty date is allowed; it clears the field on update.
		_ = validate.RegisterValidation("date", func(fl validator.FieldLevel) bool {
			if fl.Field().String() == "" {
				return true
			}
			_, err := ParseDate(fl.Field().String())
			return err == nil
		})
		// bcrypt reads at most 72 bytes, so password bounds are in bytes, not runes.
		_ = validate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
			limit, err := strconv.Atoi(fl.Param())
			return err == nil && len(fl.Field().String()) <= limit
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Struct validates v and converts failures into an apperr validation error.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal(err)
	}

	fields := apperr.FieldErrors{}
	for _, fe := range verrs {
		fields.Add(fe.Field(), message(fe))
	}
	return apperr.Validation("", fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("must be at most %s bytes", fe.Param())
	case "task_status":
		return "must be one of TODO, IN_PROGRESS, DONE, CANCELLED"
	case "task_priority":
		return "must be one of LOW, MEDIUM, HIGH, URGENT"
	case "member_role":
		return "must be one of ADMIN, CONTRIBUTOR"
	case "date":
		return "must be a date (YYYY-MM-DD or RFC3339)"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// ParseDate accepts YYYY-MM-DD or RFC3339 timestamps.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// DecodeError reports a body that could not be bound, e.g. a non-array assignee list.
func DecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.InvalidField(typeErr.Field, fmt.Sprintf("must be of type %s", jsonKind(typeErr.Type)))
	}
	return apperr.Validation("Invalid request body", apperr.FieldErrors{"body": {"malformed JSON"}})
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Float64:
		return "number"
	case reflect.Ptr:
		return jsonKind(t.Elem())
	default:
		return "object"
	}
}
