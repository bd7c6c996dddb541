package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrorResponse describes one failed rule. FailedField uses the JSON names
// of the request, e.g. "lines[1].quantity".
type ErrorResponse struct {
	FailedField string
	Tag         string
	Value       string
}

func (e *ErrorResponse) Error() string {
	rule := e.Tag
	if e.Value != "" {
		rule += "=" + e.Value
	}
	return "field '" + e.FailedField + "' failed on '" + rule + "'"
}

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// uuid.Nil counts as missing
	validate.RegisterValidation("uuid_required", func(fl validator.FieldLevel) bool {
		if id, ok := fl.Field().Interface().(uuid.UUID); ok {
			return id != uuid.Nil
		}
		return false
	})

	validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// ValidateStruct returns every failed rule of data, or nil when it is valid.
func ValidateStruct(data interface{}) []*ErrorResponse {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []*ErrorResponse{{FailedField: "request", Tag: "struct"}}
	}
	out := make([]*ErrorResponse, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		// drop the root struct name
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out = append(out, &ErrorResponse{FailedField: field, Tag: fe.Tag(), Value: fe.Param()})
	}
	return out
}
