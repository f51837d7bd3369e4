package order

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Additional-Code/workorders/pkg/errorbank"
)

// Input carries the editable fields shared by create and update.
type Input struct {
	CustomerID      int64  `json:"customer_id" validate:"required,gt=0"`
	DatabaseID      int64  `json:"database_id" validate:"required,gt=0"`
	ExternalRef     string `json:"external_ref" validate:"max=255"`
	ListDescription string `json:"list_description" validate:"required"`
	DesiredQuantity *int64 `json:"desired_quantity" validate:"required,gte=0"`
}

// UpdateInput adds the fulfillment count, which only updates may set.
// A nil ActualQuantity clears the stored value.
type UpdateInput struct {
	Input
	ActualQuantity *int64 `json:"actual_quantity" validate:"omitempty,gte=0"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (in *Input) normalize() {
	in.ExternalRef = strings.TrimSpace(in.ExternalRef)
	in.ListDescription = strings.TrimSpace(in.ListDescription)
}

// externalRef maps a blank reference to NULL.
func (in *Input) externalRef() *string {
	if in.ExternalRef == "" {
		return nil
	}
	ref := in.ExternalRef
	return &ref
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errorbank.Validation("invalid order input", errorbank.WithCause(err))
	}

	details := make(map[string]any, len(fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describeRule(fe)
		fields = append(fields, fe.Field())
	}
	return errorbank.Validation("invalid order input: "+strings.Join(fields, ", "), errorbank.WithDetails(details))
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}
