package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/media-taskdesk/internal/domain"
	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("trimmed_required", validateTrimmedRequired)
}

// Request validates a request DTO against its struct tags and returns the
// first failure as a *errpkg.ValidationError.
func Request(req any) error {
	if err := validate.Struct(req); err != nil {
		return toValidationError(err)
	}
	return nil
}

// Batch validates a batch request and enforces the per-request URL cap.
func Batch(req domain.BatchRequest, maxURLs int) error {
	if err := Request(req); err != nil {
		return err
	}
	if maxURLs > 0 && len(req.URLs) > maxURLs {
		return &errpkg.ValidationError{
			Field:  "urls",
			Reason: fmt.Sprintf("must contain at most %d entries, got %d", maxURLs, len(req.URLs)),
		}
	}
	return nil
}

// Required rejects empty or whitespace-only values for a single named field.
func Required(field, value string) error {
	if err := validate.Var(value, "trimmed_required"); err != nil {
		return &errpkg.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

func validateTrimmedRequired(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &errpkg.ValidationError{Reason: err.Error()}
	}

	fe := fieldErrs[0]
	return &errpkg.ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "file":
		return "must be an existing file"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
