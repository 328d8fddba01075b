package middleware

import (
	"errors"
	"strings"

	"github.com/BizNestAI/bizzy-sub000/internal/domain/calendar"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the calendar tags on gin's binding validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("binding validator is not go-playground/validator")
	}
	return registerOn(v)
}

func registerOn(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"not_empty":       validateNotEmpty,
		"calendar_module": validateModule,
		"calendar_type":   validateEventType,
		"view_mode":       validateViewMode,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// Custom validators
func validateNotEmpty(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return len(strings.TrimSpace(value)) > 0
}

func validateModule(fl validator.FieldLevel) bool {
	return calendar.IsValidModule(calendar.Module(fl.Field().String()))
}

func validateEventType(fl validator.FieldLevel) bool {
	return calendar.IsValidEventType(calendar.EventType(fl.Field().String()))
}

func validateViewMode(fl validator.FieldLevel) bool {
	return calendar.IsValidViewMode(calendar.ViewMode(fl.Field().String()))
}

// ValidationDetails flattens validator errors into field -> message.
// It returns nil for anything that is not a validation failure.
func ValidationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[strings.ToLower(fe.Field())] = formatValidationError(fe)
	}
	return details
}

// Helper function to format validation errors
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "value is too short"
	case "max":
		return "value is too long"
	case "not_empty":
		return "this field cannot be empty"
	case "calendar_module":
		return "must be one of finance, tax, marketing, investments, ops"
	case "calendar_type":
		return "must be one of job, lead, deadline, invoice, meeting, post, task"
	case "view_mode":
		return "must be one of week, month, agenda"
	default:
		return "invalid value"
	}
}
