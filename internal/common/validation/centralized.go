package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"scheduler-webhook/internal/common/errors"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CentralizedValidator provides struct-tag validation using go-playground/validator
type CentralizedValidator struct {
	validator *validator.Validate
}

// ValidationResult contains validation results with structured errors
type ValidationResult struct {
	Valid  bool
	Errors []FieldError
}

// Messages returns the human readable message of every failed field
func (r *ValidationResult) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// FieldError represents a single validation failure with context
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// NewCentralizedValidator creates a new centralized validator instance
func NewCentralizedValidator() *CentralizedValidator {
	v := validator.New()

	registerSchedulerValidators(v)

	// Report JSON names in errors so messages match what users edit
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &CentralizedValidator{
		validator: v,
	}
}

// ValidateStruct validates a struct using struct tags
func (cv *CentralizedValidator) ValidateStruct(s interface{}) error {
	result := cv.ValidateStructResult(s)
	if result.Valid {
		return nil
	}
	return errors.ValidationError(joinMessages(result.Messages()))
}

// ValidateVar validates a single variable with validation rules
func (cv *CentralizedValidator) ValidateVar(field interface{}, tag string) error {
	if err := cv.validator.Var(field, tag); err != nil {
		return errors.ValidationError(joinMessages(messagesOf(cv.extractFieldErrors(err))))
	}
	return nil
}

// ValidateStructResult validates a struct and returns detailed results
func (cv *CentralizedValidator) ValidateStructResult(s interface{}) *ValidationResult {
	err := cv.validator.Struct(s)
	if err == nil {
		return &ValidationResult{Valid: true, Errors: []FieldError{}}
	}

	return &ValidationResult{
		Valid:  false,
		Errors: cv.extractFieldErrors(err),
	}
}

func joinMessages(messages []string) string {
	if len(messages) == 1 {
		return messages[0]
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

func messagesOf(fieldErrors []FieldError) []string {
	out := make([]string, len(fieldErrors))
	for i, e := range fieldErrors {
		out[i] = e.Message
	}
	return out
}

// extractFieldErrors converts go-playground/validator errors to FieldErrors
func (cv *CentralizedValidator) extractFieldErrors(err error) []FieldError {
	var fieldErrors []FieldError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrs {
			fieldErrors = append(fieldErrors, FieldError{
				Field:   fieldError.Field(),
				Tag:     fieldError.Tag(),
				Value:   fmt.Sprintf("%v", fieldError.Value()),
				Message: formatFieldError(fieldError),
				Param:   fieldError.Param(),
			})
		}
	} else {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   "unknown",
			Tag:     "error",
			Message: err.Error(),
		})
	}

	return fieldErrors
}

// formatFieldError formats go-playground/validator field errors into readable messages
func formatFieldError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", err.Field())
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", err.Field())
	case "min", "gte":
		return fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param())
	case "max", "lte":
		return fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", err.Field(), err.Param())
	case "cron":
		return fmt.Sprintf("field '%s' must be a valid cron expression", err.Field())
	case "literal_path":
		return fmt.Sprintf("field '%s' must be a literal path without { or }", err.Field())
	case "http_method":
		return fmt.Sprintf("field '%s' must be one of get, post, put, patch, delete", err.Field())
	case "timezone":
		return fmt.Sprintf("field '%s' must be a valid timezone", err.Field())
	case "duration":
		return fmt.Sprintf("field '%s' must be a valid duration", err.Field())
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", err.Field(), err.Tag())
	}
}

// HTTPMethods lists the trigger methods accepted by the http_method tag
var HTTPMethods = []string{"get", "post", "put", "patch", "delete"}

// unixCron accepts the five-field unix-cron format Cloud Scheduler takes.
// Descriptors such as @hourly or @every are not part of it.
var unixCron = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// IsCron reports whether expr is a five-field unix-cron expression without
// descriptors or a TZ prefix; the time zone is configured separately.
func IsCron(expr string) bool {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return false
	}
	_, err := unixCron.Parse(expr)
	return err == nil
}

// registerSchedulerValidators registers the custom tags used by trigger configurations
func registerSchedulerValidators(v *validator.Validate) {
	// Five-field unix-cron as accepted by Cloud Scheduler
	v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		return IsCron(fl.Field().String())
	})

	v.RegisterValidation("http_method", func(fl validator.FieldLevel) bool {
		method := strings.ToLower(fl.Field().String())
		for _, valid := range HTTPMethods {
			if method == valid {
				return true
			}
		}
		return false
	})

	v.RegisterValidation("literal_path", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "{}")
	})

	v.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})

	v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
}

var globalValidator = NewCentralizedValidator()

// ValidateStruct validates a struct using the global validator instance
func ValidateStruct(s interface{}) error {
	return globalValidator.ValidateStruct(s)
}

// ValidateVar validates a variable using the global validator instance
func ValidateVar(field interface{}, tag string) error {
	return globalValidator.ValidateVar(field, tag)
}

// ValidateStructResult validates a struct and returns detailed results using the global validator
func ValidateStructResult(s interface{}) *ValidationResult {
	return globalValidator.ValidateStructResult(s)
}
