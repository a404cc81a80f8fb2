package domain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// JobRequest is a request to produce and mail one market report
type JobRequest struct {
	ScriptPath  string `json:"script_path" validate:"required"`
	InitialDate string `json:"initial_date" validate:"required,datetime=2006-01-02"`
	FinalDate   string `json:"final_date" validate:"required,datetime=2006-01-02"`
	Email       string `json:"email" validate:"required,email"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the request and returns a ValidationError describing the
// first problem. Missing fields are reported before malformed ones.
func (r JobRequest) Validate() error {
	err := requestValidator().Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewError(KindValidation, "request.validate", "invalid request", err)
	}

	first := fieldErrs[0]
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			first = fe
			break
		}
	}

	return Errorf(KindValidation, "request.validate", "%s", describeFieldError(first))
}

func describeFieldError(fe validator.FieldError) string {
	field := fieldNames[fe.Field()]
	if field == "" {
		field = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field %q is required", field)
	case "email":
		return "the email address has an invalid format"
	case "datetime":
		return fmt.Sprintf("date %q has an invalid format, use yyyy-mm-dd", fe.Value())
	default:
		return fmt.Sprintf("field %q is invalid", field)
	}
}

var fieldNames = map[string]string{
	"ScriptPath":  "script_path",
	"InitialDate": "initial_date",
	"FinalDate":   "final_date",
	"Email":       "email",
}
