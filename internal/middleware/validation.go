package middleware

import (
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

// ValidationConfig represents validation configuration
type ValidationConfig struct {
	CustomValidators    map[string]validator.Func
	CustomErrorMessages map[string]string
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"calendar_date": func(fl validator.FieldLevel) bool {
				_, err := model.ParseDate(fl.Field().String())
				return err == nil
			},
			"time_of_day": func(fl validator.FieldLevel) bool {
				_, err := model.ParseTimeOfDay(fl.Field().String())
				return err == nil
			},
		},
		CustomErrorMessages: map[string]string{
			"required":      "field is required",
			"max":           "value is too long",
			"calendar_date": "must be a date in YYYY-MM-DD format",
			"time_of_day":   "must be a time in HH:MM format",
		},
	}
}

var (
	registerOnce sync.Once
	registerErr  error
	messages     map[string]string
)

// RegisterValidators installs config on gin's binding validator. Field names
// in errors follow the json tags. Only the first call has an effect.
func RegisterValidators(config ValidationConfig) error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected binding validator %T", binding.Validator.Engine())
			return
		}

		for tag, fn := range config.CustomValidators {
			if err := v.RegisterValidation(tag, fn); err != nil {
				registerErr = fmt.Errorf("register %s: %w", tag, err)
				return
			}
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		messages = config.CustomErrorMessages
	})
	return registerErr
}

// BindingError converts a gin binding failure into a Validation error naming
// the first offending field.
func BindingError(err error) error {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		msg := messages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		return apperrors.Validation(e.Field(), fmt.Sprintf("%s %s", e.Field(), msg))
	}
	if stderrors.Is(err, io.EOF) {
		return apperrors.Validation("body", "request body is required")
	}
	return apperrors.Validation("body", "malformed request body")
}
