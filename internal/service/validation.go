package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
)

// NewValidator returns a validator that reports json field names and knows
// the request enumerations.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("work_type", func(fl validator.FieldLevel) bool {
		return models.WorkType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("request_category", func(fl validator.FieldLevel) bool {
		return models.RequestCategory(fl.Field().String()).Valid()
	})
	return v
}

// validationError converts validator output into a VALIDATION_ERROR carrying
// one detail per failing field.
func validationError(err error, message string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = rule(fe)
	}
	return appErrors.WithDetails(appErrors.ErrValidation, message, details)
}

func rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "work_type":
		return "oneof=" + models.WorkTypeOneOf()
	case "request_category":
		return "oneof=" + models.CategoryOneOf()
	}
	if fe.Param() != "" {
		return fe.Tag() + "=" + fe.Param()
	}
	return fe.Tag()
}

// invalidField builds a VALIDATION_ERROR for a single field.
func invalidField(field, rule, message string) error {
	return appErrors.WithDetails(appErrors.ErrValidation, message, map[string]string{field: rule})
}
