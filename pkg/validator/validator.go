package validator

import (
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "vidshare/internal/errors"
)

// Validator wraps go-playground/validator and converts its failures into
// validation errors keyed by JSON field name.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the custom "mediaurl" tag registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "":
			return fld.Name
		case "-":
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("mediaurl", func(fl validator.FieldLevel) bool {
		return ValidateURL(fl.Field().String()) == nil
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a *errors.Error with per-field
// details.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return apperrors.Validation(err.Error())
	}

	details := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		details[e.Field()] = friendlyMessage(e)
	}
	return apperrors.ValidationWithDetails("validation failed", details)
}

// ValidateURL checks that a media URL is an absolute http(s) URL.
func ValidateURL(urlStr string) error {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return ErrEmptyURL
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return ErrInvalidURL
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return ErrInvalidScheme
	}
	if parsedURL.Host == "" {
		return ErrInvalidHost
	}
	return nil
}
