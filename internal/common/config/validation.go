package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/newsbench/newsloader/internal/common/logging"
)

// Validate checks the validate struct tags of config.
func Validate(config any) error {
	v := validator.New()
	return v.Struct(config)
}

func LogValidationErrors(err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		if err != nil {
			logging.Errorf("ConfigError: %v", err)
		}
		return
	}
	for _, err := range validationErrors {
		fieldName := stripPrefix(err.Namespace())
		tag := err.Tag()
		switch tag {
		case "required":
			logging.Errorf("ConfigError: Field %s is required but was not found", fieldName)
		default:
			logging.Errorf("ConfigError: Field %s has invalid value %v: %s", fieldName, err.Value(), tag)
		}
	}
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
