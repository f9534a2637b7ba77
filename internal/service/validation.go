package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// fieldErrors maps struct field name prefixes to the error reported for them.
type fieldErrors map[string]error

// validateStruct runs tag validation on v and returns the error mapped to the
// first failing field, or a generic validation error.
func validateStruct(v any, mapping fieldErrors) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].StructField()
		for prefix, mapped := range mapping {
			if strings.HasPrefix(field, prefix) {
				return mapped
			}
		}
		return fmt.Errorf("%w: %s failed %s", ErrValidation, field, verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
