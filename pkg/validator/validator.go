// ==============================================================================
// VALIDATOR PACKAGE - pkg/validator/validator.go
// ==============================================================================
package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"kycflow/pkg/domain"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.registerCustomValidations()
	return v
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, e := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"Field '%s' failed validation '%s'",
					e.Field(),
					e.Tag(),
				))
			}
			return fmt.Errorf("validation failed: %v", errMessages)
		}
		return err
	}
	return nil
}

// ValidateStructured returns a map of field -> error message for API responses.
func (v *Validator) ValidateStructured(i interface{}) map[string]string {
	errs := make(map[string]string)
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
				switch e.Tag() {
				case "required":
					msg = "This field is required"
				case "oneof":
					msg = fmt.Sprintf("Must be one of: %s", e.Param())
				case "document_type":
					msg = "Unknown document type"
				case "subject_id":
					msg = "Invalid user identifier"
				}
				errs[strings.ToLower(e.Field())] = msg
			}
		}
	}
	return errs
}

func (v *Validator) registerCustomValidations() {
	// document_type: must map to a known upload label
	_ = v.validate.RegisterValidation("document_type", func(fl validator.FieldLevel) bool {
		label := fl.Field().String()
		for _, k := range []domain.SlotKind{domain.SlotFront, domain.SlotBack, domain.SlotSelfie, domain.SlotProofOfAddress} {
			if k.UploadLabel() == label {
				return true
			}
		}
		return false
	})

	// subject_id: authenticated id or temp_-prefixed provisional id, non-blank
	_ = v.validate.RegisterValidation("subject_id", func(fl validator.FieldLevel) bool {
		id := strings.TrimSpace(fl.Field().String())
		if id == "" {
			return false
		}
		if strings.HasPrefix(id, domain.TempIDPrefix) {
			return len(id) > len(domain.TempIDPrefix)
		}
		return true
	})
}
