package validation

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// get returns the shared validator, registering custom rules on first use
func get() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("referral_status", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "pending", "completed", "flagged":
				return true
			}
			return false
		})
	})
	return validate
}

// ValidateStruct validates a struct against its validate tags
func ValidateStruct(s interface{}) error {
	if err := get().Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(verrs)
		}
		return err
	}
	return nil
}
