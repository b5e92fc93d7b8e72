// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace-installments/internal/apperr"
)

var (
	passportRe = regexp.MustCompile(`^[A-Z]{2}[0-9]{7}$`)
	phoneRe    = regexp.MustCompile(`^\+998[0-9]{9}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("passport", func(fl validator.FieldLevel) bool {
		return IsValidPassport(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsValidPhone(fl.Field().String())
	})
	return v
}

// IsValidPassport проверяет серию и номер паспорта: две заглавные латинские буквы и семь цифр.
func IsValidPassport(s string) bool {
	return passportRe.MatchString(s)
}

// IsValidPhone проверяет номер телефона в формате +998XXXXXXXXX.
func IsValidPhone(s string) bool {
	return phoneRe.MatchString(s)
}

// Places проверяет, что у числа не больше places знаков после запятой.
func Places(field string, d decimal.Decimal, places int32) error {
	if !d.Equal(d.Truncate(places)) {
		return apperr.Validation(field, "%s must have at most %d decimal places", field, places)
	}
	return nil
}

// Struct проверяет структуру по тегам validate и возвращает ошибку валидации
// для первого некорректного поля.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperr.Validation(fe.Field(), "%s %s", fe.Field(), message(fe))
	}
	return apperr.Wrap(apperr.KindValidation, err, "validation failed")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "passport":
		return "must match AA1234567"
	case "phone":
		return "must match +998XXXXXXXXX"
	default:
		return "is invalid"
	}
}
