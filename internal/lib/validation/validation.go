// Package validation настраивает validator для входных данных учётных записей
// и сводит ошибки к сообщениям по полям.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator"
)

const (
	// TagPasswordPolicy - правило: хотя бы одна буква и одна цифра.
	TagPasswordPolicy = "password_policy"
	// TagMaxBytes - правило: строка не длиннее N байт в UTF-8.
	// Встроенное max считает руны.
	TagMaxBytes = "max_bytes"
)

// New возвращает validator с правилами password_policy и max_bytes. Поля в
// ошибках называются по json-тегам.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation(TagPasswordPolicy, func(fl validator.FieldLevel) bool {
		return PasswordPolicy(fl.Field().String())
	})
	_ = v.RegisterValidation(TagMaxBytes, func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

// PasswordPolicy сообщает, содержит ли пароль букву и цифру.
func PasswordPolicy(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
		if letter && digit {
			return true
		}
	}
	return false
}

// Result - итог проверки: либо успех, либо набор ошибок по полям.
type Result struct {
	fields map[string]string
}

// OK сообщает об отсутствии ошибок.
func (r Result) OK() bool {
	return len(r.fields) == 0
}

// Fields возвращает ошибки по полям (ключ - json-имя поля).
func (r Result) Fields() map[string]string {
	return r.fields
}

// Failed создаёт неуспешный Result с одной ошибкой поля.
func Failed(field, msg string) Result {
	return Result{fields: map[string]string{field: msg}}
}

// Check проверяет структуру s.
func Check(v *validator.Validate, s any) Result {
	err := v.Struct(s)
	if err == nil {
		return Result{}
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Failed("request", err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, ok := fields[fe.Field()]; ok {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return Result{fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case TagMaxBytes:
		return fmt.Sprintf("must be at most %s bytes", fe.Param())
	case "eqfield":
		return "does not match"
	case TagPasswordPolicy:
		return "must contain at least one letter and one digit"
	default:
		return "is not valid"
	}
}
