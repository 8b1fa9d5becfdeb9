// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package validation wraps go-playground/validator v10 behind a
// thread-safe singleton with human-readable error messages. API
// handlers validate decoded request structs through ValidateStruct
// and surface the translated messages in 400 responses.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed field with its translated message.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// RequestError is the full set of validation failures for one
// request.
type RequestError struct {
	fields []FieldError
}

// Fields returns the individual field failures.
func (e *RequestError) Fields() []FieldError {
	return e.fields
}

// Error joins all field messages.
func (e *RequestError) Error() string {
	if len(e.fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(e.fields))
	for i, f := range e.fields {
		messages[i] = f.Message
	}
	return strings.Join(messages, "; ")
}

// Validator returns the singleton validator. Struct metadata is
// cached inside, so sharing one instance is both safe and faster.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates s against its `validate` tags. Returns nil
// when valid.
func ValidateStruct(s any) *RequestError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestError{fields: []FieldError{{
			Field: "unknown", Tag: "unknown", Message: err.Error(),
		}}}
	}

	fields := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return &RequestError{fields: fields}
}

var simpleTemplates = map[string]string{
	"required": "%s is required",
	"url":      "%s must be a valid URL",
	"datetime": "%s must be a valid date/time",
}

var paramTemplates = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translate(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if tmpl, ok := simpleTemplates[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := paramTemplates[tag]; ok {
		return fmt.Sprintf(tmpl, field, param)
	}

	isString := fe.Kind().String() == "string"
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
