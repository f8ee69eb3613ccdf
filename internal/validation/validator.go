// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package validation wraps a shared go-playground/validator instance with
// the custom tags used by Marquee and converts failures into field errors
// suitable for API responses and log fields.
//
//	if err := validation.ValidateStruct(&item); err != nil {
//	    logging.Warn().Str("item", item.ID).Msg(err.Error())
//	}
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/marquee/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	exitCodePattern = regexp.MustCompile(`^[0-9]{6}$`)
)

// FieldError is a single failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error is returned by ValidateStruct when one or more rules fail.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the shared validator. Custom tags:
//   - exitcode: exactly six ASCII digits
//
// Media playlist items must also carry a media URL.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("exitcode", func(fl validator.FieldLevel) bool {
			return exitCodePattern.MatchString(fl.Field().String())
		})
		validate.RegisterStructValidation(playlistItemRules, models.PlaylistItem{})
	})
	return validate
}

func playlistItemRules(sl validator.StructLevel) {
	item, ok := sl.Current().Interface().(models.PlaylistItem)
	if !ok {
		return
	}
	if item.Kind == models.KindMedia && item.MediaURL == "" {
		sl.ReportError(item.MediaURL, "MediaURL", "media_url", "required", "")
	}
}

// ValidateStruct validates s and returns nil or an *Error.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &Error{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return out
}

// IsExitCode reports whether code has the shape of a kiosk exit code.
func IsExitCode(code string) bool {
	return exitCodePattern.MatchString(code)
}

var messages = map[string]string{
	"required":    "%s is required",
	"required_if": "%s is required",
	"url":         "%s must be a valid URL",
	"exitcode":    "%s must be six digits",
	"latitude":    "%s must be a valid latitude",
	"longitude":   "%s must be a valid longitude",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

func translate(fe validator.FieldError) string {
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
