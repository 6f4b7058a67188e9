package model

import (
	"sort"
	"strings"
)

// ValidationErrors maps a form field name to the message shown next to it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has an error.
func (v ValidationErrors) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// OrNil returns nil when nothing was recorded.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Validation messages
const (
	MsgRequired     = "This field is required."
	MsgTextTooLong  = "Ensure this value has at most %d characters."
	MsgInvalidGroup = "Select a valid choice. That choice is not one of the available choices."
	MsgBadImage     = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	MsgImageTooBig  = "The image must not exceed 10 MB."
)
