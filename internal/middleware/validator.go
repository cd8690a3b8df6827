package middleware

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidInput marks request fields rejected before a run starts.
var ErrInvalidInput = errors.New("invalid input")

var modelPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]{1,64}$`)

// ValidateUpload checks a multipart workbook: .xlsx only, non-empty, at most maxBytes.
func ValidateUpload(fh *multipart.FileHeader, maxBytes int64) error {
	if fh == nil {
		return fmt.Errorf("%w: missing file", ErrInvalidInput)
	}
	name := filepath.Base(SanitizeString(fh.Filename))
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return fmt.Errorf("%w: %q is not an .xlsx workbook", ErrInvalidInput, name)
	}
	if fh.Size <= 0 {
		return fmt.Errorf("%w: %q is empty", ErrInvalidInput, name)
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidInput, name, maxBytes)
	}
	return nil
}

// ValidateModel checks an assessor model override. Empty is allowed.
func ValidateModel(model string) error {
	if model == "" {
		return nil
	}
	if !modelPattern.MatchString(model) {
		return fmt.Errorf("%w: llm_model %q", ErrInvalidInput, model)
	}
	return nil
}

// ParseMaxRows parses max_rows_per_sheet; empty means no limit.
func ParseMaxRows(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: max_rows_per_sheet must be a non-negative integer", ErrInvalidInput)
	}
	return n, nil
}

// ParseBool accepts the usual form values, empty = false.
func ParseBool(field, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", ErrInvalidInput, field)
	}
	return b, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
