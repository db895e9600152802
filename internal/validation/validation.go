// Package validation checks inspector server input before it reaches the
// cookie decoder or the API client.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (64KB)
const MaxRequestSize = 64 << 10

// MaxCookieLength bounds a cookie value. Browsers cap a single cookie at
// about 4KB; the extra room covers URL-encoded copies.
const MaxCookieLength = 8 << 10

var (
	// numericIDRegex matches Convert account, project and experience ids
	numericIDRegex = regexp.MustCompile(`^[0-9]+$`)
	// fieldKeyRegex matches cookie field names such as "exp" or "vi"
	fieldKeyRegex = regexp.MustCompile(`^[a-z0-9]+$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsNumericID checks if a string is a Convert id
func IsNumericID(id string) bool {
	return numericIDRegex.MatchString(id)
}

// IsFieldKey checks if a string can name a cookie field
func IsFieldKey(key string) bool {
	return fieldKeyRegex.MatchString(key)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)

	if len(s) > maxLen {
		s = s[:maxLen]
	}

	return strings.ReplaceAll(s, "\x00", "")
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate runs validators and collects their errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errs ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// NumericID checks that a field holds a Convert id
func NumericID(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsNumericID(value) {
			return &ValidationError{Field: field, Message: "must be a numeric id"}
		}
		return nil
	}
}

// FieldKey checks that a field names a cookie field
func FieldKey(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsFieldKey(value) {
			return &ValidationError{Field: field, Message: "must be lowercase letters and digits"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}
