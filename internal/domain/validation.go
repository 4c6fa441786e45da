package domain

import (
	"fmt"
	"strings"

	appErrors "guildhall-backend/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks s against its struct tags. Failures come back as a single
// ValidationError listing every offending field.
func Validate(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return appErrors.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, formatFieldError(fe))
	}
	return appErrors.NewValidationError(strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Normalize trims the free-text fields so whitespace-only input fails validation.
func (g *NewGuild) Normalize() {
	g.Name = strings.TrimSpace(g.Name)
	g.Description = strings.TrimSpace(g.Description)
	g.Category = strings.TrimSpace(g.Category)
	g.Rules = strings.TrimSpace(g.Rules)
}

// Normalize trims the free-text fields so whitespace-only input fails validation.
func (p *NewPost) Normalize() {
	p.Content = strings.TrimSpace(p.Content)
	p.PostType = strings.TrimSpace(p.PostType)
	p.AuthorName = strings.TrimSpace(p.AuthorName)
}
