package shopify

import (
	"errors"
	"fmt"
	"strings"

	"shopify-uploader/internal/adapters/shopify/dto"
)

// UserErrorsError carries the structured validation errors a mutation
// returned.
type UserErrorsError struct {
	Action string
	Errors []dto.ShopifyUserError
}

func (e *UserErrorsError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		if msg := formatUserError(ue); msg != "" {
			parts = append(parts, msg)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("shopify %s failed with user errors", e.Action)
	}
	return fmt.Sprintf("shopify %s failed: %s", e.Action, strings.Join(parts, "; "))
}

// First returns the first field/message pair.
func (e *UserErrorsError) First() string {
	for _, ue := range e.Errors {
		if msg := formatUserError(ue); msg != "" {
			return msg
		}
	}
	return e.Error()
}

func (e *UserErrorsError) hasCode(code string) bool {
	for _, ue := range e.Errors {
		if strings.EqualFold(ue.Code, code) {
			return true
		}
	}
	return false
}

func (e *UserErrorsError) messageContains(fragment string) bool {
	fragment = strings.ToLower(fragment)
	for _, ue := range e.Errors {
		if strings.Contains(strings.ToLower(ue.Message), fragment) {
			return true
		}
	}
	return false
}

func formatUserError(ue dto.ShopifyUserError) string {
	msg := strings.TrimSpace(ue.Message)
	if msg == "" {
		return ""
	}
	if len(ue.Field) > 0 {
		msg = fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), msg)
	}
	return msg
}

func userErrorsToError(action string, errs []dto.ShopifyUserError) error {
	if len(errs) == 0 {
		return nil
	}
	return &UserErrorsError{Action: action, Errors: errs}
}

// GraphQLError is a top-level "errors" array on a GraphQL response.
type GraphQLError struct {
	Operation string
	Errors    []dto.GraphQLError
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("shopify graphql errors: %s", formatGraphQLErrors(e.Errors))
}

func formatGraphQLErrors(errs []dto.GraphQLError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			continue
		}
		if len(e.Path) > 0 {
			msg = fmt.Sprintf("%s (path: %v)", msg, e.Path)
		}
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		return "unknown graphql error"
	}
	return strings.Join(parts, "; ")
}

// ErrorMessage is the short text recorded against a failed item: the first
// user error when the platform rejected the input, otherwise the error text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ue *UserErrorsError
	if errors.As(err, &ue) {
		return ue.First()
	}
	return err.Error()
}

// IsNotFound reports whether err says the target resource does not exist.
func IsNotFound(err error) bool {
	var ue *UserErrorsError
	if errors.As(err, &ue) {
		return ue.messageContains("does not exist") || ue.messageContains("not found")
	}
	return false
}
