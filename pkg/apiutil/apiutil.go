// Package apiutil holds the HTTP response envelope, RFC 9457 problem details
// and request binding shared by the API handlers and middleware.
package apiutil

import (
	"errors"

	"github.com/amirasaad/usdledger/pkg/domain"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
}

const internalDetail = "internal error"

// SuccessResponseJSON writes the standard success envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// ProblemDetailsJSON writes an application/problem+json response for err.
// The optional arguments are, in any order, a detail string overriding the
// error text, an int status overriding ErrorToStatusCode, and any other value
// attached as the errors member. A 500 never exposes the error text.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, opts ...any) error {
	status := ErrorToStatusCode(err)
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	var extra any
	for _, o := range opts {
		switch v := o.(type) {
		case string:
			detail = v
		case int:
			status = v
		default:
			extra = v
		}
	}
	if status == fiber.StatusInternalServerError {
		detail = internalDetail
	}
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.OriginalURL(),
		Errors:   extra,
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(pd)
}

// ErrorToStatusCode maps domain and gateway errors to HTTP status codes.
func ErrorToStatusCode(err error) int {
	if err == nil {
		return fiber.StatusInternalServerError
	}
	if ge, ok := gateway.AsError(err); ok {
		if ge.Kind == gateway.ErrTimeout {
			return fiber.StatusGatewayTimeout
		}
		return fiber.StatusBadGateway
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrUnsupportedCountry),
		errors.Is(err, domain.ErrUnknownGateway):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrNotVerified):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// BindAndValidate parses the request body and validates it using go-playground/validator.
// On failure it writes a 400 problem response and returns a nil input.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		opts := []any{fiber.StatusBadRequest}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			opts = append(opts, fields)
		}
		return nil, ProblemDetailsJSON(c, "Validation failed", err, opts...)
	}
	return &input, nil
}
