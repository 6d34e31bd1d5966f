// utils/http.go - Fiber response and request helpers
package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New()

// JSONSuccess sends {"success": true, ...} with data merged in when it is a map.
func JSONSuccess(c *fiber.Ctx, status int, data interface{}) error {
	response := fiber.Map{"success": true}
	if dataMap, ok := data.(fiber.Map); ok {
		for k, v := range dataMap {
			response[k] = v
		}
	} else {
		response["data"] = data
	}
	return c.Status(status).JSON(response)
}

// JSONError sends a JSON error response
func JSONError(c *fiber.Ctx, status int, message string) error {
	return JSONErrorWithReason(c, status, message, "")
}

func JSONErrorWithReason(c *fiber.Ctx, status int, message, reason string) error {
	body := fiber.Map{
		"success": false,
		"error":   message,
	}
	if reason != "" {
		body["reason"] = reason
	}
	return c.Status(status).JSON(body)
}

// ValidationFailure lists the request fields that failed their validate tags.
type ValidationFailure struct {
	Fields map[string]string
}

func (v *ValidationFailure) Error() string {
	return "validation failed"
}

// ParseBody decodes the request body into v and runs its validate tags.
func ParseBody(c *fiber.Ctx, v interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(v); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	return Validate(v)
}

// Validate runs the validate tags on v.
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid input")
		}
		fields := make(map[string]string, len(ve))
		for _, fieldErr := range ve {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
		return &ValidationFailure{Fields: fields}
	}
	return nil
}

// JSONValidationFailure writes a 422 listing the failed fields.
func JSONValidationFailure(c *fiber.Ctx, vf *ValidationFailure) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"success": false,
		"error":   "Validation failed",
		"fields":  vf.Fields,
	})
}

// ParseUUIDParam reads a uuid route parameter.
func ParseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}
