// handlers/errors.go - Mapping lifecycle errors onto HTTP responses
package handlers

import (
	"errors"
	"log"

	"skillmatch/services"
	"skillmatch/utils"

	"github.com/gofiber/fiber/v2"
)

var hideInternalErrors bool

// SetProductionMode hides internal error messages from clients.
func SetProductionMode(production bool) {
	hideInternalErrors = production
}

// StatusFor returns the HTTP status for a lifecycle error kind.
func StatusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusUnprocessableEntity
	case services.KindAuthorization:
		return fiber.StatusForbidden
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondError writes err as {"success": false, "error": ..., "reason": ...}.
func RespondError(c *fiber.Ctx, err error) error {
	var vf *utils.ValidationFailure
	if errors.As(err, &vf) {
		return utils.JSONValidationFailure(c, vf)
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.JSONError(c, fe.Code, fe.Message)
	}

	var se *services.Error
	if errors.As(err, &se) && se.Kind != services.KindInternal {
		return utils.JSONErrorWithReason(c, StatusFor(se.Kind), se.Message, se.Reason)
	}

	log.Printf("[http] %s %s: %v", c.Method(), c.Path(), err)
	message := err.Error()
	if hideInternalErrors {
		message = "Internal server error"
	}
	return utils.JSONError(c, fiber.StatusInternalServerError, message)
}
