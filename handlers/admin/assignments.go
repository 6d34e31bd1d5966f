package admin

import (
	"context"

	"skillmatch/handlers"
	"skillmatch/middleware"
	"skillmatch/models"
	"skillmatch/services"
	"skillmatch/utils"

	"github.com/gofiber/fiber/v2"
)

// AuditReader is implemented by sinks that keep events queryable.
type AuditReader interface {
	Recent(ctx context.Context, eventType string, limit int) ([]models.AuditEvent, error)
}

var (
	invitationService *services.InvitationService
	teamCoordinator   *services.TeamCoordinator
	auditReader       AuditReader
)

// InitAdminHandlers wires the admin endpoints. reader may be nil when the
// audit trail is only written to the process log.
func InitAdminHandlers(invitations *services.InvitationService, teams *services.TeamCoordinator, reader AuditReader) {
	invitationService = invitations
	teamCoordinator = teams
	auditReader = reader
}

// GetProjectAssignments lists every assignment of any project
// GET /api/admin/projects/:id/assignments
func GetProjectAssignments(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return handlers.RespondError(c, err)
	}
	projectID, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return handlers.RespondError(c, err)
	}
	out, err := invitationService.ListProjectAssignments(c.UserContext(), actor, projectID)
	if err != nil {
		return handlers.RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignments": out, "count": len(out)})
}

// GetAuditEvents
// GET /api/admin/audit?type=&limit=
func GetAuditEvents(c *fiber.Ctx) error {
	if auditReader == nil {
		return utils.JSONError(c, fiber.StatusNotImplemented, "Audit events are not persisted by this deployment")
	}
	events, err := auditReader.Recent(c.UserContext(), c.Query("type"), c.QueryInt("limit", 100))
	if err != nil {
		return handlers.RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"events": events, "count": len(events)})
}
