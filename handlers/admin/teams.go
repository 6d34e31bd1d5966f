package admin

import (
	"skillmatch/handlers"
	"skillmatch/middleware"
	"skillmatch/utils"

	"github.com/gofiber/fiber/v2"
)

// ArchiveTeam freezes a team's status at archived
// POST /api/admin/teams/:id/archive
func ArchiveTeam(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return handlers.RespondError(c, err)
	}
	teamID, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return handlers.RespondError(c, err)
	}
	team, err := teamCoordinator.Archive(c.UserContext(), actor, teamID)
	if err != nil {
		return handlers.RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"team": team})
}

// RecomputeTeam re-derives a team's status from its members
// POST /api/admin/teams/:id/recompute
func RecomputeTeam(c *fiber.Ctx) error {
	teamID, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return handlers.RespondError(c, err)
	}
	team, err := teamCoordinator.RecomputeTeam(c.UserContext(), teamID)
	if err != nil {
		return handlers.RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"team": team})
}
