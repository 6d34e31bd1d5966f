// handlers/teams.go - Team endpoints
package handlers

import (
	"skillmatch/middleware"
	"skillmatch/services"
	"skillmatch/utils"

	"github.com/gofiber/fiber/v2"
)

var teamCoordinator *services.TeamCoordinator

// InitTeamHandlers wires the team coordinator
func InitTeamHandlers(teams *services.TeamCoordinator) {
	if teams == nil {
		panic("team coordinator not initialized before InitTeamHandlers")
	}
	teamCoordinator = teams
}

// GetTeam returns a team with its member assignments
// GET /api/teams/:id
func GetTeam(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	teamID, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}

	view, err := teamCoordinator.GetTeam(c.UserContext(), actor, teamID)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"team":    view.Team,
		"members": view.Members,
		"count":   len(view.Members),
	})
}
