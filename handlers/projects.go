// handlers/projects.go - Business owner project endpoints
package handlers

import (
	"skillmatch/middleware"
	"skillmatch/models"
	"skillmatch/services"
	"skillmatch/utils"

	"github.com/gofiber/fiber/v2"
)

var projectService *services.ProjectService

// InitProjectHandlers wires the project service used by the handlers below.
func InitProjectHandlers(svc *services.ProjectService) {
	if svc == nil {
		panic("project service not initialized before InitProjectHandlers")
	}
	projectService = svc
}

type createProjectBody struct {
	Title         string                 `json:"title" validate:"required,min=3,max=200"`
	Description   string                 `json:"description" validate:"max=5000"`
	Domain        string                 `json:"domain" validate:"max=80"`
	RequiredLevel string                 `json:"required_level" validate:"max=40"`
	Draft         bool                   `json:"draft"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type projectStatusBody struct {
	Status string `json:"status" validate:"required,oneof=draft open cancelled"`
}

// CreateProject publishes a new project owned by the caller
// POST /api/business/projects
func CreateProject(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}

	var body createProjectBody
	if err := utils.ParseBody(c, &body); err != nil {
		return RespondError(c, err)
	}

	project, err := projectService.Create(c.UserContext(), actor, services.CreateProjectRequest{
		Title:         body.Title,
		Description:   body.Description,
		Domain:        body.Domain,
		RequiredLevel: body.RequiredLevel,
		Draft:         body.Draft,
		Metadata:      body.Metadata,
	})
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{"project": project})
}

// ListProjects returns the caller's projects
// GET /api/business/projects
func ListProjects(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	projects, err := projectService.ListByOwner(c.UserContext(), actor)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"projects": projects, "count": len(projects)})
}

// GetProject
// GET /api/business/projects/:id
func GetProject(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	project, err := projectService.Get(c.UserContext(), actor, id)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"project": project})
}

// UpdateProjectStatus
// PUT /api/business/projects/:id/status
func UpdateProjectStatus(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}

	var body projectStatusBody
	if err := utils.ParseBody(c, &body); err != nil {
		return RespondError(c, err)
	}

	project, err := projectService.SetStatus(c.UserContext(), actor, id, models.ProjectStatus(body.Status))
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"project": project})
}
