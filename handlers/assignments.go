// handlers/assignments.go - Invitation lifecycle endpoints
package handlers

import (
	"skillmatch/middleware"
	"skillmatch/models"
	"skillmatch/services"
	"skillmatch/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var invitationService *services.InvitationService

// InitAssignmentHandlers wires the invitation service used by the handlers below.
func InitAssignmentHandlers(svc *services.InvitationService) {
	if svc == nil {
		panic("invitation service not initialized before InitAssignmentHandlers")
	}
	invitationService = svc
}

// inviteBody accepts exactly one of user_id, user_ids or team_members.
type inviteBody struct {
	UserID      *uuid.UUID             `json:"user_id"`
	UserIDs     []uuid.UUID            `json:"user_ids" validate:"omitempty,max=50"`
	TeamMembers []uuid.UUID            `json:"team_members" validate:"omitempty,max=20"`
	TeamID      *uuid.UUID             `json:"team_id"`
	TeamName    *string                `json:"team_name" validate:"omitempty,max=120"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type acceptBody struct {
	Token string `json:"token" validate:"required,max=256"`
}

type cancelBody struct {
	Reason *string `json:"reason" validate:"omitempty,max=255"`
}

type feedbackBody struct {
	Feedback *string `json:"feedback" validate:"omitempty,max=5000"`
	Rating   *int    `json:"rating" validate:"omitempty,min=1,max=5"`
}

type studentListQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=pending frozen accepted declined cancelled completed"`
}

// InviteCandidates invites one candidate, several solo candidates or a new team
// POST /api/business/projects/:id/assignments
func InviteCandidates(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	projectID, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}

	var body inviteBody
	if err := utils.ParseBody(c, &body); err != nil {
		return RespondError(c, err)
	}

	modes := 0
	if body.UserID != nil {
		modes++
	}
	if len(body.UserIDs) > 0 {
		modes++
	}
	if len(body.TeamMembers) > 0 {
		modes++
	}
	if modes != 1 {
		return RespondError(c, services.ValidationError("Provide exactly one of user_id, user_ids or team_members."))
	}
	if body.TeamID != nil && body.UserID == nil {
		return RespondError(c, services.ValidationError("team_id can only be combined with user_id."))
	}

	ctx := c.UserContext()
	switch {
	case body.UserID != nil:
		a, err := invitationService.Invite(ctx, actor, services.InviteRequest{
			ProjectID:   projectID,
			CandidateID: *body.UserID,
			TeamID:      body.TeamID,
			Metadata:    body.Metadata,
		})
		if err != nil {
			return RespondError(c, err)
		}
		return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{"assignment": a})

	case len(body.TeamMembers) > 0:
		out, err := invitationService.InviteTeam(ctx, actor, services.TeamInviteRequest{
			ProjectID:    projectID,
			CandidateIDs: body.TeamMembers,
			TeamName:     body.TeamName,
			Metadata:     body.Metadata,
		})
		if err != nil {
			return RespondError(c, err)
		}
		resp := fiber.Map{"assignments": out, "count": len(out)}
		if len(out) > 0 && out[0].TeamID != nil {
			resp["team_id"] = out[0].TeamID
		}
		return utils.JSONSuccess(c, fiber.StatusCreated, resp)

	default:
		out, err := invitationService.InviteMany(ctx, actor, services.MultiInviteRequest{
			ProjectID:    projectID,
			CandidateIDs: body.UserIDs,
			Metadata:     body.Metadata,
		})
		if err != nil {
			return RespondError(c, err)
		}
		return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{"assignments": out, "count": len(out)})
	}
}

// ListProjectAssignments
// GET /api/business/projects/:id/assignments
func ListProjectAssignments(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	projectID, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	out, err := invitationService.ListProjectAssignments(c.UserContext(), actor, projectID)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignments": out, "count": len(out)})
}

// CancelAssignment
// DELETE /api/business/projects/assignments/:id/cancel
func CancelAssignment(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	var body cancelBody
	if err := utils.ParseBody(c, &body); err != nil {
		return RespondError(c, err)
	}
	a, err := invitationService.Cancel(c.UserContext(), actor, id, body.Reason)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignment": a})
}

// DeleteAssignment removes an invitation that never went anywhere
// DELETE /api/business/projects/assignments/:id
func DeleteAssignment(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	if err := invitationService.Delete(c.UserContext(), actor, id); err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"message": "Assignment deleted"})
}

// CompleteAssignment
// POST /api/business/projects/assignments/:id/complete
func CompleteAssignment(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	var body feedbackBody
	if err := utils.ParseBody(c, &body); err != nil {
		return RespondError(c, err)
	}
	a, err := invitationService.Complete(c.UserContext(), actor, id, body.Feedback, body.Rating)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignment": a})
}

// ListMyAssignments returns the caller's invitations, optionally by status
// GET /api/student/projects/assignments?status=
func ListMyAssignments(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}

	var q studentListQuery
	if err := c.QueryParser(&q); err != nil {
		return RespondError(c, fiber.NewError(fiber.StatusBadRequest, "Invalid query"))
	}
	if err := utils.Validate(&q); err != nil {
		return RespondError(c, err)
	}

	var status *models.AssignmentStatus
	if q.Status != "" {
		s := models.AssignmentStatus(q.Status)
		status = &s
	}
	out, err := invitationService.ListStudentAssignments(c.UserContext(), actor, status)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignments": out, "count": len(out)})
}

// AcceptAssignment redeems an invitation token
// POST /api/student/projects/assignments/:id/accept
func AcceptAssignment(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	var body acceptBody
	if err := utils.ParseBody(c, &body); err != nil {
		return RespondError(c, err)
	}
	a, err := invitationService.Accept(c.UserContext(), actor, id, body.Token)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignment": a})
}

// AcceptAssignmentDirect accepts from the signed-in dashboard without a token
// POST /api/student/projects/assignments/:id/accept-direct
func AcceptAssignmentDirect(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	a, err := invitationService.AcceptWithoutToken(c.UserContext(), actor, id)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignment": a})
}

// DeclineAssignment
// POST /api/student/projects/assignments/:id/decline
func DeclineAssignment(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	a, err := invitationService.Decline(c.UserContext(), actor, id)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignment": a})
}

// SubmitStudentFeedback
// POST /api/student/projects/assignments/:id/feedback
func SubmitStudentFeedback(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	var body feedbackBody
	if err := utils.ParseBody(c, &body); err != nil {
		return RespondError(c, err)
	}
	a, err := invitationService.StudentFeedback(c.UserContext(), actor, id, body.Feedback, body.Rating)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignment": a})
}

// GetAssignment
// GET /api/assignments/:id
func GetAssignment(c *fiber.Ctx) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return RespondError(c, err)
	}
	id, err := utils.ParseUUIDParam(c, "id")
	if err != nil {
		return RespondError(c, err)
	}
	a, err := invitationService.GetAssignment(c.UserContext(), actor, id)
	if err != nil {
		return RespondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"assignment": a})
}
