package handlers

import (
	"time"

	"cera/internal/middleware"
	"cera/internal/models"
	"cera/internal/services"
	"cera/internal/utils"
	"cera/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetProfile returns the caller's own profile.
func (h *UserHandler) GetProfile(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), actor.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Profile retrieved successfully", user)
}

// UpdateAvailability changes the caller's availability status.
func (h *UserHandler) UpdateAvailability(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if verrs := validators.ValidateStruct(&request); len(verrs) > 0 {
		utils.ValidationErrorResponse(c, verrs.Fields())
		return
	}

	if err := h.userService.UpdateAvailability(c.Request.Context(), actor, models.AvailabilityStatus(request.Status)); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Availability updated successfully", nil)
}

// ApplyAsVolunteer submits the caller's volunteer application.
func (h *UserHandler) ApplyAsVolunteer(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.VolunteerApplicationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if verrs := validators.ValidateStruct(&request); len(verrs) > 0 {
		utils.ValidationErrorResponse(c, verrs.Fields())
		return
	}

	if err := h.userService.SubmitVolunteerApplication(c.Request.Context(), actor, request.Skills); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Volunteer application submitted successfully", nil)
}

// PendingVolunteers lists volunteer applications awaiting review.
func (h *UserHandler) PendingVolunteers(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	params := utils.GetPaginationParams(c)
	users, total, err := h.userService.PendingVolunteers(c.Request.Context(), actor, params)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Pending volunteers retrieved successfully", users, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// ApproveVolunteer approves a pending volunteer application.
func (h *UserHandler) ApproveVolunteer(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	volunteerID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID")
		return
	}

	if err := h.userService.ApproveVolunteer(c.Request.Context(), actor, volunteerID); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Volunteer approved successfully", nil)
}

// LogWorkHours records hours worked on an incident.
func (h *UserHandler) LogWorkHours(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.LogWorkHoursRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if verrs := validators.ValidateStruct(&request); len(verrs) > 0 {
		utils.ValidationErrorResponse(c, verrs.Fields())
		return
	}

	incidentID, err := primitive.ObjectIDFromHex(request.IncidentID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid incident ID")
		return
	}

	var date time.Time
	if request.Date != nil {
		date = *request.Date
	}

	if err := h.userService.LogWorkHours(c.Request.Context(), actor, incidentID, request.Hours, date); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Work hours logged successfully", nil)
}

// RegisterPushToken attaches a device push token to the caller.
func (h *UserHandler) RegisterPushToken(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.PushTokenRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if verrs := validators.ValidateStruct(&request); len(verrs) > 0 {
		utils.ValidationErrorResponse(c, verrs.Fields())
		return
	}

	if err := h.userService.RegisterPushToken(c.Request.Context(), actor, request.Platform, request.Token); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Push token registered successfully", nil)
}

// RemovePushToken detaches a device push token from the caller.
func (h *UserHandler) RemovePushToken(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	token := c.Query("token")
	if err := h.userService.RemovePushToken(c.Request.Context(), actor, token); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Push token removed successfully", nil)
}
