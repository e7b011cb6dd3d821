package handlers

import (
	"io"
	"strings"

	"cera/internal/middleware"
	"cera/internal/models"
	"cera/internal/services"
	"cera/internal/utils"
	"cera/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IncidentHandler struct {
	incidentService services.IncidentService
}

func NewIncidentHandler(incidentService services.IncidentService) *IncidentHandler {
	return &IncidentHandler{
		incidentService: incidentService,
	}
}

// ReportIncident creates a new incident report. Photos arrive as multipart
// files under the "photos" field; a plain JSON body reports without photos.
func (h *IncidentHandler) ReportIncident(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.ReportIncidentRequest
	isMultipart := strings.HasPrefix(c.ContentType(), "multipart/form-data")

	if isMultipart {
		if err := c.ShouldBind(&request); err != nil {
			utils.BadRequestResponse(c, "Invalid request: "+err.Error())
			return
		}
	} else {
		if err := c.ShouldBindJSON(&request); err != nil {
			utils.BadRequestResponse(c, "Invalid request: "+err.Error())
			return
		}
	}

	if verrs := validators.ValidateReportIncidentRequest(&request); len(verrs) > 0 {
		utils.ValidationErrorResponse(c, verrs.Fields())
		return
	}

	input := &services.ReportIncidentInput{
		Type:         models.IncidentType(request.Type),
		CustomType:   validators.SanitizeInput(request.CustomType),
		Description:  validators.SanitizeInput(request.Description),
		Severity:     models.Severity(request.Severity),
		Affected:     request.Affected,
		Latitude:     *request.Latitude,
		Longitude:    *request.Longitude,
		LocationName: validators.SanitizeInput(request.LocationName),
	}

	if isMultipart {
		photos, err := h.readPhotos(c)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid photos: "+err.Error())
			return
		}
		input.Photos = photos
	}

	incident, err := h.incidentService.Report(c.Request.Context(), actor, input)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, "Incident reported successfully", incident)
}

// ListIncidents returns incidents filtered by status and type.
func (h *IncidentHandler) ListIncidents(c *gin.Context) {
	status := models.IncidentStatus(c.Query("status"))
	incidentType := models.IncidentType(c.Query("type"))
	params := utils.GetPaginationParams(c)

	incidents, total, err := h.incidentService.List(c.Request.Context(), status, incidentType, params)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Incidents retrieved successfully", incidents, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// GetIncident returns a single incident with its assignments and log.
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid incident ID")
		return
	}

	incident, err := h.incidentService.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Incident retrieved successfully", incident)
}

// MyIncidents returns the caller's own reports.
func (h *IncidentHandler) MyIncidents(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	params := utils.GetPaginationParams(c)
	incidents, total, err := h.incidentService.MyIncidents(c.Request.Context(), actor, params)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Incidents retrieved successfully", incidents, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// NearbyIncidents runs a geospatial search around the caller's position.
func (h *IncidentHandler) NearbyIncidents(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var query validators.NearbyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid query: "+err.Error())
		return
	}

	if verrs := validators.ValidateStruct(&query); len(verrs) > 0 {
		utils.ValidationErrorResponse(c, verrs.Fields())
		return
	}

	filter := &models.NearbyFilter{
		Latitude:       *query.Latitude,
		Longitude:      *query.Longitude,
		RadiusKM:       query.RadiusKM,
		UnassignedOnly: query.UnassignedOnly,
		Limit:          query.Limit,
	}
	for _, t := range splitCSV(query.Types) {
		filter.Types = append(filter.Types, models.IncidentType(t))
	}
	for _, s := range splitCSV(query.Severities) {
		filter.Severities = append(filter.Severities, models.Severity(s))
	}
	for _, s := range splitCSV(query.Statuses) {
		filter.Statuses = append(filter.Statuses, models.IncidentStatus(s))
	}

	incidents, err := h.incidentService.Nearby(c.Request.Context(), actor, filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Nearby incidents retrieved successfully", incidents)
}

// AssignedToMe returns the caller's open task assignments.
func (h *IncidentHandler) AssignedToMe(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	incidents, err := h.incidentService.AssignedToMe(c.Request.Context(), actor)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Assigned incidents retrieved successfully", incidents)
}

// CompletedByMe returns the caller's completed tasks.
func (h *IncidentHandler) CompletedByMe(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	incidents, err := h.incidentService.CompletedByMe(c.Request.Context(), actor)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Completed incidents retrieved successfully", incidents)
}

// ApproveIncident moves a pending incident into the dispatch pool.
func (h *IncidentHandler) ApproveIncident(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	incident, err := h.incidentService.Approve(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Incident approved successfully", incident)
}

// DispatchVolunteers assigns a batch of volunteers to an incident.
func (h *IncidentHandler) DispatchVolunteers(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var request validators.DispatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	verrs, volunteerIDs := validators.ValidateDispatchRequest(&request)
	if len(verrs) > 0 {
		utils.ValidationErrorResponse(c, verrs.Fields())
		return
	}

	incident, err := h.incidentService.Dispatch(c.Request.Context(), actor, id, volunteerIDs)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Volunteers dispatched successfully", incident)
}

// AcceptTask records the caller's acceptance of their assignment.
func (h *IncidentHandler) AcceptTask(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	incident, err := h.incidentService.Accept(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Task accepted successfully", incident)
}

// DeclineTask records the caller's decline of their assignment.
func (h *IncidentHandler) DeclineTask(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	incident, err := h.incidentService.Decline(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Task declined successfully", incident)
}

// CompleteTask marks the caller's assignment as finished.
func (h *IncidentHandler) CompleteTask(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	incident, err := h.incidentService.Complete(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Task completed successfully", incident)
}

// ContactCoordinators raises an assistance request on behalf of the caller.
// An optional message becomes the notification body.
func (h *IncidentHandler) ContactCoordinators(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	// The body is optional; a bare POST means "use the default message".
	_ = c.ShouldBindJSON(&req)

	message := validators.SanitizeInput(req.Message)

	if err := h.incidentService.ContactCoordinators(c.Request.Context(), actor, id, message); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Coordinators have been notified", nil)
}

func (h *IncidentHandler) actorAndID(c *gin.Context) (models.Actor, primitive.ObjectID, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return models.Actor{}, primitive.NilObjectID, false
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid incident ID")
		return models.Actor{}, primitive.NilObjectID, false
	}

	return actor, id, true
}

func (h *IncidentHandler) readPhotos(c *gin.Context) ([]*services.PhotoUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	files := form.File["photos"]
	photos := make([]*services.PhotoUpload, 0, len(files))
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}

		photos = append(photos, &services.PhotoUpload{
			Filename:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return photos, nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
