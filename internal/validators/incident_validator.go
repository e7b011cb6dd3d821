package validators

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coordinates are pointers so an absent field is rejected as missing rather
// than binding to 0,0.
type ReportIncidentRequest struct {
	Type         string   `json:"type" form:"type" validate:"required,oneof=fire flood medical rescue accident crime earthquake other"`
	CustomType   string   `json:"custom_type" form:"custom_type" validate:"omitempty,max=100"`
	Description  string   `json:"description" form:"description" validate:"omitempty,max=2000"`
	Severity     string   `json:"severity" form:"severity" validate:"omitempty,oneof=Low Medium High"`
	Affected     int      `json:"affected" form:"affected" validate:"omitempty,min=0,max=1000000"`
	Latitude     *float64 `json:"latitude" form:"latitude" validate:"required,min=-90,max=90"`
	Longitude    *float64 `json:"longitude" form:"longitude" validate:"required,min=-180,max=180"`
	LocationName string   `json:"location_name" form:"location_name" validate:"omitempty,max=255"`
}

type DispatchRequest struct {
	VolunteerIDs []string `json:"volunteer_ids" validate:"required,min=1,max=50,dive,object_id"`
}

type NearbyQuery struct {
	Latitude       *float64 `form:"lat" validate:"required,min=-90,max=90"`
	Longitude      *float64 `form:"lng" validate:"required,min=-180,max=180"`
	RadiusKM       float64 `form:"radius" validate:"omitempty,min=0,max=100"`
	Types          string  `form:"types"`
	Severities     string  `form:"severities"`
	Statuses       string  `form:"statuses"`
	UnassignedOnly bool    `form:"unassigned_only"`
	Limit          int     `form:"limit" validate:"omitempty,min=1,max=200"`
}

func ValidateReportIncidentRequest(req *ReportIncidentRequest) ValidationErrors {
	errors := ValidateStruct(req)

	if req.Type == "other" && req.CustomType == "" {
		errors = append(errors, ValidationError{
			Field:   "custom_type",
			Message: "custom_type is required when type is other",
		})
	}

	return errors
}

func ValidateDispatchRequest(req *DispatchRequest) (ValidationErrors, []primitive.ObjectID) {
	errors := ValidateStruct(req)
	if len(errors) > 0 {
		return errors, nil
	}

	ids := make([]primitive.ObjectID, 0, len(req.VolunteerIDs))
	for _, raw := range req.VolunteerIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			errors = append(errors, ValidationError{
				Field:   "volunteer_ids",
				Value:   raw,
				Message: "Invalid ID format",
			})
			continue
		}
		ids = append(ids, id)
	}

	return errors, ids
}
