package validators

import "time"

type UpdateAvailabilityRequest struct {
	Status string `json:"status" validate:"required,oneof=active busy away offline"`
}

type VolunteerApplicationRequest struct {
	Skills []string `json:"skills" validate:"omitempty,max=20,dive,min=1,max=50"`
}

type LogWorkHoursRequest struct {
	IncidentID string     `json:"incident_id" validate:"required,object_id"`
	Hours      float64    `json:"hours" validate:"required,gt=0,max=24"`
	Date       *time.Time `json:"date" validate:"omitempty"`
}

type PushTokenRequest struct {
	Platform string `json:"platform" validate:"required,oneof=fcm apns"`
	Token    string `json:"token" validate:"required,min=8,max=4096"`
}
