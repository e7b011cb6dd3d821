package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotificationTypeIncidentReported    NotificationType = "incident_reported"
	NotificationTypeTaskAssigned        NotificationType = "task_assigned"
	NotificationTypeTaskAccepted        NotificationType = "task_accepted"
	NotificationTypeTaskDeclined        NotificationType = "task_declined"
	NotificationTypeTaskCompleted       NotificationType = "task_completed"
	NotificationTypeAssistanceRequested NotificationType = "assistance_requested"
	NotificationTypeVolunteerPending    NotificationType = "volunteer_pending"
	NotificationTypeVolunteerApproved   NotificationType = "volunteer_approved"
	NotificationTypeGeneral             NotificationType = "general"
)

type Notification struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	Type      NotificationType   `json:"type" bson:"type" default:"general"`
	Title     string             `json:"title" bson:"title" validate:"required"`
	Body      string             `json:"body" bson:"body" validate:"required"`
	Metadata  map[string]string  `json:"metadata" bson:"metadata"`
	Read      bool               `json:"read" bson:"read" default:"false"`
	ReadAt    *time.Time         `json:"read_at" bson:"read_at"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}
