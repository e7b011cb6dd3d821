package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventKind string

const (
	EventIncidentReported    EventKind = "incident_reported"
	EventTaskAssigned        EventKind = "task_assigned"
	EventTaskAccepted        EventKind = "task_accepted"
	EventTaskDeclined        EventKind = "task_declined"
	EventTaskCompleted       EventKind = "task_completed"
	EventAssistanceRequested EventKind = "assistance_requested"
	EventVolunteerPending    EventKind = "volunteer_pending"
)

// IncidentEvent is the record a state change leaves behind for the
// notification dispatcher. The state machine only emits events; recipient
// resolution and delivery live entirely in the dispatcher, so the
// transactional core stays free of delivery concerns.
type IncidentEvent struct {
	Kind         EventKind
	IncidentID   primitive.ObjectID
	IncidentType string
	LocationName string
	Severity     Severity

	// ActorID/ActorName identify who triggered the event. ActorName is the
	// display name at the time of the action, not the current profile.
	ActorID   primitive.ObjectID
	ActorName string

	// TargetIDs carries the volunteers newly added by a dispatch; only those
	// are notified, never previously-present members.
	TargetIDs []primitive.ObjectID

	Message string
}
