package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IncidentType string
type IncidentStatus string
type Severity string
type AssignmentStatus string
type LogAction string

const (
	IncidentTypeFire       IncidentType = "fire"
	IncidentTypeFlood      IncidentType = "flood"
	IncidentTypeMedical    IncidentType = "medical"
	IncidentTypeRescue     IncidentType = "rescue"
	IncidentTypeAccident   IncidentType = "accident"
	IncidentTypeCrime      IncidentType = "crime"
	IncidentTypeEarthquake IncidentType = "earthquake"
	IncidentTypeOther      IncidentType = "other"

	IncidentStatusPending    IncidentStatus = "pending"
	IncidentStatusApproved   IncidentStatus = "approved"
	IncidentStatusAssigned   IncidentStatus = "assigned"
	IncidentStatusInProgress IncidentStatus = "in_progress"
	IncidentStatusCompleted  IncidentStatus = "completed"

	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"

	AssignmentStatusPending    AssignmentStatus = "pending"
	AssignmentStatusAccepted   AssignmentStatus = "accepted"
	AssignmentStatusDeclined   AssignmentStatus = "declined"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusCompleted  AssignmentStatus = "completed"

	LogActionAssigned             LogAction = "assigned"
	LogActionAccepted             LogAction = "accepted"
	LogActionDeclined             LogAction = "declined"
	LogActionApproved             LogAction = "approved"
	LogActionResolved             LogAction = "resolved"
	LogActionInProgress           LogAction = "in_progress"
	LogActionCompleted            LogAction = "completed"
	LogActionContactedCoordinators LogAction = "contacted_coordinators"
)

var incidentTypes = map[IncidentType]bool{
	IncidentTypeFire:       true,
	IncidentTypeFlood:      true,
	IncidentTypeMedical:    true,
	IncidentTypeRescue:     true,
	IncidentTypeAccident:   true,
	IncidentTypeCrime:      true,
	IncidentTypeEarthquake: true,
	IncidentTypeOther:      true,
}

func ValidIncidentType(t IncidentType) bool {
	return incidentTypes[t]
}

func ValidSeverity(s Severity) bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// assignmentTransitions is the closed table of legal per-volunteer response
// transitions. A pending entry is answered with accept or decline; an accepted
// entry may be marked in progress or completed. Declined and completed are
// terminal.
var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusPending:    {AssignmentStatusAccepted, AssignmentStatusDeclined},
	AssignmentStatusAccepted:   {AssignmentStatusInProgress, AssignmentStatusCompleted},
	AssignmentStatusInProgress: {AssignmentStatusCompleted},
}

func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentStatusDeclined || s == AssignmentStatusCompleted
}

type AssignedVolunteer struct {
	VolunteerID primitive.ObjectID `json:"volunteer" bson:"volunteer" validate:"required"`
	AssignedBy  primitive.ObjectID `json:"assigned_by,omitempty" bson:"assigned_by,omitempty"`
	AssignedAt  time.Time          `json:"assigned_at" bson:"assigned_at"`
	Status      AssignmentStatus   `json:"status" bson:"status" default:"pending"`
	RespondedAt *time.Time         `json:"responded_at" bson:"responded_at"`
}

type LogEntry struct {
	Action    LogAction           `json:"action" bson:"action" validate:"required"`
	Actor     *primitive.ObjectID `json:"actor,omitempty" bson:"actor,omitempty"`
	Target    *primitive.ObjectID `json:"target,omitempty" bson:"target,omitempty"`
	Message   string              `json:"message" bson:"message"`
	Timestamp time.Time           `json:"timestamp" bson:"timestamp"`
}

type Incident struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ReporterID   primitive.ObjectID `json:"reporter" bson:"reporter" validate:"required"`
	ReporterName string             `json:"reporter_name" bson:"reporter_name"`

	Type        IncidentType `json:"type" bson:"type" validate:"required"`
	CustomType  string       `json:"custom_type" bson:"custom_type"`
	Description string       `json:"description" bson:"description"`
	Severity    Severity     `json:"severity" bson:"severity" default:"Low"`
	Affected    int          `json:"affected" bson:"affected"`

	// Photos and PhotoRefs are index-aligned: PhotoRefs[i] is the deletable
	// storage key behind Photos[i].
	Photos    []string `json:"photos" bson:"photos"`
	PhotoRefs []string `json:"photo_refs" bson:"photo_refs"`
	PhotoURL  string   `json:"photo_url" bson:"photo_url"`

	Location Location       `json:"location" bson:"location" validate:"required"`
	Status   IncidentStatus `json:"status" bson:"status" default:"pending"`

	AssignedVolunteers []AssignedVolunteer `json:"assigned_volunteers" bson:"assigned_volunteers"`
	Logs               []LogEntry          `json:"logs" bson:"logs"`

	WorkedHours float64    `json:"worked_hours" bson:"worked_hours"`
	AssignedAt  *time.Time `json:"assigned_at" bson:"assigned_at"`
	CompletedAt *time.Time `json:"completed_at" bson:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// DisplayType is the human-facing incident type: the custom label when the
// type is "other", the type itself otherwise.
func (i *Incident) DisplayType() string {
	if i.Type == IncidentTypeOther && i.CustomType != "" {
		return i.CustomType
	}
	return string(i.Type)
}

func (i *Incident) LocationName() string {
	if i.Location.Name != "" {
		return i.Location.Name
	}
	return "Unknown Location"
}

// FindAssignment returns the volunteer's live entry. When every entry for the
// volunteer has been declined it returns the most recent one, so callers can
// still distinguish "declined" from "never dispatched". A re-dispatch after a
// decline appends a fresh entry, which takes precedence here.
func (i *Incident) FindAssignment(volunteerID primitive.ObjectID) *AssignedVolunteer {
	var declined *AssignedVolunteer
	for idx := range i.AssignedVolunteers {
		v := &i.AssignedVolunteers[idx]
		if v.VolunteerID != volunteerID {
			continue
		}
		if v.Status != AssignmentStatusDeclined {
			return v
		}
		declined = v
	}
	return declined
}

// HasCurrentAssignment reports whether the volunteer holds a live entry.
// Declined entries are kept for audit but no longer count as membership, so a
// re-dispatch after a decline creates a fresh pending entry.
func (i *Incident) HasCurrentAssignment(volunteerID primitive.ObjectID) bool {
	for idx := range i.AssignedVolunteers {
		v := &i.AssignedVolunteers[idx]
		if v.VolunteerID == volunteerID && v.Status != AssignmentStatusDeclined {
			return true
		}
	}
	return false
}

// AllDeclined reports whether every assignment entry has been declined. It is
// false for an incident with no entries at all.
func (i *Incident) AllDeclined() bool {
	if len(i.AssignedVolunteers) == 0 {
		return false
	}
	for idx := range i.AssignedVolunteers {
		if i.AssignedVolunteers[idx].Status != AssignmentStatusDeclined {
			return false
		}
	}
	return true
}

// NearbyFilter narrows a geospatial incident search. Empty slices impose no
// restriction.
type NearbyFilter struct {
	Longitude      float64
	Latitude       float64
	RadiusKM       float64
	Types          []IncidentType
	Severities     []Severity
	Statuses       []IncidentStatus
	UnassignedOnly bool
	Limit          int
}

// NearbyIncident is the read-side projection returned by the nearby query:
// the incident plus the calling volunteer's relationship to it.
type NearbyIncident struct {
	*Incident
	IsAssignedToUser     bool              `json:"is_assigned_to_user"`
	UserAssignmentStatus *AssignmentStatus `json:"user_assignment_status"`
}
