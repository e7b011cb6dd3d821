package services

import (
	"context"
	"fmt"
	"time"

	"cera/internal/models"
	"cera/internal/repositories/interfaces"
	"cera/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentLedger owns the per-volunteer entries on an incident: who was
// dispatched, by whom, and how each one responded. All writes go through the
// incident repository so entries and their audit logs land in one document
// update.
type AssignmentLedger interface {
	ListAssignments(incident *models.Incident) []models.AssignedVolunteer
	NewEntries(incident *models.Incident, volunteerIDs []primitive.ObjectID, assignedBy primitive.ObjectID, at time.Time) []models.AssignedVolunteer
	RecordResponse(ctx context.Context, incident *models.Incident, volunteerID primitive.ObjectID, next models.AssignmentStatus, incidentUpdates map[string]interface{}) (*models.AssignedVolunteer, error)
}

type assignmentLedger struct {
	incidentRepo interfaces.IncidentRepository
}

func NewAssignmentLedger(incidentRepo interfaces.IncidentRepository) AssignmentLedger {
	return &assignmentLedger{
		incidentRepo: incidentRepo,
	}
}

func (l *assignmentLedger) ListAssignments(incident *models.Incident) []models.AssignedVolunteer {
	return incident.AssignedVolunteers
}

// NewEntries builds pending entries for the volunteers not already on the
// incident. A declined entry does not block a fresh dispatch; anything else
// does, so repeating a dispatch is a no-op for the repeated IDs.
func (l *assignmentLedger) NewEntries(incident *models.Incident, volunteerIDs []primitive.ObjectID, assignedBy primitive.ObjectID, at time.Time) []models.AssignedVolunteer {
	var entries []models.AssignedVolunteer
	seen := make(map[primitive.ObjectID]bool, len(volunteerIDs))

	for _, id := range volunteerIDs {
		if seen[id] || incident.HasCurrentAssignment(id) {
			continue
		}
		seen[id] = true

		entries = append(entries, models.AssignedVolunteer{
			VolunteerID: id,
			AssignedBy:  assignedBy,
			AssignedAt:  at,
			Status:      models.AssignmentStatusPending,
		})
	}

	return entries
}

// RecordResponse validates the volunteer's transition against the ledger's
// state machine and persists it together with any incident-level updates.
func (l *assignmentLedger) RecordResponse(ctx context.Context, incident *models.Incident, volunteerID primitive.ObjectID, next models.AssignmentStatus, incidentUpdates map[string]interface{}) (*models.AssignedVolunteer, error) {
	entry := incident.FindAssignment(volunteerID)
	if entry == nil || entry.Status == models.AssignmentStatusDeclined {
		return nil, utils.NewNotFound("assignment")
	}

	if !entry.Status.CanTransitionTo(next) {
		return nil, utils.NewConflict(fmt.Sprintf("cannot move assignment from %q to %q", entry.Status, next))
	}

	if err := l.incidentRepo.UpdateAssignmentStatus(ctx, incident.ID, volunteerID, next, incidentUpdates); err != nil {
		return nil, err
	}

	now := time.Now()
	entry.Status = next
	entry.RespondedAt = &now

	return entry, nil
}
