package services

import (
	"context"
	"testing"
	"time"

	"cera/internal/models"
	"cera/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewEntriesSkipsCurrentMembers(t *testing.T) {
	repo := newFakeIncidentRepo()
	ledger := NewAssignmentLedger(repo)

	existing := primitive.NewObjectID()
	fresh := primitive.NewObjectID()
	incident := &models.Incident{
		AssignedVolunteers: []models.AssignedVolunteer{
			{VolunteerID: existing, Status: models.AssignmentStatusAccepted},
		},
	}

	entries := ledger.NewEntries(incident, []primitive.ObjectID{existing, fresh, fresh}, primitive.NewObjectID(), time.Now())

	require.Len(t, entries, 1)
	assert.Equal(t, fresh, entries[0].VolunteerID)
	assert.Equal(t, models.AssignmentStatusPending, entries[0].Status)
}

func TestNewEntriesAllowsRedispatchAfterDecline(t *testing.T) {
	repo := newFakeIncidentRepo()
	ledger := NewAssignmentLedger(repo)

	declined := primitive.NewObjectID()
	incident := &models.Incident{
		AssignedVolunteers: []models.AssignedVolunteer{
			{VolunteerID: declined, Status: models.AssignmentStatusDeclined},
		},
	}

	entries := ledger.NewEntries(incident, []primitive.ObjectID{declined}, primitive.NewObjectID(), time.Now())
	require.Len(t, entries, 1)
	assert.Equal(t, declined, entries[0].VolunteerID)
}

func TestRecordResponseValidatesTransition(t *testing.T) {
	repo := newFakeIncidentRepo()
	ledger := NewAssignmentLedger(repo)

	volunteerID := primitive.NewObjectID()
	incident := &models.Incident{
		AssignedVolunteers: []models.AssignedVolunteer{
			{VolunteerID: volunteerID, Status: models.AssignmentStatusPending},
		},
	}
	repo.Create(context.Background(), incident)

	// A pending entry cannot jump straight to completed.
	_, err := ledger.RecordResponse(context.Background(), incident, volunteerID, models.AssignmentStatusCompleted, nil)
	assert.True(t, utils.IsConflict(err))

	entry, err := ledger.RecordResponse(context.Background(), incident, volunteerID, models.AssignmentStatusAccepted, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusAccepted, entry.Status)
	assert.NotNil(t, entry.RespondedAt)
}

func TestRecordResponseUnknownVolunteer(t *testing.T) {
	repo := newFakeIncidentRepo()
	ledger := NewAssignmentLedger(repo)

	incident := &models.Incident{}
	repo.Create(context.Background(), incident)

	_, err := ledger.RecordResponse(context.Background(), incident, primitive.NewObjectID(), models.AssignmentStatusAccepted, nil)
	assert.True(t, utils.IsNotFound(err))
}
