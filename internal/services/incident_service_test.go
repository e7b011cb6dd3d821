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

type incidentServiceFixture struct {
	service      IncidentService
	incidentRepo *fakeIncidentRepo
	userRepo     *fakeUserRepo
	dispatcher   *fakeDispatcher
}

func newIncidentServiceFixture() *incidentServiceFixture {
	incidentRepo := newFakeIncidentRepo()
	userRepo := newFakeUserRepo()
	dispatcher := &fakeDispatcher{}
	ledger := NewAssignmentLedger(incidentRepo)

	service := NewIncidentService(incidentRepo, userRepo, ledger, nil, nil, nil, dispatcher, testLogger())

	return &incidentServiceFixture{
		service:      service,
		incidentRepo: incidentRepo,
		userRepo:     userRepo,
		dispatcher:   dispatcher,
	}
}

func (f *incidentServiceFixture) seedIncident(status models.IncidentStatus, entries ...models.AssignedVolunteer) *models.Incident {
	incident := &models.Incident{
		ReporterID:         primitive.NewObjectID(),
		Type:               models.IncidentTypeFlood,
		Severity:           models.SeverityMedium,
		Location:           models.NewPoint(36.8219, -1.2921, "Riverside"),
		Status:             status,
		AssignedVolunteers: entries,
	}
	f.incidentRepo.Create(context.Background(), incident)
	return incident
}

func (f *incidentServiceFixture) seedVolunteer(username string, status models.AvailabilityStatus) *models.User {
	return f.userRepo.add(&models.User{
		Username:  username,
		Email:     username + "@example.com",
		Role:      models.UserRoleVolunteer,
		Certified: true,
		Approved:  true,
		Status:    status,
	})
}

func coordinatorActor() models.Actor {
	return models.Actor{ID: primitive.NewObjectID(), Role: models.UserRoleCoordinator, Name: "dispatch-lead"}
}

func volunteerActor(id primitive.ObjectID) models.Actor {
	return models.Actor{ID: id, Role: models.UserRoleVolunteer, Name: "responder"}
}

func TestReportIncident(t *testing.T) {
	f := newIncidentServiceFixture()
	actor := models.Actor{ID: primitive.NewObjectID(), Role: models.UserRoleResident, Name: "jane"}

	incident, err := f.service.Report(context.Background(), actor, &ReportIncidentInput{
		Type:        models.IncidentTypeFire,
		CustomType:  "ignored for known types",
		Description: "warehouse fire",
		Severity:    models.SeverityHigh,
		Affected:    12,
		Latitude:    -1.2921,
		Longitude:   36.8219,
	})
	require.NoError(t, err)

	assert.Equal(t, models.IncidentStatusPending, incident.Status)
	assert.Equal(t, actor.ID, incident.ReporterID)
	assert.Empty(t, incident.CustomType)
	assert.False(t, incident.ID.IsZero())

	event := f.dispatcher.lastEvent()
	require.NotNil(t, event)
	assert.Equal(t, models.EventIncidentReported, event.Kind)
	assert.Equal(t, incident.ID, event.IncidentID)
}

func TestReportIncidentValidation(t *testing.T) {
	f := newIncidentServiceFixture()
	actor := models.Actor{ID: primitive.NewObjectID(), Role: models.UserRoleResident}

	_, err := f.service.Report(context.Background(), actor, &ReportIncidentInput{
		Type:      "volcano",
		Latitude:  0,
		Longitude: 0,
	})
	appErr, ok := utils.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeBadRequest, appErr.Code)

	_, err = f.service.Report(context.Background(), actor, &ReportIncidentInput{
		Type:      models.IncidentTypeFire,
		Latitude:  200,
		Longitude: 36.8,
	})
	appErr, ok = utils.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeBadRequest, appErr.Code)
}

func TestReportIncidentKeepsCustomTypeForOther(t *testing.T) {
	f := newIncidentServiceFixture()
	actor := models.Actor{ID: primitive.NewObjectID(), Role: models.UserRoleResident}

	incident, err := f.service.Report(context.Background(), actor, &ReportIncidentInput{
		Type:       models.IncidentTypeOther,
		CustomType: "gas leak",
		Latitude:   -1.29,
		Longitude:  36.82,
	})
	require.NoError(t, err)
	assert.Equal(t, "gas leak", incident.CustomType)
	assert.Equal(t, "gas leak", incident.DisplayType())
}

func TestApproveIncident(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusPending)

	approved, err := f.service.Approve(context.Background(), coordinatorActor(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusApproved, approved.Status)
	require.Len(t, approved.Logs, 1)
	assert.Equal(t, models.LogActionApproved, approved.Logs[0].Action)

	// Already approved
	_, err = f.service.Approve(context.Background(), coordinatorActor(), incident.ID)
	assert.True(t, utils.IsConflict(err))
}

func TestApproveRequiresCoordinator(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusPending)

	_, err := f.service.Approve(context.Background(), volunteerActor(primitive.NewObjectID()), incident.ID)
	assert.True(t, utils.IsForbidden(err))
}

func TestDispatchVolunteers(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusApproved)
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	bob := f.seedVolunteer("bob", models.AvailabilityBusy)

	dispatched, err := f.service.Dispatch(context.Background(), coordinatorActor(), incident.ID, []primitive.ObjectID{alice.ID, bob.ID})
	require.NoError(t, err)

	assert.Equal(t, models.IncidentStatusAssigned, dispatched.Status)
	assert.NotNil(t, dispatched.AssignedAt)
	require.Len(t, dispatched.AssignedVolunteers, 2)
	for _, entry := range dispatched.AssignedVolunteers {
		assert.Equal(t, models.AssignmentStatusPending, entry.Status)
	}
	assert.Len(t, dispatched.Logs, 2)

	event := f.dispatcher.lastEvent()
	require.NotNil(t, event)
	assert.Equal(t, models.EventTaskAssigned, event.Kind)
	assert.ElementsMatch(t, []primitive.ObjectID{alice.ID, bob.ID}, event.TargetIDs)
}

func TestDispatchIsIdempotent(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusApproved)
	alice := f.seedVolunteer("alice", models.AvailabilityActive)

	_, err := f.service.Dispatch(context.Background(), coordinatorActor(), incident.ID, []primitive.ObjectID{alice.ID})
	require.NoError(t, err)
	eventsAfterFirst := f.dispatcher.count()

	// Repeating the same dispatch adds nothing and notifies nobody.
	dispatched, err := f.service.Dispatch(context.Background(), coordinatorActor(), incident.ID, []primitive.ObjectID{alice.ID})
	require.NoError(t, err)
	assert.Len(t, dispatched.AssignedVolunteers, 1)
	assert.Equal(t, eventsAfterFirst, f.dispatcher.count())
}

func TestDispatchRejectsUnavailableVolunteer(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusApproved)
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	carol := f.seedVolunteer("carol", models.AvailabilityAway)

	// One bad candidate fails the whole batch.
	_, err := f.service.Dispatch(context.Background(), coordinatorActor(), incident.ID, []primitive.ObjectID{alice.ID, carol.ID})
	require.Error(t, err)
	appErr, ok := utils.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeConflict, appErr.Code)
	assert.Equal(t, `Cannot assign carol. They are currently "away".`, appErr.Message)

	refreshed, err := f.incidentRepo.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Empty(t, refreshed.AssignedVolunteers)
}

func TestDispatchRejectsUncertifiedVolunteer(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusApproved)
	dave := f.userRepo.add(&models.User{
		Username: "dave",
		Role:     models.UserRoleVolunteer,
		Approved: true,
		Status:   models.AvailabilityActive,
	})

	_, err := f.service.Dispatch(context.Background(), coordinatorActor(), incident.ID, []primitive.ObjectID{dave.ID})
	assert.True(t, utils.IsConflict(err))
}

func TestDispatchUnknownVolunteer(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusApproved)

	_, err := f.service.Dispatch(context.Background(), coordinatorActor(), incident.ID, []primitive.ObjectID{primitive.NewObjectID()})
	assert.True(t, utils.IsNotFound(err))
}

func TestDispatchRequiresApprovedIncident(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusPending)
	alice := f.seedVolunteer("alice", models.AvailabilityActive)

	_, err := f.service.Dispatch(context.Background(), coordinatorActor(), incident.ID, []primitive.ObjectID{alice.ID})
	assert.True(t, utils.IsConflict(err))
}

func TestDispatchAfterDeclineCreatesFreshEntry(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	incident := f.seedIncident(models.IncidentStatusAssigned, models.AssignedVolunteer{
		VolunteerID: alice.ID,
		AssignedAt:  time.Now(),
		Status:      models.AssignmentStatusDeclined,
	})

	dispatched, err := f.service.Dispatch(context.Background(), coordinatorActor(), incident.ID, []primitive.ObjectID{alice.ID})
	require.NoError(t, err)

	// The declined entry stays for audit; a new pending one is appended.
	require.Len(t, dispatched.AssignedVolunteers, 2)
	assert.Equal(t, models.AssignmentStatusDeclined, dispatched.AssignedVolunteers[0].Status)
	assert.Equal(t, models.AssignmentStatusPending, dispatched.AssignedVolunteers[1].Status)
}

func TestAcceptTask(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	incident := f.seedIncident(models.IncidentStatusAssigned, models.AssignedVolunteer{
		VolunteerID: alice.ID,
		AssignedAt:  time.Now(),
		Status:      models.AssignmentStatusPending,
	})

	accepted, err := f.service.Accept(context.Background(), volunteerActor(alice.ID), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusInProgress, accepted.Status)

	entry := accepted.FindAssignment(alice.ID)
	require.NotNil(t, entry)
	assert.Equal(t, models.AssignmentStatusAccepted, entry.Status)
	assert.NotNil(t, entry.RespondedAt)

	event := f.dispatcher.lastEvent()
	require.NotNil(t, event)
	assert.Equal(t, models.EventTaskAccepted, event.Kind)

	// Accepting twice is an invalid transition.
	_, err = f.service.Accept(context.Background(), volunteerActor(alice.ID), incident.ID)
	assert.True(t, utils.IsConflict(err))
}

func TestAcceptWithoutAssignment(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusAssigned)

	_, err := f.service.Accept(context.Background(), volunteerActor(primitive.NewObjectID()), incident.ID)
	assert.True(t, utils.IsNotFound(err))
}

func TestDeclineRevertsWhenAllDeclined(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	bob := f.seedVolunteer("bob", models.AvailabilityActive)
	incident := f.seedIncident(models.IncidentStatusAssigned,
		models.AssignedVolunteer{VolunteerID: alice.ID, AssignedAt: time.Now(), Status: models.AssignmentStatusPending},
		models.AssignedVolunteer{VolunteerID: bob.ID, AssignedAt: time.Now(), Status: models.AssignmentStatusPending},
	)

	declined, err := f.service.Decline(context.Background(), volunteerActor(alice.ID), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusAssigned, declined.Status)

	// The last decline sends the incident back to the dispatch pool.
	declined, err = f.service.Decline(context.Background(), volunteerActor(bob.ID), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusApproved, declined.Status)
}

func TestDeclinedVolunteerCannotRespondAgain(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	incident := f.seedIncident(models.IncidentStatusAssigned, models.AssignedVolunteer{
		VolunteerID: alice.ID,
		AssignedAt:  time.Now(),
		Status:      models.AssignmentStatusDeclined,
	})

	_, err := f.service.Accept(context.Background(), volunteerActor(alice.ID), incident.ID)
	assert.True(t, utils.IsNotFound(err))
}

func TestCompleteTask(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	incident := f.seedIncident(models.IncidentStatusInProgress, models.AssignedVolunteer{
		VolunteerID: alice.ID,
		AssignedAt:  time.Now(),
		Status:      models.AssignmentStatusAccepted,
	})

	completed, err := f.service.Complete(context.Background(), volunteerActor(alice.ID), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	event := f.dispatcher.lastEvent()
	require.NotNil(t, event)
	assert.Equal(t, models.EventTaskCompleted, event.Kind)
}

func TestCompleteClosesIncidentWithOtherVolunteersActive(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	bob := f.seedVolunteer("bob", models.AvailabilityActive)
	incident := f.seedIncident(models.IncidentStatusInProgress,
		models.AssignedVolunteer{VolunteerID: alice.ID, AssignedAt: time.Now(), Status: models.AssignmentStatusAccepted},
		models.AssignedVolunteer{VolunteerID: bob.ID, AssignedAt: time.Now(), Status: models.AssignmentStatusAccepted},
	)

	// The first completion closes the incident; the other entry keeps its
	// own sub-state.
	completed, err := f.service.Complete(context.Background(), volunteerActor(alice.ID), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusCompleted, completed.Status)

	entry := completed.FindAssignment(bob.ID)
	require.NotNil(t, entry)
	assert.Equal(t, models.AssignmentStatusAccepted, entry.Status)
}

func TestCompleteRequiresInProgressIncident(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	incident := f.seedIncident(models.IncidentStatusAssigned, models.AssignedVolunteer{
		VolunteerID: alice.ID,
		AssignedAt:  time.Now(),
		Status:      models.AssignmentStatusPending,
	})

	_, err := f.service.Complete(context.Background(), volunteerActor(alice.ID), incident.ID)
	assert.True(t, utils.IsConflict(err))
}

func TestContactCoordinators(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	incident := f.seedIncident(models.IncidentStatusInProgress, models.AssignedVolunteer{
		VolunteerID: alice.ID,
		AssignedAt:  time.Now(),
		Status:      models.AssignmentStatusAccepted,
	})

	err := f.service.ContactCoordinators(context.Background(), volunteerActor(alice.ID), incident.ID, "Need a medic on site")
	require.NoError(t, err)

	event := f.dispatcher.lastEvent()
	require.NotNil(t, event)
	assert.Equal(t, models.EventAssistanceRequested, event.Kind)
	assert.Contains(t, event.Message, "Need a medic on site")

	refreshed, err := f.incidentRepo.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	require.Len(t, refreshed.Logs, 1)
	assert.Equal(t, models.LogActionContactedCoordinators, refreshed.Logs[0].Action)
	assert.Equal(t, "Need a medic on site", refreshed.Logs[0].Message)
}

func TestContactCoordinatorsRequiresAssignment(t *testing.T) {
	f := newIncidentServiceFixture()
	incident := f.seedIncident(models.IncidentStatusInProgress)

	err := f.service.ContactCoordinators(context.Background(), volunteerActor(primitive.NewObjectID()), incident.ID, "")
	assert.True(t, utils.IsForbidden(err))
}

func TestNearbyProjection(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	f.seedIncident(models.IncidentStatusAssigned, models.AssignedVolunteer{
		VolunteerID: alice.ID,
		AssignedAt:  time.Now(),
		Status:      models.AssignmentStatusAccepted,
	})

	results, err := f.service.Nearby(context.Background(), volunteerActor(alice.ID), &models.NearbyFilter{
		Latitude:  -1.29,
		Longitude: 36.82,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].IsAssignedToUser)
	require.NotNil(t, results[0].UserAssignmentStatus)
	assert.Equal(t, models.AssignmentStatusAccepted, *results[0].UserAssignmentStatus)
}

func TestNearbyDeclinedIsNotMembership(t *testing.T) {
	f := newIncidentServiceFixture()
	alice := f.seedVolunteer("alice", models.AvailabilityActive)
	f.seedIncident(models.IncidentStatusApproved, models.AssignedVolunteer{
		VolunteerID: alice.ID,
		AssignedAt:  time.Now(),
		Status:      models.AssignmentStatusDeclined,
	})

	results, err := f.service.Nearby(context.Background(), volunteerActor(alice.ID), &models.NearbyFilter{
		Latitude:  -1.29,
		Longitude: 36.82,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].IsAssignedToUser)
	require.NotNil(t, results[0].UserAssignmentStatus)
	assert.Equal(t, models.AssignmentStatusDeclined, *results[0].UserAssignmentStatus)
}

func TestNearbyOrdersNewestFirst(t *testing.T) {
	f := newIncidentServiceFixture()
	oldest := f.seedIncident(models.IncidentStatusPending)
	middle := f.seedIncident(models.IncidentStatusPending)
	newest := f.seedIncident(models.IncidentStatusPending)

	base := time.Now()
	oldest.CreatedAt = base.Add(-2 * time.Hour)
	middle.CreatedAt = base.Add(-1 * time.Hour)
	newest.CreatedAt = base

	results, err := f.service.Nearby(context.Background(), coordinatorActor(), &models.NearbyFilter{
		Latitude:  -1.29,
		Longitude: 36.82,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, newest.ID, results[0].Incident.ID)
	assert.Equal(t, middle.ID, results[1].Incident.ID)
	assert.Equal(t, oldest.ID, results[2].Incident.ID)
}
