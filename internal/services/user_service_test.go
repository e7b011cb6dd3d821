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

type userServiceFixture struct {
	service          UserService
	userRepo         *fakeUserRepo
	incidentRepo     *fakeIncidentRepo
	notificationRepo *fakeNotificationRepo
}

func newUserServiceFixture() *userServiceFixture {
	userRepo := newFakeUserRepo()
	incidentRepo := newFakeIncidentRepo()
	notificationRepo := &fakeNotificationRepo{}

	notifier := NewNotificationService(notificationRepo, userRepo, nil, nil, nil, testLogger())
	service := NewUserService(userRepo, incidentRepo, notifier, testLogger())

	return &userServiceFixture{
		service:          service,
		userRepo:         userRepo,
		incidentRepo:     incidentRepo,
		notificationRepo: notificationRepo,
	}
}

func TestUpdateAvailability(t *testing.T) {
	f := newUserServiceFixture()
	user := f.userRepo.add(&models.User{Username: "alice", Role: models.UserRoleVolunteer, Status: models.AvailabilityActive})
	actor := models.Actor{ID: user.ID, Role: models.UserRoleVolunteer}

	require.NoError(t, f.service.UpdateAvailability(context.Background(), actor, models.AvailabilityAway))
	assert.Equal(t, models.AvailabilityAway, user.Status)

	err := f.service.UpdateAvailability(context.Background(), actor, "vacationing")
	appErr, ok := utils.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeBadRequest, appErr.Code)
}

func TestVolunteerApplicationFlow(t *testing.T) {
	f := newUserServiceFixture()
	coordinator := f.userRepo.add(&models.User{Username: "coord", Role: models.UserRoleCoordinator})
	resident := f.userRepo.add(&models.User{Username: "jane", Role: models.UserRoleResident})

	actor := models.Actor{ID: resident.ID, Role: models.UserRoleResident, Name: "jane"}
	require.NoError(t, f.service.SubmitVolunteerApplication(context.Background(), actor, []string{"first aid"}))

	assert.Equal(t, models.UserRoleVolunteer, resident.Role)
	assert.False(t, resident.Approved)
	assert.Equal(t, []string{"first aid"}, resident.Skills)

	// Coordinators hear about the application.
	notifications := f.notificationRepo.byUser(coordinator.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeVolunteerPending, notifications[0].Type)

	// Review and approve.
	coordActor := models.Actor{ID: coordinator.ID, Role: models.UserRoleCoordinator}
	pending, total, err := f.service.PendingVolunteers(context.Background(), coordActor, utils.GetDefaultPaginationParams())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)

	require.NoError(t, f.service.ApproveVolunteer(context.Background(), coordActor, resident.ID))
	assert.True(t, resident.Approved)
	assert.NotNil(t, resident.ApprovedAt)

	approvedNotes := f.notificationRepo.byUser(resident.ID)
	require.Len(t, approvedNotes, 1)
	assert.Equal(t, models.NotificationTypeVolunteerApproved, approvedNotes[0].Type)

	// Approving twice conflicts.
	err = f.service.ApproveVolunteer(context.Background(), coordActor, resident.ID)
	assert.True(t, utils.IsConflict(err))
}

func TestPendingVolunteersRequiresCoordinator(t *testing.T) {
	f := newUserServiceFixture()
	actor := models.Actor{ID: primitive.NewObjectID(), Role: models.UserRoleVolunteer}

	_, _, err := f.service.PendingVolunteers(context.Background(), actor, utils.GetDefaultPaginationParams())
	assert.True(t, utils.IsForbidden(err))
}

func TestLogWorkHours(t *testing.T) {
	f := newUserServiceFixture()
	volunteer := f.userRepo.add(&models.User{Username: "alice", Role: models.UserRoleVolunteer})
	actor := models.Actor{ID: volunteer.ID, Role: models.UserRoleVolunteer}

	incident := &models.Incident{
		Type:   models.IncidentTypeRescue,
		Status: models.IncidentStatusInProgress,
		AssignedVolunteers: []models.AssignedVolunteer{
			{VolunteerID: volunteer.ID, Status: models.AssignmentStatusCompleted},
		},
	}
	f.incidentRepo.Create(context.Background(), incident)

	require.NoError(t, f.service.LogWorkHours(context.Background(), actor, incident.ID, 3.5, time.Now()))

	assert.Equal(t, 3.5, volunteer.TotalVolunteerHours)
	require.Len(t, volunteer.WorkLogs, 1)
	assert.Equal(t, incident.ID, volunteer.WorkLogs[0].IncidentID)

	refreshed, err := f.incidentRepo.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.5, refreshed.WorkedHours)
}

func TestLogWorkHoursRequiresAssignment(t *testing.T) {
	f := newUserServiceFixture()
	volunteer := f.userRepo.add(&models.User{Username: "alice", Role: models.UserRoleVolunteer})
	actor := models.Actor{ID: volunteer.ID, Role: models.UserRoleVolunteer}

	incident := &models.Incident{Type: models.IncidentTypeRescue, Status: models.IncidentStatusInProgress}
	f.incidentRepo.Create(context.Background(), incident)

	err := f.service.LogWorkHours(context.Background(), actor, incident.ID, 2, time.Now())
	assert.True(t, utils.IsForbidden(err))
}

func TestLogWorkHoursValidatesRange(t *testing.T) {
	f := newUserServiceFixture()
	actor := models.Actor{ID: primitive.NewObjectID(), Role: models.UserRoleVolunteer}

	err := f.service.LogWorkHours(context.Background(), actor, primitive.NewObjectID(), 0, time.Now())
	appErr, ok := utils.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeBadRequest, appErr.Code)

	err = f.service.LogWorkHours(context.Background(), actor, primitive.NewObjectID(), 36, time.Now())
	appErr, ok = utils.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeBadRequest, appErr.Code)
}

func TestPushTokenLifecycle(t *testing.T) {
	f := newUserServiceFixture()
	user := f.userRepo.add(&models.User{Username: "alice", Role: models.UserRoleVolunteer})
	actor := models.Actor{ID: user.ID, Role: models.UserRoleVolunteer}

	require.NoError(t, f.service.RegisterPushToken(context.Background(), actor, utils.PlatformFCM, "device-token-1"))
	// Re-registering the same token does not duplicate it.
	require.NoError(t, f.service.RegisterPushToken(context.Background(), actor, utils.PlatformFCM, "device-token-1"))
	require.Len(t, user.PushTokens, 1)

	err := f.service.RegisterPushToken(context.Background(), actor, "pager", "device-token-2")
	appErr, ok := utils.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.CodeBadRequest, appErr.Code)

	require.NoError(t, f.service.RemovePushToken(context.Background(), actor, "device-token-1"))
	assert.Empty(t, user.PushTokens)
}
