package services

import (
	"context"
	"fmt"
	"testing"

	"cera/internal/models"
	"cera/internal/utils"
	"cera/pkg/push"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type notificationServiceFixture struct {
	service          NotificationService
	notificationRepo *fakeNotificationRepo
	userRepo         *fakeUserRepo
	pushProvider     *fakePushProvider
	smsProvider      *fakeSMSProvider
}

func newNotificationServiceFixture() *notificationServiceFixture {
	notificationRepo := &fakeNotificationRepo{}
	userRepo := newFakeUserRepo()
	pushProvider := &fakePushProvider{}
	smsProvider := &fakeSMSProvider{}

	service := NewNotificationService(
		notificationRepo,
		userRepo,
		map[string]push.PushProvider{utils.PlatformFCM: pushProvider},
		smsProvider,
		nil,
		testLogger(),
	)

	return &notificationServiceFixture{
		service:          service,
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		pushProvider:     pushProvider,
		smsProvider:      smsProvider,
	}
}

func (f *notificationServiceFixture) seedCoordinator(username string) *models.User {
	return f.userRepo.add(&models.User{
		Username: username,
		Role:     models.UserRoleCoordinator,
		PushTokens: []models.PushToken{
			{Platform: utils.PlatformFCM, Token: username + "-token"},
		},
	})
}

func TestDispatchNotifiesCoordinatorsOnReport(t *testing.T) {
	f := newNotificationServiceFixture()
	coordA := f.seedCoordinator("coord-a")
	coordB := f.seedCoordinator("coord-b")
	f.userRepo.add(&models.User{Username: "bystander", Role: models.UserRoleResident})

	f.service.Dispatch(context.Background(), &models.IncidentEvent{
		Kind:         models.EventIncidentReported,
		IncidentID:   primitive.NewObjectID(),
		IncidentType: "fire",
		LocationName: "Riverside",
		Severity:     models.SeverityMedium,
	})

	forA := f.notificationRepo.byUser(coordA.ID)
	forB := f.notificationRepo.byUser(coordB.ID)
	require.Len(t, forA, 1)
	require.Len(t, forB, 1)

	assert.Equal(t, "New Incident Reported", forA[0].Title)
	assert.Equal(t, "A fire incident was reported near Riverside.", forA[0].Body)
	assert.Equal(t, models.NotificationTypeIncidentReported, forA[0].Type)

	// One push per coordinator token, no SMS below High severity.
	assert.Equal(t, 2, f.pushProvider.sent())
	assert.Empty(t, f.smsProvider.messages)
}

func TestDispatchTargetsOnlyNewVolunteers(t *testing.T) {
	f := newNotificationServiceFixture()
	f.seedCoordinator("coord")
	alice := f.userRepo.add(&models.User{Username: "alice", Role: models.UserRoleVolunteer})
	f.userRepo.add(&models.User{Username: "bob", Role: models.UserRoleVolunteer})

	f.service.Dispatch(context.Background(), &models.IncidentEvent{
		Kind:         models.EventTaskAssigned,
		IncidentID:   primitive.NewObjectID(),
		IncidentType: "flood",
		LocationName: "Riverside",
		TargetIDs:    []primitive.ObjectID{alice.ID},
	})

	forAlice := f.notificationRepo.byUser(alice.ID)
	require.Len(t, forAlice, 1)
	assert.Equal(t, "New Task Assigned", forAlice[0].Title)
	assert.Equal(t, "You have been assigned to a flood incident near Riverside.", forAlice[0].Body)

	// Neither the uninvolved volunteer nor the coordinators are notified.
	assert.Len(t, f.notificationRepo.notifications, 1)
}

func TestDispatchReachesCoordinatorsBeyondOnePage(t *testing.T) {
	f := newNotificationServiceFixture()
	count := utils.MaxPageSize + 50
	for i := 0; i < count; i++ {
		f.userRepo.add(&models.User{
			Username: fmt.Sprintf("coord-%03d", i),
			Role:     models.UserRoleCoordinator,
		})
	}

	f.service.Dispatch(context.Background(), &models.IncidentEvent{
		Kind:         models.EventIncidentReported,
		IncidentID:   primitive.NewObjectID(),
		IncidentType: "flood",
		LocationName: "Riverside",
		Severity:     models.SeverityMedium,
	})

	assert.Len(t, f.notificationRepo.notifications, count)
}

func TestDispatchSendsSMSForHighSeverityReports(t *testing.T) {
	f := newNotificationServiceFixture()
	coord := f.seedCoordinator("coord")
	coord.Phone = "+254700000001"

	f.service.Dispatch(context.Background(), &models.IncidentEvent{
		Kind:         models.EventIncidentReported,
		IncidentID:   primitive.NewObjectID(),
		IncidentType: "earthquake",
		LocationName: "Downtown",
		Severity:     models.SeverityHigh,
	})

	require.Len(t, f.smsProvider.messages, 1)
	assert.Equal(t, "+254700000001", f.smsProvider.messages[0].To)
	assert.Contains(t, f.smsProvider.messages[0].Message, "New Incident Reported")
}

func TestDispatchIsolatesRecipientFailures(t *testing.T) {
	f := newNotificationServiceFixture()
	broken := f.seedCoordinator("broken")
	healthy := f.seedCoordinator("healthy")
	f.notificationRepo.failForUser = broken.ID

	f.service.Dispatch(context.Background(), &models.IncidentEvent{
		Kind:         models.EventAssistanceRequested,
		IncidentID:   primitive.NewObjectID(),
		IncidentType: "rescue",
		LocationName: "Harbor",
		ActorName:    "alice",
	})

	// The healthy coordinator still receives both inbox and push delivery.
	require.Len(t, f.notificationRepo.byUser(healthy.ID), 1)
	assert.Equal(t, 2, f.pushProvider.sent())
}

func TestDispatchEventRendering(t *testing.T) {
	f := newNotificationServiceFixture()
	coord := f.seedCoordinator("coord")

	cases := []struct {
		kind  models.EventKind
		title string
	}{
		{models.EventTaskAccepted, "Volunteer Accepted Task"},
		{models.EventTaskDeclined, "Volunteer Declined Task"},
		{models.EventTaskCompleted, "Task Completed"},
		{models.EventAssistanceRequested, "Volunteer Needs Assistance"},
		{models.EventVolunteerPending, "New Volunteer Application"},
	}

	for _, tc := range cases {
		f.service.Dispatch(context.Background(), &models.IncidentEvent{
			Kind:         tc.kind,
			IncidentID:   primitive.NewObjectID(),
			IncidentType: "medical",
			LocationName: "Clinic",
			ActorName:    "alice",
		})
	}

	notifications := f.notificationRepo.byUser(coord.ID)
	require.Len(t, notifications, len(cases))
	for i, tc := range cases {
		assert.Equal(t, tc.title, notifications[i].Title, "event %s", tc.kind)
	}
}

func TestNotifyUser(t *testing.T) {
	f := newNotificationServiceFixture()
	user := f.userRepo.add(&models.User{Username: "alice", Role: models.UserRoleVolunteer})

	f.service.NotifyUser(context.Background(), user.ID, models.NotificationTypeVolunteerApproved,
		"Application Approved", "Welcome aboard.", nil)

	notifications := f.notificationRepo.byUser(user.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeVolunteerApproved, notifications[0].Type)
}

func TestMarkReadFlow(t *testing.T) {
	f := newNotificationServiceFixture()
	user := f.userRepo.add(&models.User{Username: "alice", Role: models.UserRoleVolunteer})

	f.service.NotifyUser(context.Background(), user.ID, models.NotificationTypeGeneral, "One", "first", nil)
	f.service.NotifyUser(context.Background(), user.ID, models.NotificationTypeGeneral, "Two", "second", nil)

	count, err := f.service.CountUnread(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	notifications := f.notificationRepo.byUser(user.ID)
	require.NoError(t, f.service.MarkRead(context.Background(), notifications[0].ID, user.ID))

	count, err = f.service.CountUnread(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, f.service.MarkAllRead(context.Background(), user.ID))
	count, err = f.service.CountUnread(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// A foreign notification cannot be marked read.
	err = f.service.MarkRead(context.Background(), notifications[0].ID, primitive.NewObjectID())
	assert.True(t, utils.IsNotFound(err))
}
