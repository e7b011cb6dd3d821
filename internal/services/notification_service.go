package services

import (
	"context"
	"fmt"
	"sync"

	"cera/internal/models"
	"cera/internal/repositories/interfaces"
	"cera/internal/utils"
	"cera/pkg/logger"
	"cera/pkg/push"
	"cera/pkg/sms"
	"cera/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationDispatcher is the fan-out side of an incident event. The state
// machine emits events and moves on; delivery outcomes never affect it.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, event *models.IncidentEvent)
}

type NotificationService interface {
	NotificationDispatcher

	NotifyUser(ctx context.Context, userID primitive.ObjectID, notifType models.NotificationType, title, body string, metadata map[string]string)

	GetUserNotifications(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Notification, int64, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) error
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type notificationService struct {
	notificationRepo interfaces.NotificationRepository
	userRepo         interfaces.UserRepository
	pushProviders    map[string]push.PushProvider
	smsProvider      sms.SMSProvider
	wsHandler        *websocket.Handler
	logger           *logger.Logger
}

func NewNotificationService(
	notificationRepo interfaces.NotificationRepository,
	userRepo interfaces.UserRepository,
	pushProviders map[string]push.PushProvider,
	smsProvider sms.SMSProvider,
	wsHandler *websocket.Handler,
	logger *logger.Logger,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		pushProviders:    pushProviders,
		smsProvider:      smsProvider,
		wsHandler:        wsHandler,
		logger:           logger,
	}
}

// Dispatch resolves an event to its recipients and delivers to each of them
// independently. A failure for one recipient is logged and never blocks the
// others.
func (s *notificationService) Dispatch(ctx context.Context, event *models.IncidentEvent) {
	notifType, title, body := s.renderEvent(event)

	recipients, err := s.resolveRecipients(ctx, event)
	if err != nil {
		s.logger.WithError(err).WithIncidentID(event.IncidentID).Error("Failed to resolve notification recipients")
		return
	}
	if len(recipients) == 0 {
		return
	}

	metadata := map[string]string{
		"incident_id": event.IncidentID.Hex(),
		"event":       string(event.Kind),
	}

	var wg sync.WaitGroup
	for _, recipient := range recipients {
		wg.Add(1)
		go func(recipient *models.User) {
			defer wg.Done()
			s.deliver(ctx, recipient, notifType, title, body, metadata)

			if s.smsProvider != nil && event.Kind == models.EventIncidentReported && event.Severity == models.SeverityHigh && recipient.Phone != "" {
				s.sendSMS(ctx, recipient, title, body)
			}
		}(recipient)
	}
	wg.Wait()

	s.mirrorToRooms(event, notifType, title, body, metadata)
}

// NotifyUser delivers a one-off notification outside the incident event flow,
// such as a volunteer approval.
func (s *notificationService) NotifyUser(ctx context.Context, userID primitive.ObjectID, notifType models.NotificationType, title, body string, metadata map[string]string) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithUserID(userID).Error("Failed to load notification recipient")
		return
	}

	s.deliver(ctx, user, notifType, title, body, metadata)
}

func (s *notificationService) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Notification, int64, error) {
	return s.notificationRepo.GetByUser(ctx, userID, params)
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	return s.notificationRepo.MarkRead(ctx, id, userID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) error {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

func (s *notificationService) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

func (s *notificationService) renderEvent(event *models.IncidentEvent) (models.NotificationType, string, string) {
	var notifType models.NotificationType
	var title, body string

	switch event.Kind {
	case models.EventIncidentReported:
		notifType = models.NotificationTypeIncidentReported
		title = "New Incident Reported"
		body = fmt.Sprintf("A %s incident was reported near %s.", event.IncidentType, event.LocationName)

	case models.EventTaskAssigned:
		notifType = models.NotificationTypeTaskAssigned
		title = "New Task Assigned"
		body = fmt.Sprintf("You have been assigned to a %s incident near %s.", event.IncidentType, event.LocationName)

	case models.EventTaskAccepted:
		notifType = models.NotificationTypeTaskAccepted
		title = "Volunteer Accepted Task"
		body = fmt.Sprintf("%s accepted the %s incident near %s.", event.ActorName, event.IncidentType, event.LocationName)

	case models.EventTaskDeclined:
		notifType = models.NotificationTypeTaskDeclined
		title = "Volunteer Declined Task"
		body = fmt.Sprintf("%s declined the %s incident near %s.", event.ActorName, event.IncidentType, event.LocationName)

	case models.EventTaskCompleted:
		notifType = models.NotificationTypeTaskCompleted
		title = "Task Completed"
		body = fmt.Sprintf("%s completed the %s incident near %s.", event.ActorName, event.IncidentType, event.LocationName)

	case models.EventAssistanceRequested:
		notifType = models.NotificationTypeAssistanceRequested
		title = "Volunteer Needs Assistance"
		body = fmt.Sprintf("%s requested assistance on the %s incident near %s.", event.ActorName, event.IncidentType, event.LocationName)

	case models.EventVolunteerPending:
		notifType = models.NotificationTypeVolunteerPending
		title = "New Volunteer Application"
		body = fmt.Sprintf("%s applied to become a volunteer.", event.ActorName)

	default:
		notifType = models.NotificationTypeGeneral
		title = "Notification"
		body = event.Message
	}

	if event.Message != "" {
		body = event.Message
	}

	return notifType, title, body
}

// resolveRecipients maps an event to users. Dispatches target only the newly
// added volunteers; everything else goes to the coordinators.
func (s *notificationService) resolveRecipients(ctx context.Context, event *models.IncidentEvent) ([]*models.User, error) {
	if event.Kind == models.EventTaskAssigned {
		return s.userRepo.GetByIDs(ctx, event.TargetIDs)
	}

	return s.allCoordinators(ctx)
}

// allCoordinators pages through the role lookup so fan-out is never capped at
// a single page.
func (s *notificationService) allCoordinators(ctx context.Context) ([]*models.User, error) {
	params := &utils.PaginationParams{
		Page:     1,
		PageSize: utils.MaxPageSize,
		Sort:     "created_at",
		Order:    "desc",
	}

	var coordinators []*models.User
	for {
		page, total, err := s.userRepo.GetByRole(ctx, models.UserRoleCoordinator, params)
		if err != nil {
			return nil, err
		}
		coordinators = append(coordinators, page...)

		if len(page) == 0 || int64(len(coordinators)) >= total {
			return coordinators, nil
		}
		params.Page++
	}
}

func (s *notificationService) deliver(ctx context.Context, recipient *models.User, notifType models.NotificationType, title, body string, metadata map[string]string) {
	notification := &models.Notification{
		UserID:   recipient.ID,
		Type:     notifType,
		Title:    title,
		Body:     body,
		Metadata: metadata,
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		s.logger.LogNotificationDelivery(recipient.ID, "inbox", false, map[string]interface{}{"error": err.Error()})
	}

	s.sendPush(ctx, recipient, title, body, metadata)

	if s.wsHandler != nil {
		s.wsHandler.SendUserNotification(recipient.ID, string(notifType), map[string]interface{}{
			"title":    title,
			"body":     body,
			"metadata": metadata,
		})
	}
}

func (s *notificationService) sendPush(ctx context.Context, recipient *models.User, title, body string, metadata map[string]string) {
	for _, token := range recipient.PushTokens {
		provider, ok := s.pushProviders[token.Platform]
		if !ok {
			continue
		}

		_, err := provider.SendNotification(ctx, &push.NotificationRequest{
			Token: token.Token,
			Title: title,
			Body:  body,
			Data:  metadata,
		})

		s.logger.LogNotificationDelivery(recipient.ID, token.Platform, err == nil, map[string]interface{}{
			"title": title,
		})
	}
}

func (s *notificationService) sendSMS(ctx context.Context, recipient *models.User, title, body string) {
	_, err := s.smsProvider.SendSMS(ctx, &sms.SMSRequest{
		To:      recipient.Phone,
		Message: fmt.Sprintf("%s: %s", title, body),
		Type:    "transactional",
	})

	s.logger.LogNotificationDelivery(recipient.ID, "sms", err == nil, map[string]interface{}{
		"title": title,
	})
}

// mirrorToRooms pushes the event into the shared role rooms so connected
// dashboards update without per-user delivery.
func (s *notificationService) mirrorToRooms(event *models.IncidentEvent, notifType models.NotificationType, title, body string, metadata map[string]string) {
	if s.wsHandler == nil {
		return
	}

	data := map[string]interface{}{
		"title":    title,
		"body":     body,
		"metadata": metadata,
	}

	if event.Kind == models.EventTaskAssigned {
		return
	}

	s.wsHandler.SendRoomNotification(websocket.RoomCoordinators, string(notifType), data)
}
