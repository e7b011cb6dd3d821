package services

import (
	"context"
	"fmt"
	"time"

	"cera/internal/models"
	"cera/internal/repositories/interfaces"
	"cera/internal/utils"
	"cera/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService interface {
	GetProfile(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateAvailability(ctx context.Context, actor models.Actor, status models.AvailabilityStatus) error

	// Volunteer lifecycle
	SubmitVolunteerApplication(ctx context.Context, actor models.Actor, skills []string) error
	PendingVolunteers(ctx context.Context, actor models.Actor, params *utils.PaginationParams) ([]*models.User, int64, error)
	ApproveVolunteer(ctx context.Context, actor models.Actor, volunteerID primitive.ObjectID) error
	LogWorkHours(ctx context.Context, actor models.Actor, incidentID primitive.ObjectID, hours float64, date time.Time) error

	// Devices
	RegisterPushToken(ctx context.Context, actor models.Actor, platform, token string) error
	RemovePushToken(ctx context.Context, actor models.Actor, token string) error
}

type userService struct {
	userRepo     interfaces.UserRepository
	incidentRepo interfaces.IncidentRepository
	notifier     NotificationService
	logger       *logger.Logger
}

func NewUserService(
	userRepo interfaces.UserRepository,
	incidentRepo interfaces.IncidentRepository,
	notifier NotificationService,
	logger *logger.Logger,
) UserService {
	return &userService{
		userRepo:     userRepo,
		incidentRepo: incidentRepo,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *userService) GetProfile(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) UpdateAvailability(ctx context.Context, actor models.Actor, status models.AvailabilityStatus) error {
	if !models.ValidAvailabilityStatus(status) {
		return utils.NewBadRequest(fmt.Sprintf("unknown availability status %q", status))
	}

	if err := s.userRepo.UpdateStatus(ctx, actor.ID, status); err != nil {
		return err
	}

	s.logger.LogUserAction(actor.ID, "availability_changed", map[string]interface{}{
		"status": status,
	})

	return nil
}

// SubmitVolunteerApplication converts a resident into an unapproved volunteer
// and puts the application in front of the coordinators.
func (s *userService) SubmitVolunteerApplication(ctx context.Context, actor models.Actor, skills []string) error {
	user, err := s.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		return err
	}

	if user.Role == models.UserRoleCoordinator {
		return utils.NewConflict("coordinators cannot apply as volunteers")
	}
	if user.Role == models.UserRoleVolunteer && user.Approved {
		return utils.NewConflict("you are already an approved volunteer")
	}

	updates := map[string]interface{}{
		"role":     models.UserRoleVolunteer,
		"approved": false,
	}
	if len(skills) > 0 {
		updates["skills"] = skills
	}

	if err := s.userRepo.Update(ctx, actor.ID, updates); err != nil {
		return err
	}

	s.logger.LogUserAction(actor.ID, "volunteer_application_submitted", nil)

	s.notifier.Dispatch(ctx, &models.IncidentEvent{
		Kind:      models.EventVolunteerPending,
		ActorID:   actor.ID,
		ActorName: user.DisplayName(),
	})

	return nil
}

func (s *userService) PendingVolunteers(ctx context.Context, actor models.Actor, params *utils.PaginationParams) ([]*models.User, int64, error) {
	if !actor.IsCoordinator() {
		return nil, 0, utils.NewForbidden("only coordinators can review volunteer applications")
	}
	return s.userRepo.GetPendingVolunteers(ctx, params)
}

func (s *userService) ApproveVolunteer(ctx context.Context, actor models.Actor, volunteerID primitive.ObjectID) error {
	if !actor.IsCoordinator() {
		return utils.NewForbidden("only coordinators can approve volunteers")
	}

	user, err := s.userRepo.GetByID(ctx, volunteerID)
	if err != nil {
		return err
	}

	if user.Role != models.UserRoleVolunteer {
		return utils.NewConflict("user has no pending volunteer application")
	}
	if user.Approved {
		return utils.NewConflict("volunteer is already approved")
	}

	if err := s.userRepo.Approve(ctx, volunteerID); err != nil {
		return err
	}

	s.logger.LogUserAction(volunteerID, "volunteer_approved", map[string]interface{}{
		"approved_by": actor.ID.Hex(),
	})

	s.notifier.NotifyUser(ctx, volunteerID, models.NotificationTypeVolunteerApproved,
		"Application Approved",
		"Your volunteer application has been approved. You can now receive task assignments.",
		nil)

	return nil
}

// LogWorkHours records hours a volunteer spent on an incident, on both the
// volunteer's work history and the incident's running total.
func (s *userService) LogWorkHours(ctx context.Context, actor models.Actor, incidentID primitive.ObjectID, hours float64, date time.Time) error {
	if !actor.IsVolunteer() {
		return utils.NewForbidden("only volunteers can log work hours")
	}
	if hours <= 0 || hours > utils.MaxWorkLogHours {
		return utils.NewBadRequest(fmt.Sprintf("hours must be between 0 and %v", utils.MaxWorkLogHours))
	}

	incident, err := s.incidentRepo.GetByID(ctx, incidentID)
	if err != nil {
		return err
	}

	if incident.FindAssignment(actor.ID) == nil {
		return utils.NewForbidden("you were never assigned to this incident")
	}

	if date.IsZero() {
		date = time.Now()
	}

	entry := models.WorkLog{
		IncidentID: incidentID,
		Hours:      hours,
		Date:       date,
	}
	if err := s.userRepo.AddWorkLog(ctx, actor.ID, entry); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"worked_hours": incident.WorkedHours + hours,
	}
	if err := s.incidentRepo.Update(ctx, incidentID, updates); err != nil {
		return err
	}

	s.logger.LogUserAction(actor.ID, "work_hours_logged", map[string]interface{}{
		"incident_id": incidentID.Hex(),
		"hours":       hours,
	})

	return nil
}

func (s *userService) RegisterPushToken(ctx context.Context, actor models.Actor, platform, token string) error {
	if platform != utils.PlatformFCM && platform != utils.PlatformAPNS {
		return utils.NewBadRequest(fmt.Sprintf("unknown push platform %q", platform))
	}
	if token == "" {
		return utils.NewBadRequest("token is required")
	}

	return s.userRepo.AddPushToken(ctx, actor.ID, models.PushToken{
		Platform: platform,
		Token:    token,
	})
}

func (s *userService) RemovePushToken(ctx context.Context, actor models.Actor, token string) error {
	if token == "" {
		return utils.NewBadRequest("token is required")
	}
	return s.userRepo.RemovePushToken(ctx, actor.ID, token)
}
