package services

import (
	"context"
	"fmt"
	"time"

	"cera/internal/models"
	"cera/internal/repositories/interfaces"
	"cera/internal/utils"
	"cera/pkg/cache"
	"cera/pkg/logger"
	"cera/pkg/maps"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IncidentService interface {
	// Reporting and reads
	Report(ctx context.Context, actor models.Actor, input *ReportIncidentInput) (*models.Incident, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Incident, error)
	List(ctx context.Context, status models.IncidentStatus, incidentType models.IncidentType, params *utils.PaginationParams) ([]*models.Incident, int64, error)
	MyIncidents(ctx context.Context, actor models.Actor, params *utils.PaginationParams) ([]*models.Incident, int64, error)
	AssignedToMe(ctx context.Context, actor models.Actor) ([]*models.Incident, error)
	CompletedByMe(ctx context.Context, actor models.Actor) ([]*models.Incident, error)
	Nearby(ctx context.Context, actor models.Actor, filter *models.NearbyFilter) ([]*models.NearbyIncident, error)

	// Coordination
	Approve(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Incident, error)
	Dispatch(ctx context.Context, actor models.Actor, id primitive.ObjectID, volunteerIDs []primitive.ObjectID) (*models.Incident, error)

	// Volunteer responses
	Accept(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Incident, error)
	Decline(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Incident, error)
	Complete(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Incident, error)
	ContactCoordinators(ctx context.Context, actor models.Actor, id primitive.ObjectID, message string) error
}

type ReportIncidentInput struct {
	Type         models.IncidentType
	CustomType   string
	Description  string
	Severity     models.Severity
	Affected     int
	Longitude    float64
	Latitude     float64
	LocationName string
	Photos       []*PhotoUpload
}

type incidentService struct {
	incidentRepo interfaces.IncidentRepository
	userRepo     interfaces.UserRepository
	ledger       AssignmentLedger
	media        MediaService
	maps         maps.MapsProvider
	cache        CacheService
	dispatcher   NotificationDispatcher
	logger       *logger.Logger
}

func NewIncidentService(
	incidentRepo interfaces.IncidentRepository,
	userRepo interfaces.UserRepository,
	ledger AssignmentLedger,
	media MediaService,
	mapsProvider maps.MapsProvider,
	cacheService CacheService,
	dispatcher NotificationDispatcher,
	logger *logger.Logger,
) IncidentService {
	return &incidentService{
		incidentRepo: incidentRepo,
		userRepo:     userRepo,
		ledger:       ledger,
		media:        media,
		maps:         mapsProvider,
		cache:        cacheService,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

func (s *incidentService) Report(ctx context.Context, actor models.Actor, input *ReportIncidentInput) (*models.Incident, error) {
	if !models.ValidIncidentType(input.Type) {
		return nil, utils.NewBadRequest(fmt.Sprintf("unknown incident type %q", input.Type))
	}
	if input.Severity == "" {
		input.Severity = models.SeverityLow
	}
	if !models.ValidSeverity(input.Severity) {
		return nil, utils.NewBadRequest(fmt.Sprintf("unknown severity %q", input.Severity))
	}
	if !utils.IsValidCoordinates(input.Latitude, input.Longitude) {
		return nil, utils.NewBadRequest(utils.ErrCoordinatesRequired)
	}

	// The custom label only means something for "other" reports.
	customType := ""
	if input.Type == models.IncidentTypeOther {
		customType = input.CustomType
	}

	locationName := input.LocationName
	if locationName == "" && s.maps != nil {
		if resp, err := s.maps.ReverseGeocode(ctx, input.Latitude, input.Longitude); err == nil {
			locationName = resp.BestAddress()
		} else {
			s.logger.WithError(err).Warn("Reverse geocoding failed")
		}
	}

	var uploaded *UploadedPhotos
	if len(input.Photos) > 0 {
		var err error
		uploaded, err = s.media.UploadIncidentPhotos(ctx, input.Photos)
		if err != nil {
			return nil, err
		}
	}

	incident := &models.Incident{
		ReporterID:   actor.ID,
		ReporterName: actor.Name,
		Type:         input.Type,
		CustomType:   customType,
		Description:  input.Description,
		Severity:     input.Severity,
		Affected:     input.Affected,
		Location:     models.NewPoint(input.Longitude, input.Latitude, locationName),
		Status:       models.IncidentStatusPending,
	}

	if uploaded != nil {
		incident.Photos = uploaded.URLs
		incident.PhotoRefs = uploaded.Keys
		incident.PhotoURL = uploaded.ThumbnailURL
	}

	if err := s.incidentRepo.Create(ctx, incident); err != nil {
		if uploaded != nil {
			s.media.DeletePhotos(ctx, uploaded.Keys)
		}
		return nil, err
	}

	s.logger.LogIncidentEvent(incident.ID, "reported", map[string]interface{}{
		"type":     incident.DisplayType(),
		"severity": incident.Severity,
	})

	s.dispatcher.Dispatch(ctx, &models.IncidentEvent{
		Kind:         models.EventIncidentReported,
		IncidentID:   incident.ID,
		IncidentType: incident.DisplayType(),
		LocationName: incident.LocationName(),
		Severity:     incident.Severity,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
	})

	return incident, nil
}

func (s *incidentService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Incident, error) {
	return s.incidentRepo.GetByID(ctx, id)
}

func (s *incidentService) List(ctx context.Context, status models.IncidentStatus, incidentType models.IncidentType, params *utils.PaginationParams) ([]*models.Incident, int64, error) {
	return s.incidentRepo.List(ctx, status, incidentType, params)
}

func (s *incidentService) MyIncidents(ctx context.Context, actor models.Actor, params *utils.PaginationParams) ([]*models.Incident, int64, error) {
	return s.incidentRepo.GetByReporter(ctx, actor.ID, params)
}

func (s *incidentService) AssignedToMe(ctx context.Context, actor models.Actor) ([]*models.Incident, error) {
	if !actor.IsVolunteer() {
		return nil, utils.NewForbidden("only volunteers have assigned tasks")
	}
	return s.incidentRepo.GetAssignedToVolunteer(ctx, actor.ID)
}

func (s *incidentService) CompletedByMe(ctx context.Context, actor models.Actor) ([]*models.Incident, error) {
	if !actor.IsVolunteer() {
		return nil, utils.NewForbidden("only volunteers have completed tasks")
	}
	return s.incidentRepo.GetCompletedByVolunteer(ctx, actor.ID)
}

func (s *incidentService) Nearby(ctx context.Context, actor models.Actor, filter *models.NearbyFilter) ([]*models.NearbyIncident, error) {
	if !utils.IsValidCoordinates(filter.Latitude, filter.Longitude) {
		return nil, utils.NewBadRequest(utils.ErrCoordinatesRequired)
	}
	if filter.RadiusKM <= 0 {
		filter.RadiusKM = utils.DefaultSearchRadiusKM
	}
	if filter.RadiusKM > utils.MaxSearchRadiusKM {
		filter.RadiusKM = utils.MaxSearchRadiusKM
	}

	incidents, err := s.incidentRepo.GetNearby(ctx, filter)
	if err != nil {
		return nil, err
	}

	results := make([]*models.NearbyIncident, len(incidents))
	for i, incident := range incidents {
		nearby := &models.NearbyIncident{Incident: incident}
		if entry := incident.FindAssignment(actor.ID); entry != nil {
			nearby.IsAssignedToUser = entry.Status != models.AssignmentStatusDeclined
			status := entry.Status
			nearby.UserAssignmentStatus = &status
		}
		results[i] = nearby
	}

	return results, nil
}

func (s *incidentService) Approve(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Incident, error) {
	if !actor.IsCoordinator() {
		return nil, utils.NewForbidden("only coordinators can approve incidents")
	}

	var approved *models.Incident
	err := s.withIncidentLock(ctx, id, func() error {
		incident, err := s.incidentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if incident.Status != models.IncidentStatusPending {
			return utils.NewConflict(fmt.Sprintf("incident is %s and cannot be approved", incident.Status))
		}

		if err := s.incidentRepo.UpdateStatus(ctx, id, models.IncidentStatusApproved); err != nil {
			return err
		}

		entry := models.LogEntry{
			Action:    models.LogActionApproved,
			Actor:     &actor.ID,
			Message:   "Incident approved by coordinator.",
			Timestamp: time.Now(),
		}
		if err := s.incidentRepo.AppendLog(ctx, id, entry); err != nil {
			return err
		}

		incident.Status = models.IncidentStatusApproved
		incident.Logs = append(incident.Logs, entry)
		approved = incident
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogIncidentEvent(id, "approved", map[string]interface{}{"actor": actor.ID.Hex()})

	return approved, nil
}

func (s *incidentService) Dispatch(ctx context.Context, actor models.Actor, id primitive.ObjectID, volunteerIDs []primitive.ObjectID) (*models.Incident, error) {
	if !actor.IsCoordinator() {
		return nil, utils.NewForbidden("only coordinators can dispatch volunteers")
	}
	if len(volunteerIDs) == 0 {
		return nil, utils.NewBadRequest("at least one volunteer is required")
	}

	var dispatched *models.Incident
	var newIDs []primitive.ObjectID

	err := s.withIncidentLock(ctx, id, func() error {
		incident, err := s.incidentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if incident.Status != models.IncidentStatusApproved && incident.Status != models.IncidentStatusAssigned {
			return utils.NewConflict(fmt.Sprintf("incident is %s and cannot be dispatched", incident.Status))
		}

		users, err := s.userRepo.GetByIDs(ctx, volunteerIDs)
		if err != nil {
			return err
		}

		byID := make(map[primitive.ObjectID]*models.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}

		// The whole batch is rejected when any candidate is ineligible, so a
		// coordinator never gets a partial dispatch.
		for _, volunteerID := range volunteerIDs {
			u, ok := byID[volunteerID]
			if !ok {
				return utils.NewNotFound("volunteer")
			}
			if u.IsUnavailable() {
				return utils.NewConflict(fmt.Sprintf("Cannot assign %s. They are currently %q.", u.DisplayName(), u.Status))
			}
			if !u.CanBeDispatched() {
				return utils.NewConflict(fmt.Sprintf("%s is not an approved, certified volunteer", u.DisplayName()))
			}
		}

		now := time.Now()
		entries := s.ledger.NewEntries(incident, volunteerIDs, actor.ID, now)
		if len(entries) == 0 {
			// Everyone requested is already on the incident.
			dispatched = incident
			return nil
		}

		logs := make([]models.LogEntry, len(entries))
		for i, entry := range entries {
			target := entry.VolunteerID
			logs[i] = models.LogEntry{
				Action:    models.LogActionAssigned,
				Actor:     &actor.ID,
				Target:    &target,
				Message:   fmt.Sprintf("Assigned %s to the incident.", byID[entry.VolunteerID].DisplayName()),
				Timestamp: now,
			}
			newIDs = append(newIDs, entry.VolunteerID)
		}

		updates := map[string]interface{}{
			"status": models.IncidentStatusAssigned,
		}
		if incident.AssignedAt == nil {
			updates["assigned_at"] = now
		}

		if err := s.incidentRepo.AddAssignments(ctx, id, entries, logs, updates); err != nil {
			return err
		}

		incident.Status = models.IncidentStatusAssigned
		if incident.AssignedAt == nil {
			incident.AssignedAt = &now
		}
		incident.AssignedVolunteers = append(incident.AssignedVolunteers, entries...)
		incident.Logs = append(incident.Logs, logs...)
		dispatched = incident
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(newIDs) > 0 {
		s.logger.LogIncidentEvent(id, "dispatched", map[string]interface{}{
			"actor":      actor.ID.Hex(),
			"volunteers": len(newIDs),
		})

		s.dispatcher.Dispatch(ctx, &models.IncidentEvent{
			Kind:         models.EventTaskAssigned,
			IncidentID:   dispatched.ID,
			IncidentType: dispatched.DisplayType(),
			LocationName: dispatched.LocationName(),
			Severity:     dispatched.Severity,
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			TargetIDs:    newIDs,
		})
	}

	return dispatched, nil
}

func (s *incidentService) Accept(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Incident, error) {
	if !actor.IsVolunteer() {
		return nil, utils.NewForbidden("only volunteers can accept tasks")
	}

	var accepted *models.Incident
	err := s.withIncidentLock(ctx, id, func() error {
		incident, err := s.incidentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		// An acceptance puts the incident to work immediately.
		updates := map[string]interface{}{
			"status": models.IncidentStatusInProgress,
		}

		if _, err := s.ledger.RecordResponse(ctx, incident, actor.ID, models.AssignmentStatusAccepted, updates); err != nil {
			return err
		}

		entry := models.LogEntry{
			Action:    models.LogActionAccepted,
			Actor:     &actor.ID,
			Message:   "Volunteer accepted the task.",
			Timestamp: time.Now(),
		}
		if err := s.incidentRepo.AppendLog(ctx, id, entry); err != nil {
			return err
		}

		incident.Status = models.IncidentStatusInProgress
		incident.Logs = append(incident.Logs, entry)
		accepted = incident
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, &models.IncidentEvent{
		Kind:         models.EventTaskAccepted,
		IncidentID:   accepted.ID,
		IncidentType: accepted.DisplayType(),
		LocationName: accepted.LocationName(),
		Severity:     accepted.Severity,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
	})

	return accepted, nil
}

func (s *incidentService) Decline(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Incident, error) {
	if !actor.IsVolunteer() {
		return nil, utils.NewForbidden("only volunteers can decline tasks")
	}

	var declined *models.Incident
	err := s.withIncidentLock(ctx, id, func() error {
		incident, err := s.incidentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if _, err := s.ledger.RecordResponse(ctx, incident, actor.ID, models.AssignmentStatusDeclined, nil); err != nil {
			return err
		}

		// When the last standing volunteer declines, the incident goes back
		// to the dispatch pool.
		if incident.AllDeclined() {
			if err := s.incidentRepo.UpdateStatus(ctx, id, models.IncidentStatusApproved); err != nil {
				return err
			}
			incident.Status = models.IncidentStatusApproved
		}

		entry := models.LogEntry{
			Action:    models.LogActionDeclined,
			Actor:     &actor.ID,
			Message:   "Volunteer declined the task.",
			Timestamp: time.Now(),
		}
		if err := s.incidentRepo.AppendLog(ctx, id, entry); err != nil {
			return err
		}

		incident.Logs = append(incident.Logs, entry)
		declined = incident
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, &models.IncidentEvent{
		Kind:         models.EventTaskDeclined,
		IncidentID:   declined.ID,
		IncidentType: declined.DisplayType(),
		LocationName: declined.LocationName(),
		Severity:     declined.Severity,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
	})

	return declined, nil
}

func (s *incidentService) Complete(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Incident, error) {
	if !actor.IsVolunteer() {
		return nil, utils.NewForbidden("only volunteers can complete tasks")
	}

	var completed *models.Incident
	err := s.withIncidentLock(ctx, id, func() error {
		incident, err := s.incidentRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if incident.Status != models.IncidentStatusInProgress {
			return utils.NewConflict(fmt.Sprintf("incident is %s and cannot be completed", incident.Status))
		}

		if _, err := s.ledger.RecordResponse(ctx, incident, actor.ID, models.AssignmentStatusCompleted, nil); err != nil {
			return err
		}

		// The first completion closes the incident; other live entries keep
		// their own sub-state for the volunteer's history.
		if err := s.incidentRepo.UpdateStatus(ctx, id, models.IncidentStatusCompleted); err != nil {
			return err
		}
		incident.Status = models.IncidentStatusCompleted
		now := time.Now()
		incident.CompletedAt = &now

		entry := models.LogEntry{
			Action:    models.LogActionCompleted,
			Actor:     &actor.ID,
			Message:   "Volunteer completed the task.",
			Timestamp: time.Now(),
		}
		if err := s.incidentRepo.AppendLog(ctx, id, entry); err != nil {
			return err
		}

		incident.Logs = append(incident.Logs, entry)
		completed = incident
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, &models.IncidentEvent{
		Kind:         models.EventTaskCompleted,
		IncidentID:   completed.ID,
		IncidentType: completed.DisplayType(),
		LocationName: completed.LocationName(),
		Severity:     completed.Severity,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
	})

	return completed, nil
}

func (s *incidentService) ContactCoordinators(ctx context.Context, actor models.Actor, id primitive.ObjectID, message string) error {
	if !actor.IsVolunteer() {
		return utils.NewForbidden("only volunteers can request assistance")
	}

	incident, err := s.incidentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !incident.HasCurrentAssignment(actor.ID) {
		return utils.NewForbidden("you are not assigned to this incident")
	}

	logMessage := message
	if logMessage == "" {
		logMessage = "Volunteer requested coordinator assistance."
	}

	entry := models.LogEntry{
		Action:    models.LogActionContactedCoordinators,
		Actor:     &actor.ID,
		Message:   logMessage,
		Timestamp: time.Now(),
	}
	if err := s.incidentRepo.AppendLog(ctx, id, entry); err != nil {
		return err
	}

	event := &models.IncidentEvent{
		Kind:         models.EventAssistanceRequested,
		IncidentID:   incident.ID,
		IncidentType: incident.DisplayType(),
		LocationName: incident.LocationName(),
		Severity:     incident.Severity,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
	}
	if message != "" {
		event.Message = fmt.Sprintf("%s (Incident: %s at %s)", message, incident.DisplayType(), incident.LocationName())
	}
	s.dispatcher.Dispatch(ctx, event)

	return nil
}

// withIncidentLock serializes mutations on a single incident across server
// instances. Without a cache the section runs unguarded.
func (s *incidentService) withIncidentLock(ctx context.Context, id primitive.ObjectID, fn func() error) error {
	if s.cache == nil {
		return fn()
	}

	lockCtx, cancel := context.WithTimeout(ctx, utils.IncidentLockTTL)
	defer cancel()

	lock, err := s.cache.Lock(lockCtx, fmt.Sprintf(utils.CacheKeyIncidentLock, id.Hex()), utils.IncidentLockTTL)
	if err != nil {
		if err == cache.ErrLockNotAcquired {
			return utils.NewConflict("incident is being updated, try again")
		}
		return err
	}
	defer s.cache.Unlock(ctx, lock)

	return fn()
}
