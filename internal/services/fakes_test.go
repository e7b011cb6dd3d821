package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cera/internal/models"
	"cera/internal/utils"
	"cera/pkg/logger"
	"cera/pkg/push"
	"cera/pkg/sms"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes used across the service tests. They mimic the
// document-level behavior of the real mongodb implementations.

type fakeIncidentRepo struct {
	mu        sync.Mutex
	incidents map[primitive.ObjectID]*models.Incident
}

func newFakeIncidentRepo() *fakeIncidentRepo {
	return &fakeIncidentRepo{
		incidents: make(map[primitive.ObjectID]*models.Incident),
	}
}

func (r *fakeIncidentRepo) Create(ctx context.Context, incident *models.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	incident.ID = primitive.NewObjectID()
	now := time.Now()
	incident.CreatedAt = now
	incident.UpdatedAt = now
	r.incidents[incident.ID] = incident
	return nil
}

func (r *fakeIncidentRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	incident, ok := r.incidents[id]
	if !ok {
		return nil, utils.NewNotFound("incident")
	}

	copied := *incident
	copied.AssignedVolunteers = append([]models.AssignedVolunteer(nil), incident.AssignedVolunteers...)
	copied.Logs = append([]models.LogEntry(nil), incident.Logs...)
	return &copied, nil
}

func (r *fakeIncidentRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	incident, ok := r.incidents[id]
	if !ok {
		return utils.NewNotFound("incident")
	}
	r.applyUpdates(incident, updates)
	return nil
}

func (r *fakeIncidentRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.incidents, id)
	return nil
}

func (r *fakeIncidentRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IncidentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	incident, ok := r.incidents[id]
	if !ok {
		return utils.NewNotFound("incident")
	}

	incident.Status = status
	now := time.Now()
	switch status {
	case models.IncidentStatusAssigned:
		incident.AssignedAt = &now
	case models.IncidentStatusCompleted:
		incident.CompletedAt = &now
	}
	return nil
}

func (r *fakeIncidentRepo) AddAssignments(ctx context.Context, id primitive.ObjectID, entries []models.AssignedVolunteer, logs []models.LogEntry, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	incident, ok := r.incidents[id]
	if !ok {
		return utils.NewNotFound("incident")
	}

	incident.AssignedVolunteers = append(incident.AssignedVolunteers, entries...)
	incident.Logs = append(incident.Logs, logs...)
	r.applyUpdates(incident, updates)
	return nil
}

func (r *fakeIncidentRepo) UpdateAssignmentStatus(ctx context.Context, id, volunteerID primitive.ObjectID, status models.AssignmentStatus, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	incident, ok := r.incidents[id]
	if !ok {
		return utils.NewNotFound("incident")
	}

	entry := incident.FindAssignment(volunteerID)
	if entry == nil || entry.Status == models.AssignmentStatusDeclined {
		return utils.NewNotFound("assignment")
	}

	now := time.Now()
	entry.Status = status
	entry.RespondedAt = &now
	r.applyUpdates(incident, updates)
	return nil
}

func (r *fakeIncidentRepo) AppendLog(ctx context.Context, id primitive.ObjectID, entry models.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	incident, ok := r.incidents[id]
	if !ok {
		return utils.NewNotFound("incident")
	}
	incident.Logs = append(incident.Logs, entry)
	return nil
}

func (r *fakeIncidentRepo) List(ctx context.Context, status models.IncidentStatus, incidentType models.IncidentType, params *utils.PaginationParams) ([]*models.Incident, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Incident
	for _, incident := range r.incidents {
		if status != "" && incident.Status != status {
			continue
		}
		if incidentType != "" && incident.Type != incidentType {
			continue
		}
		out = append(out, incident)
	}
	return out, int64(len(out)), nil
}

func (r *fakeIncidentRepo) GetByReporter(ctx context.Context, reporterID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Incident, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Incident
	for _, incident := range r.incidents {
		if incident.ReporterID == reporterID {
			out = append(out, incident)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeIncidentRepo) GetAssignedToVolunteer(ctx context.Context, volunteerID primitive.ObjectID) ([]*models.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Incident
	for _, incident := range r.incidents {
		entry := incident.FindAssignment(volunteerID)
		if entry == nil {
			continue
		}
		switch entry.Status {
		case models.AssignmentStatusPending, models.AssignmentStatusAccepted, models.AssignmentStatusInProgress:
			out = append(out, incident)
		}
	}
	return out, nil
}

func (r *fakeIncidentRepo) GetCompletedByVolunteer(ctx context.Context, volunteerID primitive.ObjectID) ([]*models.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Incident
	for _, incident := range r.incidents {
		entry := incident.FindAssignment(volunteerID)
		if entry != nil && entry.Status == models.AssignmentStatusCompleted {
			out = append(out, incident)
		}
	}
	return out, nil
}

func (r *fakeIncidentRepo) GetNearby(ctx context.Context, filter *models.NearbyFilter) ([]*models.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Incident
	for _, incident := range r.incidents {
		out = append(out, incident)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 || limit > utils.MaxNearbyLimit {
		limit = utils.DefaultNearbyLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeIncidentRepo) applyUpdates(incident *models.Incident, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "status":
			incident.Status = value.(models.IncidentStatus)
		case "assigned_at":
			at := value.(time.Time)
			incident.AssignedAt = &at
		case "worked_hours":
			incident.WorkedHours = value.(float64)
		}
	}
}

type fakeUserRepo struct {
	mu           sync.Mutex
	users        map[primitive.ObjectID]*models.User
	failGetByIDs bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: make(map[primitive.ObjectID]*models.User),
	}
}

func (r *fakeUserRepo) add(user *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.users[user.ID] = user
	return user
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.add(user)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, utils.NewNotFound("user")
	}
	return user, nil
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	if r.failGetByIDs {
		return nil, errors.New("users unavailable")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.User
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, utils.NewNotFound("user")
}

func (r *fakeUserRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return utils.NewNotFound("user")
	}
	for key, value := range updates {
		switch key {
		case "role":
			user.Role = value.(models.UserRole)
		case "approved":
			user.Approved = value.(bool)
		case "skills":
			user.Skills = value.([]string)
		}
	}
	return nil
}

func (r *fakeUserRepo) GetByRole(ctx context.Context, role models.UserRole, params *utils.PaginationParams) ([]*models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*models.User
	for _, user := range r.users {
		if user.Role == role {
			matched = append(matched, user)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID.Hex() < matched[j].ID.Hex()
	})
	total := int64(len(matched))

	skip := params.GetSkip()
	if skip >= len(matched) {
		return nil, total, nil
	}
	matched = matched[skip:]
	if len(matched) > params.GetLimit() {
		matched = matched[:params.GetLimit()]
	}
	return matched, total, nil
}

func (r *fakeUserRepo) GetPendingVolunteers(ctx context.Context, params *utils.PaginationParams) ([]*models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.User
	for _, user := range r.users {
		if user.Role == models.UserRoleVolunteer && !user.Approved {
			out = append(out, user)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.AvailabilityStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return utils.NewNotFound("user")
	}
	user.Status = status
	return nil
}

func (r *fakeUserRepo) Approve(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return utils.NewNotFound("user")
	}
	user.Approved = true
	now := time.Now()
	user.ApprovedAt = &now
	return nil
}

func (r *fakeUserRepo) AddWorkLog(ctx context.Context, id primitive.ObjectID, entry models.WorkLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return utils.NewNotFound("user")
	}
	user.WorkLogs = append(user.WorkLogs, entry)
	user.TotalVolunteerHours += entry.Hours
	return nil
}

func (r *fakeUserRepo) AddPushToken(ctx context.Context, id primitive.ObjectID, token models.PushToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return utils.NewNotFound("user")
	}
	for _, existing := range user.PushTokens {
		if existing.Token == token.Token {
			return nil
		}
	}
	user.PushTokens = append(user.PushTokens, token)
	return nil
}

func (r *fakeUserRepo) RemovePushToken(ctx context.Context, id primitive.ObjectID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return utils.NewNotFound("user")
	}
	var kept []models.PushToken
	for _, existing := range user.PushTokens {
		if existing.Token != token {
			kept = append(kept, existing)
		}
	}
	user.PushTokens = kept
	return nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*models.Notification
	failForUser   primitive.ObjectID
}

func (r *fakeNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.failForUser.IsZero() && notification.UserID == r.failForUser {
		return errors.New("inbox write failed")
	}

	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now()
	r.notifications = append(r.notifications, notification)
	return nil
}

func (r *fakeNotificationRepo) GetByUser(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.notifications {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return utils.NewNotFound("notification")
}

func (r *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) byUser(userID primitive.ObjectID) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []*models.IncidentEvent
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, event *models.IncidentEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *fakeDispatcher) lastEvent() *models.IncidentEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.events) == 0 {
		return nil
	}
	return d.events[len(d.events)-1]
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

type fakePushProvider struct {
	mu       sync.Mutex
	requests []*push.NotificationRequest
	fail     bool
}

func (p *fakePushProvider) SendNotification(ctx context.Context, request *push.NotificationRequest) (*push.NotificationResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail {
		return nil, errors.New("push failed")
	}
	p.requests = append(p.requests, request)
	return &push.NotificationResponse{Success: true, Token: request.Token}, nil
}

func (p *fakePushProvider) SendBulkNotifications(ctx context.Context, requests []*push.NotificationRequest) ([]*push.NotificationResponse, error) {
	var responses []*push.NotificationResponse
	for _, request := range requests {
		resp, err := p.SendNotification(ctx, request)
		if err != nil {
			resp = &push.NotificationResponse{Success: false, Error: err.Error(), Token: request.Token}
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (p *fakePushProvider) ValidateToken(ctx context.Context, token string) (bool, error) {
	return true, nil
}

func (p *fakePushProvider) sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type fakeSMSProvider struct {
	mu       sync.Mutex
	messages []*sms.SMSRequest
}

func (p *fakeSMSProvider) SendSMS(ctx context.Context, request *sms.SMSRequest) (*sms.SMSResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, request)
	return &sms.SMSResponse{Status: "sent"}, nil
}

func (p *fakeSMSProvider) SendBulkSMS(ctx context.Context, requests []*sms.SMSRequest) ([]*sms.SMSResponse, error) {
	var responses []*sms.SMSResponse
	for _, request := range requests {
		resp, _ := p.SendSMS(ctx, request)
		responses = append(responses, resp)
	}
	return responses, nil
}

func testLogger() *logger.Logger {
	log, _ := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text", Output: "stderr"})
	return log
}
