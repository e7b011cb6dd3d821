package interfaces

import (
	"context"

	"cera/internal/models"
	"cera/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IncidentRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Incident, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	// Status operations
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IncidentStatus) error
	AddAssignments(ctx context.Context, id primitive.ObjectID, entries []models.AssignedVolunteer, logs []models.LogEntry, updates map[string]interface{}) error
	UpdateAssignmentStatus(ctx context.Context, id, volunteerID primitive.ObjectID, status models.AssignmentStatus, updates map[string]interface{}) error
	AppendLog(ctx context.Context, id primitive.ObjectID, entry models.LogEntry) error

	// Search and filtering
	List(ctx context.Context, status models.IncidentStatus, incidentType models.IncidentType, params *utils.PaginationParams) ([]*models.Incident, int64, error)
	GetByReporter(ctx context.Context, reporterID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Incident, int64, error)
	GetAssignedToVolunteer(ctx context.Context, volunteerID primitive.ObjectID) ([]*models.Incident, error)
	GetCompletedByVolunteer(ctx context.Context, volunteerID primitive.ObjectID) ([]*models.Incident, error)

	// Location-based queries
	GetNearby(ctx context.Context, filter *models.NearbyFilter) ([]*models.Incident, error)
}
