package mongodb

import (
	"context"
	"fmt"
	"time"

	"cera/internal/models"
	"cera/internal/repositories/interfaces"
	"cera/internal/services"
	"cera/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type incidentRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewIncidentRepository(db *mongo.Database, cache services.CacheService) interfaces.IncidentRepository {
	return &incidentRepository{
		collection: db.Collection("incidents"),
		cache:      cache,
	}
}

// Basic CRUD operations
func (r *incidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	incident.ID = primitive.NewObjectID()
	now := time.Now()
	incident.CreatedAt = now
	incident.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, incident)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	r.cacheIncident(ctx, incident)

	return nil
}

func (r *incidentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Incident, error) {
	if incident := r.getIncidentFromCache(ctx, id); incident != nil {
		return incident, nil
	}

	var incident models.Incident
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&incident)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFound("incident")
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	r.cacheIncident(ctx, &incident)

	return &incident, nil
}

func (r *incidentRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFound("incident")
	}

	r.invalidateIncidentCache(ctx, id)

	return nil
}

func (r *incidentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete incident: %w", err)
	}

	r.invalidateIncidentCache(ctx, id)

	return nil
}

// Status operations
func (r *incidentRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IncidentStatus) error {
	updates := map[string]interface{}{
		"status": status,
	}

	switch status {
	case models.IncidentStatusAssigned:
		updates["assigned_at"] = time.Now()
	case models.IncidentStatusCompleted:
		updates["completed_at"] = time.Now()
	}

	return r.Update(ctx, id, updates)
}

// AddAssignments pushes new assignment entries and their log entries in a
// single write so a dispatch is all-or-nothing at the document level.
func (r *incidentRepository) AddAssignments(ctx context.Context, id primitive.ObjectID, entries []models.AssignedVolunteer, logs []models.LogEntry, updates map[string]interface{}) error {
	set := bson.M{"updated_at": time.Now()}
	for k, v := range updates {
		set[k] = v
	}

	update := bson.M{
		"$push": bson.M{
			"assigned_volunteers": bson.M{"$each": entries},
			"logs":                bson.M{"$each": logs},
		},
		"$set": set,
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to add assignments: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFound("incident")
	}

	r.invalidateIncidentCache(ctx, id)

	return nil
}

// UpdateAssignmentStatus rewrites one volunteer's entry via the positional
// operator. Declined entries are excluded from the match so a re-dispatched
// volunteer's fresh entry is the one updated, and a missing live entry
// surfaces as not found.
func (r *incidentRepository) UpdateAssignmentStatus(ctx context.Context, id, volunteerID primitive.ObjectID, status models.AssignmentStatus, updates map[string]interface{}) error {
	now := time.Now()
	set := bson.M{
		"assigned_volunteers.$.status":       status,
		"assigned_volunteers.$.responded_at": now,
		"updated_at":                         now,
	}
	for k, v := range updates {
		set[k] = v
	}

	filter := bson.M{
		"_id": id,
		"assigned_volunteers": bson.M{
			"$elemMatch": bson.M{
				"volunteer": volunteerID,
				"status":    bson.M{"$ne": models.AssignmentStatusDeclined},
			},
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update assignment status: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFound("assignment")
	}

	r.invalidateIncidentCache(ctx, id)

	return nil
}

func (r *incidentRepository) AppendLog(ctx context.Context, id primitive.ObjectID, entry models.LogEntry) error {
	update := bson.M{
		"$push": bson.M{"logs": entry},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFound("incident")
	}

	r.invalidateIncidentCache(ctx, id)

	return nil
}

// Search and filtering
func (r *incidentRepository) List(ctx context.Context, status models.IncidentStatus, incidentType models.IncidentType, params *utils.PaginationParams) ([]*models.Incident, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	if incidentType != "" {
		filter["type"] = incidentType
	}

	return r.findIncidentsWithFilter(ctx, filter, params)
}

func (r *incidentRepository) GetByReporter(ctx context.Context, reporterID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Incident, int64, error) {
	filter := bson.M{"reporter": reporterID}
	return r.findIncidentsWithFilter(ctx, filter, params)
}

func (r *incidentRepository) GetAssignedToVolunteer(ctx context.Context, volunteerID primitive.ObjectID) ([]*models.Incident, error) {
	filter := bson.M{
		"assigned_volunteers": bson.M{
			"$elemMatch": bson.M{
				"volunteer": volunteerID,
				"status": bson.M{"$in": []models.AssignmentStatus{
					models.AssignmentStatusPending,
					models.AssignmentStatusAccepted,
					models.AssignmentStatusInProgress,
				}},
			},
		},
	}

	return r.findIncidents(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *incidentRepository) GetCompletedByVolunteer(ctx context.Context, volunteerID primitive.ObjectID) ([]*models.Incident, error) {
	filter := bson.M{
		"assigned_volunteers": bson.M{
			"$elemMatch": bson.M{
				"volunteer": volunteerID,
				"status":    models.AssignmentStatusCompleted,
			},
		},
	}

	return r.findIncidents(ctx, filter, options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}}))
}

// Location-based queries
func (r *incidentRepository) GetNearby(ctx context.Context, filter *models.NearbyFilter) ([]*models.Incident, error) {
	radiusMeters := filter.RadiusKM * 1000

	query := bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{filter.Longitude, filter.Latitude},
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	if len(filter.Types) > 0 {
		query["type"] = bson.M{"$in": filter.Types}
	}
	if len(filter.Severities) > 0 {
		query["severity"] = bson.M{"$in": filter.Severities}
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.UnassignedOnly {
		query["$or"] = []bson.M{
			{"assigned_volunteers": bson.M{"$exists": false}},
			{"assigned_volunteers": bson.M{"$size": 0}},
		}
	}

	limit := filter.Limit
	if limit <= 0 || limit > utils.MaxNearbyLimit {
		limit = utils.DefaultNearbyLimit
	}

	// Sort overrides the driver's nearest-first order; results are newest-first.
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	return r.findIncidents(ctx, query, opts)
}

// Helpers
func (r *incidentRepository) findIncidents(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Incident, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find incidents: %w", err)
	}
	defer cursor.Close(ctx)

	var incidents []*models.Incident
	for cursor.Next(ctx) {
		var incident models.Incident
		if err := cursor.Decode(&incident); err != nil {
			return nil, fmt.Errorf("failed to decode incident: %w", err)
		}
		incidents = append(incidents, &incident)
	}

	return incidents, nil
}

func (r *incidentRepository) findIncidentsWithFilter(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.Incident, int64, error) {
	if params.Search != "" {
		searchFields := []string{"description", "custom_type", "location.name"}
		searchFilter := params.GetSearchFilter(searchFields)
		if len(searchFilter) > 0 {
			filter = bson.M{
				"$and": []bson.M{filter, searchFilter},
			}
		}
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count incidents: %w", err)
	}

	opts := params.GetSortOptions()
	incidents, err := r.findIncidents(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	return incidents, total, nil
}

// Cache operations
func (r *incidentRepository) cacheIncident(ctx context.Context, incident *models.Incident) {
	if r.cache != nil {
		r.cache.CacheIncident(ctx, incident, utils.IncidentCacheTTL)
	}
}

func (r *incidentRepository) getIncidentFromCache(ctx context.Context, id primitive.ObjectID) *models.Incident {
	if r.cache == nil {
		return nil
	}

	incident, err := r.cache.GetCachedIncident(ctx, id)
	if err != nil {
		return nil
	}

	return incident
}

func (r *incidentRepository) invalidateIncidentCache(ctx context.Context, id primitive.ObjectID) {
	if r.cache != nil {
		r.cache.InvalidateIncident(ctx, id)
	}
}
