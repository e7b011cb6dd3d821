package interfaces

import (
	"context"

	"cera/internal/models"
	"cera/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// Role and availability
	GetByRole(ctx context.Context, role models.UserRole, params *utils.PaginationParams) ([]*models.User, int64, error)
	GetPendingVolunteers(ctx context.Context, params *utils.PaginationParams) ([]*models.User, int64, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.AvailabilityStatus) error
	Approve(ctx context.Context, id primitive.ObjectID) error

	// Work history and devices
	AddWorkLog(ctx context.Context, id primitive.ObjectID, entry models.WorkLog) error
	AddPushToken(ctx context.Context, id primitive.ObjectID, token models.PushToken) error
	RemovePushToken(ctx context.Context, id primitive.ObjectID, token string) error
}
