package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRole string
type AvailabilityStatus string

const (
	UserRoleResident    UserRole = "resident"
	UserRoleVolunteer   UserRole = "volunteer"
	UserRoleCoordinator UserRole = "coordinator"

	AvailabilityActive  AvailabilityStatus = "active"
	AvailabilityBusy    AvailabilityStatus = "busy"
	AvailabilityAway    AvailabilityStatus = "away"
	AvailabilityOffline AvailabilityStatus = "offline"
)

func ValidAvailabilityStatus(s AvailabilityStatus) bool {
	switch s {
	case AvailabilityActive, AvailabilityBusy, AvailabilityAway, AvailabilityOffline:
		return true
	}
	return false
}

type PushToken struct {
	Platform string `json:"platform" bson:"platform"`
	Token    string `json:"token" bson:"token"`
}

type WorkLog struct {
	IncidentID primitive.ObjectID `json:"incident_id" bson:"incident_id"`
	Hours      float64            `json:"hours" bson:"hours"`
	Date       time.Time          `json:"date" bson:"date"`
}

type User struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username     string             `json:"username" bson:"username" validate:"required"`
	FirstName    string             `json:"first_name" bson:"first_name"`
	LastName     string             `json:"last_name" bson:"last_name"`
	Email        string             `json:"email" bson:"email" validate:"required,email"`
	Phone        string             `json:"phone" bson:"phone"`
	PasswordHash string             `json:"-" bson:"password_hash"`
	AvatarURL    string             `json:"avatar_url" bson:"avatar_url"`

	Role      UserRole           `json:"role" bson:"role" default:"resident"`
	Certified bool               `json:"certified" bson:"certified" default:"false"`
	Approved  bool               `json:"approved" bson:"approved" default:"false"`
	Status    AvailabilityStatus `json:"status" bson:"status" default:"active"`

	Location Location `json:"location" bson:"location"`
	Skills   []string `json:"skills" bson:"skills"`

	WorkLogs            []WorkLog   `json:"work_logs" bson:"work_logs"`
	TotalVolunteerHours float64     `json:"total_volunteer_hours" bson:"total_volunteer_hours"`
	PushTokens          []PushToken `json:"push_tokens" bson:"push_tokens"`

	ApprovedAt *time.Time `json:"approved_at" bson:"approved_at"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}

func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// CanBeDispatched reports whether this user is eligible to receive a task
// assignment: an approved, certified volunteer who is active or busy.
func (u *User) CanBeDispatched() bool {
	if u.Role != UserRoleVolunteer || !u.Approved || !u.Certified {
		return false
	}
	return u.Status == AvailabilityActive || u.Status == AvailabilityBusy
}

func (u *User) IsUnavailable() bool {
	return u.Status == AvailabilityAway || u.Status == AvailabilityOffline
}
