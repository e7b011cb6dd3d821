package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Actor is the verified identity attached to a request by the auth
// middleware. Token issuance and verification happen upstream; the core only
// ever sees this resolved form.
type Actor struct {
	ID   primitive.ObjectID
	Role UserRole
	Name string
}

func (a Actor) IsCoordinator() bool {
	return a.Role == UserRoleCoordinator
}

func (a Actor) IsVolunteer() bool {
	return a.Role == UserRoleVolunteer
}
