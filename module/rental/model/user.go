package model

import "time"

type Role string

const (
	RoleTenant Role = "tenant"
	RoleOwner  Role = "owner"
)

func (r Role) Valid() bool {
	return r == RoleTenant || r == RoleOwner
}

// User is the identity the gateway authenticates. Role never changes after creation.
type User struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	Role      Role      `bson:"role" json:"role"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
