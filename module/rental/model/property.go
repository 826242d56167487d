package model

import "time"

// Property is a listing. The gateway only reads ID and OwnerID.
type Property struct {
	ID        string    `bson:"_id" json:"id"`
	OwnerID   string    `bson:"owner_id" json:"ownerId"`
	Title     string    `bson:"title,omitempty" json:"title,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
