package model

import "time"

// Chat is the conversation of one tenant about one property. OwnerID is copied from
// the property when the chat is created.
type Chat struct {
	ID         string    `bson:"_id" json:"id"`
	PropertyID string    `bson:"property_id" json:"propertyId"`
	TenantID   string    `bson:"tenant_id" json:"tenantId"`
	OwnerID    string    `bson:"owner_id" json:"ownerId"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// IsParticipant reports whether userID is the chat's tenant or owner.
func (c *Chat) IsParticipant(userID string) bool {
	return userID != "" && (userID == c.TenantID || userID == c.OwnerID)
}

type NewChat struct {
	PropertyID string
	TenantID   string
	OwnerID    string
}
