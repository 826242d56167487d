package model

import "time"

const DefaultMessageType = "text"

type Message struct {
	ID        string    `bson:"_id" json:"id"`
	ChatID    string    `bson:"chat_id" json:"chatId"`
	SenderID  string    `bson:"sender_id" json:"senderId"`
	Content   string    `bson:"content" json:"content"`
	Read      bool      `bson:"read" json:"read"`
	Type      string    `bson:"type" json:"type"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

type NewMessage struct {
	ChatID   string
	SenderID string
	Content  string
	Read     bool
	Type     string
}
