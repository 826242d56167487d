package chat

import (
	"encoding/json"

	"go.uber.org/zap"

	"rentchat/logger"
	"rentchat/module/rental/model"
	"rentchat/tools/errs"
)

type FrameType string

const (
	// client -> server
	FrameJoin           FrameType = "join"
	FrameMessage        FrameType = "message"
	FrameSubscribeOwner FrameType = "subscribe-owner"

	// server -> client; FrameMessage is used in both directions
	FrameHistory FrameType = "history"
	FrameError   FrameType = "error"
)

// Inbound is one of *JoinFrame, *MessageFrame or *SubscribeOwnerFrame.
type Inbound interface {
	Type() FrameType
}

type JoinFrame struct {
	PropertyID string
	UserID     string
	Token      string
	ChatID     string
}

func (*JoinFrame) Type() FrameType { return FrameJoin }

type MessageFrame struct {
	ChatID  string
	Content string
	MsgType string
}

func (*MessageFrame) Type() FrameType { return FrameMessage }

// SubscribeOwnerFrame authenticates an owner socket without attaching it to a room.
type SubscribeOwnerFrame struct {
	UserID string
	Token  string
}

func (*SubscribeOwnerFrame) Type() FrameType { return FrameSubscribeOwner }

type rawFrame struct {
	Type       FrameType `json:"type"`
	PropertyID string    `json:"propertyId"`
	UserID     string    `json:"userId"`
	Token      string    `json:"token"`
	ChatID     string    `json:"chatId"`
	Content    *string   `json:"content"`
	MsgType    string    `json:"msgType"`
}

// ParseFrame decodes one client frame. Any failure is a ProtocolError.
// A missing token is left to the join handler so it surfaces as an
// authentication failure.
func ParseFrame(data []byte) (Inbound, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.ErrProtocol.WrapMsg("invalid json")
	}
	switch raw.Type {
	case FrameJoin:
		if raw.PropertyID == "" {
			return nil, errs.ErrProtocol.WrapMsg("propertyId is required")
		}
		return &JoinFrame{
			PropertyID: raw.PropertyID,
			UserID:     raw.UserID,
			Token:      raw.Token,
			ChatID:     raw.ChatID,
		}, nil
	case FrameMessage:
		if raw.Content == nil || *raw.Content == "" {
			return nil, errs.ErrProtocol.WrapMsg("content is required")
		}
		return &MessageFrame{ChatID: raw.ChatID, Content: *raw.Content, MsgType: raw.MsgType}, nil
	case FrameSubscribeOwner:
		return &SubscribeOwnerFrame{UserID: raw.UserID, Token: raw.Token}, nil
	case "":
		return nil, errs.ErrProtocol.WrapMsg("type is required")
	default:
		return nil, errs.ErrProtocol.WrapMsg("unknown frame type", "type", raw.Type)
	}
}

type historyFrame struct {
	Type     FrameType       `json:"type"`
	Messages []model.Message `json:"messages"`
	ChatID   string          `json:"chatId"`
}

type messageFrame struct {
	Type    FrameType     `json:"type"`
	Message model.Message `json:"message"`
}

type errorFrame struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message"`
}

// EncodeHistory always renders messages as an array, never null.
func EncodeHistory(chatID string, msgs []model.Message) []byte {
	if msgs == nil {
		msgs = []model.Message{}
	}
	return encode(historyFrame{Type: FrameHistory, Messages: msgs, ChatID: chatID})
}

func EncodeMessage(m model.Message) []byte {
	return encode(messageFrame{Type: FrameMessage, Message: m})
}

func EncodeError(text string) []byte {
	return encode(errorFrame{Type: FrameError, Message: text})
}

var fallbackError = []byte(`{"type":"error","message":"internal error"}`)

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("encode frame failed", zap.Error(err))
		return fallbackError
	}
	return b
}
