// Package api serves the REST side of the chat: history, room presence and,
// in development, token issuance.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentchat/data/store"
	"rentchat/logger"
	"rentchat/middleware"
	midsec "rentchat/middleware/security"
	"rentchat/module/rental/model"
	"rentchat/service/chat"
	"rentchat/tools/errs"
	"rentchat/tools/security"
)

// PresenceReader lists users present in a room across gateway nodes.
type PresenceReader interface {
	Members(ctx context.Context, room string) ([]string, error)
}

type Server struct {
	Store     store.Store
	Rooms     *chat.RoomRegistry
	Presence  PresenceReader // optional
	JWT       security.Options
	DevTokens bool
}

// Register mounts the routes on r. auth guards the user-scoped routes.
func (s *Server) Register(r gin.IRouter, auth gin.HandlerFunc) {
	rt := middleware.Routes{Auth: auth}
	rt.GET(r, "/healthz", s.Health, middleware.RouteOpt{})

	g := r.Group("/api")
	rt.GET(g, "/chats/:chatId/messages", s.History, middleware.RouteOpt{IsAuth: true})
	rt.GET(g, "/rooms/:propertyId/:tenantId/presence", s.RoomPresence, middleware.RouteOpt{IsAuth: true})
	if s.DevTokens {
		rt.POST(g, "/dev/token", s.DevToken, middleware.RouteOpt{})
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// History returns every message of a chat, oldest first, to its participants.
func (s *Server) History(c *gin.Context) {
	user := mustUser(c)
	ctx := c.Request.Context()

	conv, err := s.Store.FindChatByID(ctx, c.Param("chatId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !conv.IsParticipant(user.ID) {
		writeError(c, errs.ErrAuthorization.WrapMsg("not a participant", "chatId", conv.ID))
		return
	}
	msgs, err := s.Store.ListMessagesByChat(ctx, conv.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"chatId": conv.ID, "messages": msgs})
}

// RoomPresence lists who is connected to a room. Only the tenant and the
// property's owner may ask.
func (s *Server) RoomPresence(c *gin.Context) {
	user := mustUser(c)
	ctx := c.Request.Context()
	propertyID, tenantID := c.Param("propertyId"), c.Param("tenantId")

	if user.ID != tenantID {
		prop, err := s.Store.FindPropertyByID(ctx, propertyID)
		if err != nil {
			writeError(c, err)
			return
		}
		if prop.OwnerID != user.ID {
			writeError(c, errs.ErrAuthorization.WrapMsg("not a participant of this room"))
			return
		}
	}

	room := chat.RoomKeyOf(propertyID, tenantID)
	resp := gin.H{"room": string(room), "local": s.Rooms.Members(room)}
	if s.Presence != nil {
		members, err := s.Presence.Members(ctx, string(room))
		if err != nil {
			logger.Warn("presence lookup failed", zap.String("room", string(room)), zap.Error(err))
		} else {
			resp["tracked"] = members
		}
	}
	c.JSON(http.StatusOK, resp)
}

type devTokenReq struct {
	UserID string `json:"userId" binding:"required"`
}

// DevToken issues a token for an existing user. It stands in for the login
// flow in local development and is only mounted when enabled.
func (s *Server) DevToken(c *gin.Context) {
	var req devTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.ErrProtocol.WrapMsg("userId is required"))
		return
	}
	user, err := s.Store.FindUserByID(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	token, exp, err := security.Generate(s.JWT, user.ID, string(user.Role))
	if err != nil {
		writeError(c, errs.ErrInternal.WrapMsg("sign token", "cause", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expireAt": exp.UTC().Format(time.RFC3339), "user": user})
}

func mustUser(c *gin.Context) *model.User {
	u, ok := midsec.UserFrom(c)
	if !ok {
		// routes using this are always behind the auth middleware
		panic("api: no authenticated user in context")
	}
	return u
}

// writeError renders err as its CodeError with the matching HTTP status.
// Store and internal failures hide their detail.
func writeError(c *gin.Context, err error) {
	ce, ok := errs.As(err)
	if !ok {
		ce = errs.ErrInternal
	}
	body := &errs.CodeError{Code: ce.Code, Msg: ce.Msg}
	if ce.Code < http.StatusInternalServerError {
		body.Detail = ce.Detail
	} else {
		logger.Warn("api request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(ce.Code, body)
}
