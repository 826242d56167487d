package chat

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rentchat/logger"
	"rentchat/tools/errs"
)

// HandleWS upgrades the request and serves the connection until it closes.
func (g *Gateway) HandleWS(c *gin.Context) {
	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		logger.Info("websocket upgrade failed", zap.String("remote", c.ClientIP()), zap.Error(err))
		return
	}

	sock := newWSSocket(uuid.NewString(), ws, g.socketCfg)
	if !g.track(sock) {
		sock.Close()
		<-sock.Done()
		return
	}
	conn := &Conn{Session: NewSession(sock.ID()), Socket: sock, Remote: c.ClientIP()}
	g.metrics.Connections.Inc()
	log := logger.With(zap.String("conn", sock.ID()), zap.String("remote", conn.Remote))
	log.Debug("ws connected")

	defer func() {
		conn.Session.Close()
		g.rooms.UnregisterSocket(sock)
		sock.Close()
		<-sock.Done()
		g.metrics.Connections.Dec()
		g.untrack(sock)
		log.Debug("ws closed", zap.String("user", conn.Session.UserID()))
	}()

	for {
		data, rerr := sock.Read()
		if rerr != nil {
			logReadErr(log, rerr)
			return
		}
		if !g.serveFrame(conn, data) {
			return
		}
	}
}

// serveFrame handles one client frame and reports whether the connection
// should keep reading.
func (g *Gateway) serveFrame(conn *Conn, data []byte) bool {
	if conn.Session.State() == StateClosed {
		return false
	}
	err := g.dispatch(conn, data)
	if err == nil {
		return true
	}

	ce := classify(err)
	g.metrics.errorFrame(ce.Code)
	if ce.Code >= http.StatusInternalServerError {
		logger.Warn("frame failed", zap.String("conn", conn.Session.ConnID), zap.Error(err))
	} else {
		logger.Debug("frame rejected", zap.String("conn", conn.Session.ConnID), zap.Error(err))
	}
	conn.Socket.Send(EncodeError(ErrorText(err)))

	// a join that stopped short of Active or Browsing cannot be retried on this socket
	if IsTerminal(err) || conn.Session.State() == StateJoining {
		if conn.Session.State() == StateJoining {
			g.metrics.Joins.WithLabelValues(JoinRejected).Inc()
		}
		conn.Session.Close()
		g.rooms.UnregisterSocket(conn.Socket)
		conn.Socket.Close()
		return false
	}
	return true
}

func (g *Gateway) dispatch(conn *Conn, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.ErrPanic(r)
		}
	}()

	frame, err := ParseFrame(data)
	if err != nil {
		return err
	}
	h := g.disp.GetHandler(frame.Type())
	if h == nil {
		return errs.ErrProtocol.WrapMsg("unsupported frame type", "type", frame.Type())
	}

	ctx, cancel := context.WithTimeout(g.base, g.frameTimeout)
	defer cancel()
	return h.Handle(ctx, conn, frame)
}

func logReadErr(log *zap.Logger, err error) {
	var ne net.Error
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		log.Debug("ws peer closed", zap.Error(err))
	case errors.As(err, &ne) && ne.Timeout():
		log.Info("ws read timeout", zap.Error(err))
	default:
		log.Debug("ws read failed", zap.Error(err))
	}
}
