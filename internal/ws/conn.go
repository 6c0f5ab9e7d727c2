package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gatherhub/backend/internal/chat"
	apperrors "gatherhub/backend/pkg/errors"
	"gatherhub/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer
	maxFrameSize = 64 * 1024 // 64KB

	// Inbound frames queued per connection before reads block
	inboundQueueSize = 64
)

// Server upgrades HTTP requests into chat sessions and runs the
// per-connection pumps bridging the socket to the dispatcher.
type Server struct {
	gateway    *chat.Gateway
	dispatcher *chat.Dispatcher
	log        *logger.Logger
	upgrader   websocket.Upgrader
}

func NewServer(gateway *chat.Gateway, dispatcher *chat.Dispatcher, handshakeTimeout time.Duration, log *logger.Logger) *Server {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 20 * time.Second
	}
	return &Server{
		gateway:    gateway,
		dispatcher: dispatcher,
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Origin checks are handled at the proxy layer
			},
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// Handle authenticates the bearer credential and upgrades the connection.
// Authentication happens before the upgrade so a bad credential gets a
// plain 401 instead of a half-open socket.
func (srv *Server) Handle(c *gin.Context) {
	credential := bearerCredential(c)

	session, err := srv.gateway.Authenticate(c.Request.Context(), credential)
	if err != nil {
		appErr := apperrors.FromError(err)
		c.JSON(appErr.StatusCode, gin.H{"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		}})
		return
	}

	conn, err := srv.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		srv.log.Warn("websocket upgrade failed", "error", err.Error())
		srv.gateway.Disconnect(session)
		return
	}

	client := &client{
		conn:    conn,
		session: session,
		srv:     srv,
		inbound: make(chan []byte, inboundQueueSize),
	}

	srv.log.Info("websocket connected",
		"session_id", session.ID,
		"user_id", session.UserID,
	)

	go client.writePump()
	go client.dispatchLoop()
	go client.readPump()
}

// bearerCredential pulls the token from the Authorization header or the
// token query parameter (browser WebSocket clients cannot set headers)
func bearerCredential(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// client ties one websocket connection to one chat session
type client struct {
	conn    *websocket.Conn
	session *chat.Session
	srv     *Server

	// inbound is the per-connection event queue: frames dispatch in
	// arrival order, one at a time
	inbound chan []byte
}

func (c *client) readPump() {
	defer func() {
		c.srv.gateway.Disconnect(c.session)
		close(c.inbound)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.srv.log.Debug("read error", "session_id", c.session.ID, "error", err.Error())
			}
			return
		}
		c.inbound <- frame
	}
}

// dispatchLoop consumes the inbound queue sequentially so a connection's
// events apply in the order they arrived
func (c *client) dispatchLoop() {
	for frame := range c.inbound {
		c.srv.dispatcher.Dispatch(context.Background(), c.session, frame)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.session.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the session
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame, err := json.Marshal(event)
			if err != nil {
				c.srv.log.Warn("marshal failed", "session_id", c.session.ID, "type", event.Type)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
