package handlers

import (
	"net/http"

	"session-relay-backend/internal/dispatch"
	"session-relay-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type WSHandler struct {
	dispatcher  *dispatch.Dispatcher
	authService *services.AuthService
}

func NewWSHandler(dispatcher *dispatch.Dispatcher, authService *services.AuthService) *WSHandler {
	return &WSHandler{dispatcher: dispatcher, authService: authService}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket godoc
// @Summary      WebSocket entry point for live sessions
// @Description  One socket per client; role is declared per command. Facilitator commands require a token query parameter.
// @Tags         websocket
// @Param        token query string false "JWT for facilitator sockets"
// @Router       /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	var userID string
	if token := c.Query("token"); token != "" {
		id, err := h.authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"})
			return
		}
		userID = id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Warnf("websocket upgrade error: %v", err)
		return
	}

	client := &dispatch.Client{
		Conn:   conn,
		ConnID: uuid.New().String(),
		UserID: userID,
	}
	defer func() {
		h.dispatcher.Disconnect(client)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.dispatcher.Dispatch(client, raw)
	}
}
