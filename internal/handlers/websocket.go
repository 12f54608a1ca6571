package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Brownie44l1/tensor-bridge/internal/bridge"
	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

// SocketRequest is one bridge call over the websocket channel. Byte arguments
// are base64 strings.
type SocketRequest struct {
	ID     string                     `json:"id"`
	Method string                     `json:"method"`
	Args   map[string]json.RawMessage `json:"args"`
}

// SocketResponse carries exactly one of Data, Error or NotImplemented.
type SocketResponse struct {
	ID             string        `json:"id"`
	Data           []byte        `json:"data,omitempty"`
	Shape          tensor.Shape  `json:"shape,omitempty"`
	Error          *bridge.Error `json:"error,omitempty"`
	NotImplemented bool          `json:"not_implemented,omitempty"`
}

// Socket upgrades GET /channel/ws and serves requests one at a time until
// the peer disconnects.
func (h *Handler) Socket(upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Error("failed to upgrade websocket connection", zap.Error(err))
			return
		}
		defer func() {
			if err := conn.Close(); err != nil {
				h.logger.Debug("closing websocket", zap.Error(err))
			}
		}()

		// base64 inflates uploads by 4/3
		conn.SetReadLimit(h.opts.MaxUploadBytes*4/3 + 4096)
		remote := conn.RemoteAddr().String()
		h.logger.Info("websocket connection established", zap.String("remote_addr", remote))

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn("websocket connection closed unexpectedly", zap.Error(err))
				}
				break
			}
			if messageType != websocket.TextMessage {
				continue
			}

			reply := h.handleMessage(c, message)
			if err := conn.WriteJSON(reply); err != nil {
				h.logger.Warn("websocket write failed", zap.Error(err))
				break
			}
		}
		h.logger.Info("websocket connection closed", zap.String("remote_addr", remote))
	}
}

func (h *Handler) handleMessage(c *gin.Context, message []byte) SocketResponse {
	var req SocketRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return SocketResponse{Error: &bridge.Error{Code: bridge.CodeInvalidArgument, Message: "malformed envelope: " + err.Error()}}
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	ctx := bridge.WithRequestID(c.Request.Context(), id)
	resp := h.bridge.Handle(ctx, bridge.Request{Method: req.Method, Args: socketArgs(req.Args)})

	return SocketResponse{
		ID:             req.ID,
		Data:           resp.Data,
		Shape:          resp.Shape,
		Error:          resp.Err,
		NotImplemented: resp.NotImplemented,
	}
}

// socketArgs decodes base64 strings to bytes. Values that are not valid
// base64 strings are passed through as their JSON value so the bridge can
// reject them by type.
func socketArgs(raw map[string]json.RawMessage) map[string]any {
	args := make(map[string]any, len(raw))
	for k, v := range raw {
		var b []byte
		if err := json.Unmarshal(v, &b); err == nil && b != nil {
			args[k] = b
			continue
		}
		var anyValue any
		if err := json.Unmarshal(v, &anyValue); err == nil {
			args[k] = anyValue
		}
	}
	return args
}

// NewUpgrader returns an upgrader that accepts origins allowed by the CORS
// configuration. An empty list allows every origin, as in Routes.
func NewUpgrader(origins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 {
				return true
			}
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}
