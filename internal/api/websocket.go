package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/internal/chain"
	"github.com/golos/golosmind/internal/market"
	"github.com/golos/golosmind/internal/session"
	"github.com/golos/golosmind/pkg/logging"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = wsPongWait * 9 / 10
	wsMaxMessageSize = 1 << 20
)

// notice is pushed to a websocket client for a registered callback.
type notice struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// WebsocketHandler serves JSON-RPC over websocket. Each connection owns a
// session holding its subscriptions.
type WebsocketHandler struct {
	rpc      *JSONRPCHandler
	db       *chain.Database
	market   *market.Market
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWebsocketHandler(h *JSONRPCHandler, db *chain.Database, m *market.Market) *WebsocketHandler {
	return &WebsocketHandler{
		rpc:    h,
		db:     db,
		market: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logging.WithComponent("websocket"),
	}
}

type wsConn struct {
	conn *websocket.Conn
	mu   deadlock.Mutex
}

func (w *wsConn) write(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, data)
}

func (w *wsConn) notify(callback uint64, payload interface{}) error {
	data, err := json.Marshal(notice{
		JSONRPC: "2.0",
		Method:  "notice",
		Params:  []interface{}{callback, []interface{}{payload}},
	})
	if err != nil {
		return err
	}
	return w.write(websocket.TextMessage, data)
}

// Handle upgrades the request and serves calls until the client leaves.
func (h *WebsocketHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	ws := &wsConn{conn: conn}
	s := session.New(h.db, h.market, ws.notify)
	logger := h.logger.With(zap.String("session", s.ID.String()))
	logger.Debug("websocket connected", zap.String("remote", c.ClientIP()))

	done := make(chan struct{})
	defer func() {
		close(done)
		s.Close()
		conn.Close()
		logger.Debug("websocket closed")
	}()

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go h.ping(ws, done)

	ctx := rpc.WithSession(c.Request.Context(), s)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := ws.write(websocket.TextMessage, h.rpc.Dispatch(ctx, data)); err != nil {
			logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (h *WebsocketHandler) ping(ws *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ws.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
