package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/service"
)

const (
	// writeWait bounds every websocket write
	writeWait = 10 * time.Second
	// maxControlMessage caps inbound control messages
	maxControlMessage = 64 << 10
	// pendingMessages is how many requests may queue behind the one running
	pendingMessages = 8
)

// WebSocketHandler serves the websocket delivery endpoint. Requests on one
// connection are handled in order; closing the connection cancels the one
// in flight.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	parser   *service.ParamsParser
	pipeline port.ExchangeHandler
	logger   port.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler instance
func NewWebSocketHandler(parser *service.ParamsParser, pipeline port.ExchangeHandler, logger port.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 32 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		parser:   parser,
		pipeline: pipeline,
		logger:   logger,
	}
}

// ServeHTTP implements http.Handler
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxControlMessage)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.logger.Debug("WebSocket client connected from %s", r.RemoteAddr)

	// The connection is read in the background so a peer that goes away
	// cancels the request in flight.
	inbound := make(chan []byte, pendingMessages)
	go h.readLoop(ctx, cancel, conn, inbound)

	for {
		var data []byte
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			data = msg
		}

		ex := &wsExchange{
			ctx:    ctx,
			conn:   conn,
			header: r.Header,
			remote: r.RemoteAddr,
		}

		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			ex.Reject(http.StatusBadRequest, fmt.Sprintf("malformed message: %v", err))
			continue
		}
		if msg.Type != model.MessageTypeCompress {
			ex.Reject(http.StatusBadRequest, fmt.Sprintf("unexpected message type %q", msg.Type))
			continue
		}

		var payload model.CompressPayload
		if err := msg.ParsePayload(&payload); err != nil {
			ex.Reject(http.StatusBadRequest, fmt.Sprintf("malformed payload: %v", err))
			continue
		}
		params, ok := h.parser.FromPayload(payload)
		if !ok {
			ex.Reject(http.StatusBadRequest, "url is required")
			continue
		}

		ex.params = params
		h.pipeline.Handle(ex)
		if ex.broken() {
			return
		}
	}
}

// readLoop is the only reader of conn. It cancels ctx once the peer is gone.
func (h *WebSocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, inbound chan<- []byte) {
	defer cancel()
	defer close(inbound)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read failed: %v", err)
			}
			return
		}

		select {
		case inbound <- data:
		case <-ctx.Done():
			return
		}
	}
}

// wsExchange is an implementation of port.Exchange for one compress request
// on a websocket connection
type wsExchange struct {
	ctx    context.Context
	conn   *websocket.Conn
	header http.Header
	remote string
	params *model.RequestParams

	mu     sync.Mutex
	failed bool
}

func (e *wsExchange) Context() context.Context     { return e.ctx }
func (e *wsExchange) Params() *model.RequestParams { return e.params }
func (e *wsExchange) InboundHeader() http.Header   { return e.header }
func (e *wsExchange) RemoteAddr() string           { return e.remote }

func (e *wsExchange) Begin(meta model.ResponseMeta) error {
	return e.sendMessage(model.MessageTypeBegin, model.BeginPayload{
		ContentType:  meta.ContentType,
		OriginalSize: meta.OriginalSize,
	})
}

func (e *wsExchange) Write(p []byte) (int, error) {
	if err := e.write(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (e *wsExchange) Finish(metrics model.TransferMetrics) error {
	return e.sendMessage(model.MessageTypeEnd, model.EndPayload{
		OriginalSize:   metrics.OriginalSize,
		CompressedSize: metrics.CompressedSize,
		BytesSaved:     metrics.BytesSaved(),
	})
}

func (e *wsExchange) Fallback() {
	_ = e.sendMessage(model.MessageTypeFallback, model.FallbackPayload{Location: EncodeURI(e.params.URL)})
}

func (e *wsExchange) Reject(status int, message string) {
	_ = e.sendMessage(model.MessageTypeError, model.ErrorPayload{Status: status, Message: message})
}

// Abort closes the connection; a partial image cannot be recalled
func (e *wsExchange) Abort() {
	e.mu.Lock()
	e.failed = true
	e.mu.Unlock()
	e.conn.Close()
}

func (e *wsExchange) broken() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failed
}

// sendMessage sends a control message to the client
func (e *wsExchange) sendMessage(msgType model.MessageType, payload interface{}) error {
	msg, err := model.NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to convert message to JSON: %w", err)
	}
	return e.write(websocket.TextMessage, data)
}

func (e *wsExchange) write(messageType int, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failed {
		return websocket.ErrCloseSent
	}
	_ = e.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := e.conn.WriteMessage(messageType, data); err != nil {
		e.failed = true
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Ensure wsExchange implements port.Exchange
var _ port.Exchange = (*wsExchange)(nil)
