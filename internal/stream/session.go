package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-webinar/attention/internal/attention"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // cross-origin policy is handled by the front end
	},
}

// Options tunes per-connection transport behavior.
type Options struct {
	MaxMessageBytes int64
	PingInterval    time.Duration
	PongWait        time.Duration
}

// DefaultOptions returns the transport defaults used when a zero Options
// value is given.
func DefaultOptions() Options {
	return Options{
		MaxMessageBytes: 10 * 1024 * 1024,
		PingInterval:    20 * time.Second,
		PongWait:        50 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = d.MaxMessageBytes
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	return o
}

// Session manages one client connection: registration, message dispatch and
// guaranteed deregistration. It holds no attention data itself; all business
// state lives in the store, addressed by the identifiers each frame carries.
type Session struct {
	id        string
	registry  *Registry
	processor *attention.Processor
	store     *attention.Store
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	opts      Options
	logger    *zap.Logger
}

// controlMessage is the typed decode of a text control message. Unknown type
// tags land in the default dispatch branch.
type controlMessage struct {
	Type string `json:"type"`
}

type pongReply struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type statusReply struct {
	Type             string    `json:"type"`
	ConnectedClients int       `json:"connected_clients"`
	Sessions         int       `json:"sessions"`
	Timestamp        time.Time `json:"timestamp"`
}

type errorReply struct {
	Error string `json:"error"`
}

type unknownTypeReply struct {
	Error        string `json:"error"`
	ReceivedType string `json:"received_type"`
}

type processingErrorReply struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ServeWS returns an HTTP handler that upgrades the request and runs the
// session loop until the client disconnects.
func ServeWS(registry *Registry, processor *attention.Processor, store *attention.Store, logger *zap.Logger, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		s := &Session{
			id:        r.RemoteAddr + "#" + uuid.New().String(),
			registry:  registry,
			processor: processor,
			store:     store,
			conn:      conn,
			send:      make(chan []byte, 16),
			done:      make(chan struct{}),
			opts:      opts,
			logger:    logger.With(zap.String("conn_id", r.RemoteAddr)),
		}
		registry.Add(s.id)
		s.logger.Info("client connected", zap.Int("total_clients", registry.Count()))

		go s.writePump()
		s.readPump()
	}
}

// readPump processes inbound messages in arrival order and queues exactly one
// reply per message. Deregistration runs on every exit path.
func (s *Session) readPump() {
	defer func() {
		s.registry.Remove(s.id)
		close(s.send)
		_ = s.conn.Close()
		s.logger.Info("client disconnected", zap.Int("total_clients", s.registry.Count()))
	}()

	s.conn.SetReadLimit(s.opts.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		return nil
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("read failed", zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		var reply []byte
		switch mt {
		case websocket.BinaryMessage:
			reply = s.dispatch(func() []byte { return s.handleBinary(data) })
		case websocket.TextMessage:
			reply = s.dispatch(func() []byte { return s.handleText(data) })
		default:
			continue
		}
		select {
		case s.send <- reply:
		case <-s.done:
			return
		}
	}
}

// writePump delivers queued replies and keepalive pings. A write failure
// closes the connection, which in turn terminates readPump.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		close(s.done)
		_ = s.conn.Close()
	}()

	for {
		select {
		case reply, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				s.logger.Warn("send failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch is the per-message safety net: an unexpected panic becomes an
// error reply instead of tearing down the connection.
func (s *Session) dispatch(handle func() []byte) (reply []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("message processing panicked", zap.Any("panic", r))
			reply = marshalReply(processingErrorReply{
				Error:     fmt.Sprintf("Processing error: %v", r),
				Timestamp: time.Now(),
			})
		}
	}()
	return handle()
}

// handleBinary splits a framed message at the first newline into a JSON
// header and raw image bytes, then delegates to the frame processor.
func (s *Session) handleBinary(data []byte) []byte {
	sep := bytes.IndexByte(data, '\n')
	if sep < 0 {
		return marshalReply(errorReply{Error: "Invalid message format - no header separator"})
	}
	headerBytes := data[:sep]
	imageBytes := data[sep+1:]

	if len(imageBytes) == 0 {
		return marshalReply(errorReply{Error: "No image data received"})
	}

	var header attention.FrameHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return marshalReply(errorReply{Error: "Invalid JSON in header: " + err.Error()})
	}

	result := s.processor.Process(header, imageBytes, time.Now())
	return marshalReply(result.Payload())
}

// handleText answers control messages: ping, status, and an explicit
// unrecognized branch for everything else.
func (s *Session) handleText(data []byte) []byte {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return marshalReply(errorReply{Error: "Invalid JSON format: " + err.Error()})
	}

	switch msg.Type {
	case "ping":
		return marshalReply(pongReply{Type: "pong", Timestamp: time.Now()})
	case "status":
		return marshalReply(statusReply{
			Type:             "status_response",
			ConnectedClients: s.registry.Count(),
			Sessions:         s.store.SessionCount(),
			Timestamp:        time.Now(),
		})
	default:
		received := msg.Type
		if received == "" {
			received = "none"
		}
		return marshalReply(unknownTypeReply{Error: "Unknown message type", ReceivedType: received})
	}
}

func marshalReply(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(errorReply{Error: "Internal marshal error"})
	}
	return data
}
