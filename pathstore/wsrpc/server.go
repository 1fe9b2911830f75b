package wsrpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wbrown/janus-pathstore/pathstore/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
}

// Server answers producer envelopes over websocket connections. Each
// connection gets its own goroutine from net/http and is served
// sequentially: one request frame in, one response frame out.
type Server struct {
	producer *protocol.Producer
	settings *Settings
	log      *slog.Logger
}

// NewServer wraps a producer for http serving. Nil settings take
// DefaultSettings; a nil logger takes slog.Default.
func NewServer(p *protocol.Producer, settings *Settings, log *slog.Logger) *Server {
	if settings == nil {
		settings = DefaultSettings()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{producer: p, settings: settings, log: log}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer ws.Close()

	log := s.log.With("session", uuid.New().String())
	log.Info("peer connected", "remote", r.RemoteAddr)

	for {
		ws.SetReadDeadline(time.Now().Add(s.settings.ReadTimeout))
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			log.Info("peer disconnected", "error", err.Error())
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		if len(message) == 0 {
			// keepalive frame
			continue
		}
		log.Debug("request", "kind", protocol.PeekKind(message), "bytes", len(message))
		reply := s.producer.HandleEnvelope(message)
		ws.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout))
		if err := ws.WriteMessage(websocket.BinaryMessage, reply); err != nil {
			log.Warn("response write failed", "error", err)
			return
		}
	}
}
