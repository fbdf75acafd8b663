package telemetry

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gorilla/websocket"
)

// MessageHandler receives every state and cycle message from a registered client.
type MessageHandler func(ctx context.Context, clientID string, msg Message)

// Server is the monitor side: it accepts overlay clients over websocket
// and hands their reports to a MessageHandler.
type Server struct {
	ctx      context.Context
	handler  MessageHandler
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]time.Time
}

// NewServer returns a Server logging through ctx's logger.
func NewServer(ctx context.Context, handler MessageHandler) *Server {
	return &Server{
		ctx:     ctx,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients: map[string]time.Time{},
	}
}

// Clients returns the ids of the currently registered clients.
func (s *Server) Clients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf(s.ctx, "telemetry upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	ctx := belt.WithField(s.ctx, "remote", r.RemoteAddr)
	var clientID string
	defer func() {
		if clientID != "" {
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
			logger.Infof(ctx, "client %s disconnected", clientID)
		}
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf(ctx, "telemetry read error: %v", err)
			}
			return
		}

		var reply *Message
		switch msg.Type {
		case TypeRegister:
			if msg.ID == "" {
				reply = &Message{Type: TypeError, Msg: "register without id"}
				break
			}
			clientID = msg.ID
			ctx = belt.WithField(ctx, "client", clientID)
			s.mu.Lock()
			s.clients[clientID] = time.Now()
			s.mu.Unlock()
			logger.Infof(ctx, "client %s registered as %s", clientID, msg.ClientType)
			reply = &Message{Type: TypeRegistered, ID: clientID}
		case TypePing:
			reply = &Message{Type: TypePong}
		case TypeState, TypeCycle:
			if clientID == "" {
				reply = &Message{Type: TypeError, Msg: "not registered"}
				break
			}
			if s.handler != nil {
				s.handler(ctx, clientID, msg)
			}
		default:
			reply = &Message{Type: TypeError, Msg: "unknown message type " + msg.Type}
		}

		if reply != nil {
			if err := conn.WriteJSON(reply); err != nil {
				logger.Warnf(ctx, "telemetry write error: %v", err)
				return
			}
		}
	}
}
