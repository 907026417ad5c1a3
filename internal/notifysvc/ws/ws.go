package ws

import (
	"encoding/json"
	"sync"

	"github.com/avvvet/deckbuilder-services/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// client is one open socket. Writes are serialized because a websocket
// connection supports a single concurrent writer.
type client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	events map[string]bool // nil means every event
}

func (c *client) wants(msgType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events == nil || c.events[msgType]
}

func (c *client) write(m *comm.WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(m)
}

type Ws struct {
	connMap sync.Map // socketId -> *client
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.TypeSubscribe:
		s.handleSubscribe(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.SendError(socketId, "unknown event "+message.Type)
	}
}

// handleSubscribe narrows the events a socket receives. An empty list
// restores the default of receiving everything.
func (s *Ws) handleSubscribe(socketId string, msg *comm.WSMessage) {
	var payload struct {
		Events []string `json:"events"`
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: invalid_subscribe_data Malformed subscribe payload %s", err)
		s.SendError(socketId, "invalid subscribe payload")
		return
	}

	c, ok := s.client(socketId)
	if !ok {
		return
	}

	c.mu.Lock()
	if len(payload.Events) == 0 {
		c.events = nil
	} else {
		c.events = make(map[string]bool, len(payload.Events))
		for _, e := range payload.Events {
			c.events[e] = true
		}
	}
	c.mu.Unlock()

	log.Infof("socket %s subscribed to %v", socketId, payload.Events)
}

// Broadcast sends m to every socket subscribed to its type.
func (s *Ws) Broadcast(m *comm.WSMessage) {
	sent := 0
	s.connMap.Range(func(key, value any) bool {
		c := value.(*client)
		if !c.wants(m.Type) {
			return true
		}
		if err := c.write(m); err != nil {
			log.Warnf("write to socket %s failed: %s", key, err)
			return true
		}
		sent++
		return true
	})
	log.Debugf("broadcast %s to %d sockets", m.Type, sent)
}

func (s *Ws) SendError(socketId, reason string) {
	c, ok := s.client(socketId)
	if !ok {
		return
	}
	data, _ := json.Marshal(map[string]string{"error": reason})
	if err := c.write(&comm.WSMessage{Type: comm.TypeError, Data: data, SocketId: socketId}); err != nil {
		log.Errorf("Failed to send error message to client: %v", err)
	}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

func (s *Ws) Count() int {
	n := 0
	s.connMap.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *Ws) client(socketId string) (*client, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*client), true
}
