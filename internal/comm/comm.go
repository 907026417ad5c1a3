package comm

import (
	"encoding/json"
)

// NATS subjects shared by the services.
const (
	CatalogTopic  = "catalog.service"  // events about the card catalog
	RequestTopic  = "catalog.requests" // work requests for the sync worker
	SyncWorkQueue = "sync-workers"
)

// Message types carried in WSMessage.Type.
const (
	TypeCatalogSynced = "catalog-synced"
	TypeEmbedFinished = "embed-finished"
	TypeSyncRequest   = "sync-request"
	TypeSubscribe     = "subscribe"
	TypeError         = "error"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "catalog-synced", "sync-request"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

// SyncRequest asks the sync worker for one run. Exactly one of Format and Set
// is normally set; neither means an unfiltered run.
type SyncRequest struct {
	Format string `json:"format,omitempty"`
	Set    string `json:"set,omitempty"`
	Pages  int    `json:"pages,omitempty"`
}

// Encode wraps v in a WSMessage of the given type.
func Encode(msgType, socketId string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&WSMessage{Type: msgType, Data: data, SocketId: socketId})
}
