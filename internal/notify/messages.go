package notify

import (
	"encoding/json"
	"time"
)

// DatasetSyncedMessage announces that a full pull of the remote datasets
// completed and the local mirror was replaced. Consumers (budget scripts,
// home dashboards) refetch from the mirror; the message carries only counts.
type DatasetSyncedMessage struct {
	Transactions int       `json:"transactions"`
	Categories   int       `json:"categories"`
	Goals        int       `json:"goals"`
	SyncedAt     time.Time `json:"synced_at"`
}

func NewDatasetSyncedMessage(transactions, categories, goals int) *DatasetSyncedMessage {
	return &DatasetSyncedMessage{
		Transactions: transactions,
		Categories:   categories,
		Goals:        goals,
		SyncedAt:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetSyncedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetSyncedMessageFromJSON creates a message from JSON bytes
func DatasetSyncedMessageFromJSON(data []byte) (*DatasetSyncedMessage, error) {
	var msg DatasetSyncedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
