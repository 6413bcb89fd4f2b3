package notify

import (
	"testing"
	"time"
)

func TestDatasetSyncedMessageRoundTrip(t *testing.T) {
	msg := NewDatasetSyncedMessage(42, 7, 3)
	if msg.SyncedAt.IsZero() {
		t.Fatal("SyncedAt should be stamped")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DatasetSyncedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Transactions != 42 || got.Categories != 7 || got.Goals != 3 {
		t.Fatalf("round trip lost counts: %+v", got)
	}
	if !got.SyncedAt.Equal(msg.SyncedAt.Truncate(time.Nanosecond)) {
		t.Fatalf("SyncedAt = %v, want %v", got.SyncedAt, msg.SyncedAt)
	}
}

func TestDatasetSyncedMessageFromBadJSON(t *testing.T) {
	if _, err := DatasetSyncedMessageFromJSON([]byte("{")); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
