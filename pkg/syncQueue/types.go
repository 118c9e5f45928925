package syncQueue

import (
	"go.uber.org/zap"
)

// SyncRequestType selects which parts of a tracker's ledger a sync
// request covers.
type SyncRequestType string

var (
	// SyncRequestType_Full runs the full cycle: explorer feeds, epoch
	// income, price backfill and reconciliation.
	SyncRequestType_Full SyncRequestType = "full"

	// SyncRequestType_EpochsOnly advances only the consensus-layer
	// cursor.
	SyncRequestType_EpochsOnly SyncRequestType = "epochsOnly"
)

type SyncRequestData struct {
	TrackerId   string
	RequestType SyncRequestType
}

// SyncMessage is one queued request. ResponseChan may be nil for
// fire-and-forget submissions.
type SyncMessage struct {
	Data         SyncRequestData
	ResponseChan chan *SyncResponse
}

type SyncResponseData struct {
	TrackerId    string
	EventsMerged int
}

type SyncResponse struct {
	Data  *SyncResponseData
	Error error
}

// SyncQueue serializes sync requests per process. Trackers are
// independent, so the pipeline drains the queue with a pool of workers.
type SyncQueue struct {
	logger *zap.Logger

	queue chan *SyncMessage
	done  chan struct{}
}
