package syncQueue

import (
	"context"

	"go.uber.org/zap"
)

func NewSyncQueue(logger *zap.Logger) *SyncQueue {
	queue := &SyncQueue{
		logger: logger,
		// allow the queue to buffer up to 100 messages
		queue: make(chan *SyncMessage, 100),
		done:  make(chan struct{}),
	}
	return queue
}

// Enqueue adds a message to the queue and returns immediately.
func (sq *SyncQueue) Enqueue(payload *SyncMessage) {
	sq.logger.Sugar().Infow("Enqueueing tracker sync message", "data", payload.Data)
	sq.queue <- payload
}

// EnqueueAndWait submits a sync request and blocks until the sync
// completes or the context is canceled.
func (sq *SyncQueue) EnqueueAndWait(ctx context.Context, data SyncRequestData) (*SyncResponseData, error) {
	responseChan := make(chan *SyncResponse, 1)

	payload := &SyncMessage{
		Data:         data,
		ResponseChan: responseChan,
	}
	sq.Enqueue(payload)

	select {
	case response := <-responseChan:
		return response.Data, response.Error
	case <-ctx.Done():
		sq.logger.Sugar().Infow("Received context.Done()")
		return nil, ctx.Err()
	}
}

// Dequeue hands the next message to a worker, or reports shutdown.
func (sq *SyncQueue) Dequeue() (*SyncMessage, bool) {
	select {
	case msg := <-sq.queue:
		return msg, true
	case <-sq.done:
		return nil, false
	}
}

// Close signals consumers to stop. Buffered messages are dropped.
func (sq *SyncQueue) Close() {
	sq.logger.Sugar().Infow("Closing tracker sync queue")
	close(sq.done)
}
