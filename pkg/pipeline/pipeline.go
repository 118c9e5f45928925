// Package pipeline orchestrates a tracker's sync cycle: cursor checks,
// explorer ingestion, consensus epoch income, price backfill and
// reconciliation. One tracker is always processed sequentially;
// distinct trackers fan out across a worker pool.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nodeledger/rewards-tracker/internal/config"
	"github.com/nodeledger/rewards-tracker/pkg/clients/beaconchain"
	"github.com/nodeledger/rewards-tracker/pkg/cursors"
	"github.com/nodeledger/rewards-tracker/pkg/epochs"
	"github.com/nodeledger/rewards-tracker/pkg/exemption"
	"github.com/nodeledger/rewards-tracker/pkg/ingestion"
	"github.com/nodeledger/rewards-tracker/pkg/metrics"
	"github.com/nodeledger/rewards-tracker/pkg/metrics/metricsTypes"
	"github.com/nodeledger/rewards-tracker/pkg/priceIndex"
	"github.com/nodeledger/rewards-tracker/pkg/reconciliation"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/nodeledger/rewards-tracker/pkg/storage"
	"github.com/nodeledger/rewards-tracker/pkg/syncQueue"
	"go.uber.org/zap"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// BeaconSource is the consensus-layer income feed.
type BeaconSource interface {
	GetValidator(ctx context.Context, pubkey string) (*beaconchain.Validator, error)
	GetEpochIncome(ctx context.Context, pubkey string, epoch uint64) (*beaconchain.EpochIncome, error)
}

type Pipeline struct {
	adapter         *ingestion.Adapter
	beaconClient    BeaconSource
	engine          *reconciliation.Engine
	backfiller      *priceIndex.Backfiller
	localCache      storage.LocalCache
	remoteStore     storage.RemoteStore
	epochCalculator *epochs.Calculator
	policyTable     exemption.PolicyTable
	globalConfig    *config.Config
	metricsSink     *metrics.MetricsSink
	logger          *zap.Logger
}

func NewPipeline(
	adapter *ingestion.Adapter,
	beaconClient BeaconSource,
	engine *reconciliation.Engine,
	backfiller *priceIndex.Backfiller,
	localCache storage.LocalCache,
	remoteStore storage.RemoteStore,
	epochCalculator *epochs.Calculator,
	policyTable exemption.PolicyTable,
	gc *config.Config,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Pipeline {
	return &Pipeline{
		adapter:         adapter,
		beaconClient:    beaconClient,
		engine:          engine,
		backfiller:      backfiller,
		localCache:      localCache,
		remoteStore:     remoteStore,
		epochCalculator: epochCalculator,
		policyTable:     policyTable,
		globalConfig:    gc,
		metricsSink:     ms,
		logger:          l,
	}
}

// TrackerSyncResult summarizes one tracker's sync pass.
type TrackerSyncResult struct {
	TrackerId       string
	EventsIngested  int
	EventsMerged    int
	FeedFailures    int
	EpochsProcessed uint64
	Aggregates      *Aggregates
}

// SyncTracker runs one full sync pass for a tracker. The pass is
// sequential: ingest, price fill, merge, store writes. Sub-feed and
// remote-write failures degrade the pass instead of aborting it; only a
// failure to load or merge state is fatal.
func (p *Pipeline) SyncTracker(ctx context.Context, trackerId string, requestType syncQueue.SyncRequestType) (*TrackerSyncResult, error) {
	span, ctx := ddTracer.StartSpanFromContext(ctx, "pipeline.SyncTracker")
	span.SetTag("tracker_id", trackerId)
	defer span.Finish()

	startTime := time.Now()
	hasError := false
	defer func() {
		_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_TrackerSyncDuration, time.Since(startTime), []metricsTypes.MetricsLabel{
			{Name: "trackerId", Value: trackerId},
			{Name: "hasError", Value: fmt.Sprintf("%v", hasError)},
		})
	}()

	tracker, err := p.remoteStore.GetTracker(trackerId)
	if err != nil {
		hasError = true
		return nil, fmt.Errorf("failed to load tracker '%s': %w", trackerId, err)
	}

	now := time.Now()
	result := &TrackerSyncResult{TrackerId: trackerId}
	fresh := make([]*rewardTypes.RewardEvent, 0)

	if requestType == syncQueue.SyncRequestType_Full {
		ingested, feedFailures := p.runExplorerIngestion(ctx, tracker, now)
		fresh = append(fresh, ingested...)
		result.EventsIngested = len(ingested)
		result.FeedFailures = feedFailures
	}

	epochEvents, epochsProcessed := p.runEpochBatch(ctx, tracker, now)
	fresh = append(fresh, epochEvents...)
	result.EventsIngested += len(epochEvents)
	result.EpochsProcessed = epochsProcessed

	// Fill price gaps before the merge so aggregates computed from the
	// merged set see a complete table. A backfill failure only degrades
	// valuation, never the ledger.
	index, err := p.backfiller.BackfillForEvents(ctx, fresh, tracker.Currency)
	if err != nil {
		p.logger.Sugar().Errorw("Price backfill failed",
			zap.String("trackerId", trackerId),
			zap.Error(err),
		)
		index, err = priceIndex.LoadFromStore(p.remoteStore, tracker.Currency)
		if err != nil {
			index = priceIndex.MapIndex{}
		}
	}

	merged, err := p.engine.Reconcile(tracker, fresh)
	if err != nil {
		hasError = true
		return nil, fmt.Errorf("failed to reconcile tracker '%s': %w", trackerId, err)
	}
	result.EventsMerged = len(merged)

	if err := p.remoteStore.UpsertTracker(tracker); err != nil {
		// cursors not persisted; the next pass refetches, the merge is
		// idempotent
		p.logger.Sugar().Errorw("Failed to persist tracker cursors",
			zap.String("trackerId", trackerId),
			zap.Error(err),
		)
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_RemoteWriteFailure, []metricsTypes.MetricsLabel{
			{Name: "trackerId", Value: trackerId},
		}, 1)
	}

	aggregates, err := p.ComputeAggregates(tracker, merged, index, now)
	if err != nil {
		p.logger.Sugar().Errorw("Failed to compute aggregates",
			zap.String("trackerId", trackerId),
			zap.Error(err),
		)
	} else {
		result.Aggregates = aggregates
	}

	_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_EventsMerged, []metricsTypes.MetricsLabel{
		{Name: "trackerId", Value: trackerId},
	}, float64(len(merged)))
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_CanonicalSetSize, float64(len(merged)), []metricsTypes.MetricsLabel{
		{Name: "trackerId", Value: trackerId},
	})
	if tracker.LastSyncedEpoch != nil {
		_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_LastSyncedEpoch, float64(*tracker.LastSyncedEpoch), []metricsTypes.MetricsLabel{
			{Name: "trackerId", Value: trackerId},
		})
	}

	p.logger.Sugar().Infow("Tracker sync complete",
		zap.String("trackerId", trackerId),
		zap.Int("eventsIngested", result.EventsIngested),
		zap.Int("eventsMerged", result.EventsMerged),
		zap.Int("feedFailures", result.FeedFailures),
		zap.Uint64("epochsProcessed", result.EpochsProcessed),
	)
	return result, nil
}

// runExplorerIngestion polls the explorer feeds when the timestamp
// cursor is due. The cursor only advances when every sub-feed succeeded,
// so a partial failure is re-fetched on the next pass.
func (p *Pipeline) runExplorerIngestion(ctx context.Context, tracker *rewardTypes.Tracker, now time.Time) ([]*rewardTypes.RewardEvent, int) {
	cursor := cursors.NewTimestampCursor(tracker.LastFetchedTimestamp)
	if !cursor.ShouldSync(now) {
		p.logger.Sugar().Debugw("Explorer cursor not due",
			zap.String("trackerId", tracker.Id),
			zap.Uint64("lastFetchedTimestamp", tracker.LastFetchedTimestamp),
		)
		return nil, 0
	}

	span, ctx := ddTracer.StartSpanFromContext(ctx, "pipeline.runExplorerIngestion")
	span.SetTag("tracker_id", tracker.Id)
	defer span.Finish()

	ingestStart := time.Now()
	events, feedErrors := p.adapter.Ingest(ctx, tracker, cursor.LowerBound())
	_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_IngestDuration, time.Since(ingestStart), []metricsTypes.MetricsLabel{
		{Name: "trackerId", Value: tracker.Id},
	})

	for _, feedErr := range feedErrors {
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_FeedFailure, []metricsTypes.MetricsLabel{
			{Name: "trackerId", Value: tracker.Id},
			{Name: "feed", Value: string(feedErr.Feed)},
		}, 1)
	}
	_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_EventsIngested, []metricsTypes.MetricsLabel{
		{Name: "trackerId", Value: tracker.Id},
		{Name: "feed", Value: "explorer"},
	}, float64(len(events)))

	if len(feedErrors) == 0 {
		cursor.Advance(now)
		tracker.LastFetchedTimestamp = cursor.LastFetchedSec
	}
	return events, len(feedErrors)
}

// runEpochBatch advances the consensus-layer cursor. A per-epoch
// failure stops the batch; epochs already processed keep their credit
// and their events are still merged.
func (p *Pipeline) runEpochBatch(ctx context.Context, tracker *rewardTypes.Tracker, now time.Time) ([]*rewardTypes.RewardEvent, uint64) {
	if tracker.ValidatorPubkey == "" {
		return nil, 0
	}

	span, ctx := ddTracer.StartSpanFromContext(ctx, "pipeline.runEpochBatch")
	span.SetTag("tracker_id", tracker.Id)
	defer span.Finish()

	validator, err := p.beaconClient.GetValidator(ctx, tracker.ValidatorPubkey)
	if err != nil {
		span.SetTag("error", true)
		span.SetTag("error.message", err.Error())
		p.logger.Sugar().Errorw("Failed to fetch validator, skipping epoch batch",
			zap.String("trackerId", tracker.Id),
			zap.Error(err),
		)
		return nil, 0
	}
	if validator.Status == "exited" {
		p.logger.Sugar().Debugw("Validator has exited, skipping epoch batch",
			zap.String("trackerId", tracker.Id),
			zap.Uint64("validatorIndex", validator.Index),
		)
		return nil, 0
	}

	cursor := cursors.NewEpochCursor(tracker.LastSyncedEpoch, p.globalConfig.SyncConfig.EpochMaxBatch)
	currentEpoch := p.epochCalculator.CurrentEpoch(now)
	if tracker.LastSyncedEpoch == nil {
		// First pass pins to the current epoch. Record where tracking
		// of the consensus feed actually started.
		tracker.TrackingStartEpoch = currentEpoch
	}

	events := make([]*rewardTypes.RewardEvent, 0)
	processed, err := cursor.RunBatch(currentEpoch, func(epoch uint64) error {
		income, err := p.beaconClient.GetEpochIncome(ctx, tracker.ValidatorPubkey, epoch)
		if err != nil {
			return err
		}
		event, ok := ingestion.EventFromEpochIncome(tracker, income, p.epochCalculator.EpochEndTimestamp(epoch))
		if ok {
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		span.SetTag("error", true)
		span.SetTag("error.message", err.Error())
		p.logger.Sugar().Errorw("Epoch batch stopped early",
			zap.String("trackerId", tracker.Id),
			zap.Uint64("epochsProcessed", processed),
			zap.Error(err),
		)
	}

	tracker.LastSyncedEpoch = cursor.LastSynced
	if processed > 0 {
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_EventsIngested, []metricsTypes.MetricsLabel{
			{Name: "trackerId", Value: tracker.Id},
			{Name: "feed", Value: "beacon"},
		}, float64(len(events)))
	}
	return events, processed
}

// RunSyncCycle syncs every registered tracker once, fanning the set out
// over the configured worker count. Each tracker lands on exactly one
// worker.
func (p *Pipeline) RunSyncCycle(ctx context.Context) error {
	span, ctx := ddTracer.StartSpanFromContext(ctx, "pipeline.RunSyncCycle")
	defer span.Finish()

	trackers, err := p.remoteStore.ListTrackers()
	if err != nil {
		return fmt.Errorf("failed to list trackers: %w", err)
	}
	span.SetTag("tracker_count", len(trackers))

	workers := p.globalConfig.SyncConfig.Workers
	if workers < 1 {
		workers = 1
	}

	trackerChan := make(chan *rewardTypes.Tracker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tracker := range trackerChan {
				if _, err := p.SyncTracker(ctx, tracker.Id, syncQueue.SyncRequestType_Full); err != nil {
					p.logger.Sugar().Errorw("Tracker sync failed",
						zap.String("trackerId", tracker.Id),
						zap.Error(err),
					)
				}
			}
		}()
	}

	for _, tracker := range trackers {
		select {
		case trackerChan <- tracker:
		case <-ctx.Done():
			close(trackerChan)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(trackerChan)
	wg.Wait()
	return nil
}

// ConsumeQueue drains the sync queue until it is closed or the context
// is canceled. Run one goroutine per desired consumer.
func (p *Pipeline) ConsumeQueue(ctx context.Context, sq *syncQueue.SyncQueue) {
	for {
		msg, ok := sq.Dequeue()
		if !ok {
			return
		}
		result, err := p.SyncTracker(ctx, msg.Data.TrackerId, msg.Data.RequestType)

		if msg.ResponseChan == nil {
			continue
		}
		response := &syncQueue.SyncResponse{Error: err}
		if result != nil {
			response.Data = &syncQueue.SyncResponseData{
				TrackerId:    result.TrackerId,
				EventsMerged: result.EventsMerged,
			}
		}
		msg.ResponseChan <- response
	}
}
