package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_EventsIngested     = "ingestion.eventsIngested"
	Metric_Incr_FeedFailure        = "ingestion.feedFailure"
	Metric_Incr_EventsMerged       = "reconciliation.eventsMerged"
	Metric_Incr_RemoteWriteFailure = "reconciliation.remoteWriteFailure"
	Metric_Incr_PriceFallback      = "valuation.priceFallback"
	Metric_Incr_EventUnvalued      = "valuation.eventUnvalued"
	Metric_Incr_PriceFetched       = "priceBackfill.priceFetched"

	Metric_Gauge_LastSyncedEpoch  = "cursor.lastSyncedEpoch"
	Metric_Gauge_CanonicalSetSize = "reconciliation.canonicalSetSize"

	Metric_Timing_TrackerSyncDuration = "sync.tracker.duration"
	Metric_Timing_IngestDuration      = "sync.ingest.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name: Metric_Incr_EventsIngested,
			Labels: []string{
				"trackerId",
				"feed",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_FeedFailure,
			Labels: []string{
				"trackerId",
				"feed",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_EventsMerged,
			Labels: []string{
				"trackerId",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_RemoteWriteFailure,
			Labels: []string{
				"trackerId",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_PriceFallback,
			Labels: []string{
				"dateKey",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_EventUnvalued,
			Labels: []string{
				"trackerId",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_PriceFetched,
			Labels: []string{
				"currency",
			},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name: Metric_Gauge_LastSyncedEpoch,
			Labels: []string{
				"trackerId",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Gauge_CanonicalSetSize,
			Labels: []string{
				"trackerId",
			},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name: Metric_Timing_TrackerSyncDuration,
			Labels: []string{
				"trackerId",
				"hasError",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_IngestDuration,
			Labels: []string{
				"trackerId",
			},
		},
	},
}
