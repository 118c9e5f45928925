// Package metrics fans metric writes out to every configured sink.
// Callers report through the sink and never talk to a concrete backend.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nodeledger/rewards-tracker/internal/config"
	"github.com/nodeledger/rewards-tracker/pkg/metrics/dogstatsd"
	"github.com/nodeledger/rewards-tracker/pkg/metrics/metricsTypes"
	"github.com/nodeledger/rewards-tracker/pkg/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type MetricsSinkConfig struct {
}

type MetricsSink struct {
	config  *MetricsSinkConfig
	clients []metricsTypes.IMetricsClient
}

func NewMetricsSink(cfg *MetricsSinkConfig, clients []metricsTypes.IMetricsClient) (*MetricsSink, error) {
	return &MetricsSink{
		config:  cfg,
		clients: clients,
	}, nil
}

func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	for _, c := range ms.clients {
		if err := c.Incr(name, labels, value); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	for _, c := range ms.clients {
		if err := c.Gauge(name, value, labels); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	for _, c := range ms.clients {
		if err := c.Timing(name, value, labels); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Flush() {
	for _, c := range ms.clients {
		c.Flush()
	}
}

// InitMetricsSinksFromConfig builds the set of metric clients enabled in
// the config. An enabled prometheus sink also starts the scrape endpoint.
func InitMetricsSinksFromConfig(cfg *config.Config, l *zap.Logger) ([]metricsTypes.IMetricsClient, error) {
	clients := make([]metricsTypes.IMetricsClient, 0)

	if cfg.PrometheusConfig.Enabled {
		pmc, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus metrics client: %w", err)
		}
		clients = append(clients, pmc)

		go func() {
			addr := fmt.Sprintf(":%d", cfg.PrometheusConfig.Port)
			l.Sugar().Infow("Starting prometheus metrics server", zap.String("addr", addr))
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, nil); err != nil {
				l.Sugar().Errorw("Prometheus metrics server stopped", zap.Error(err))
			}
		}()
	}

	if cfg.StatsdConfig.Enabled {
		dmc, err := dogstatsd.NewDogStatsdMetricsClient(cfg.StatsdConfig.Url, l)
		if err != nil {
			return nil, fmt.Errorf("failed to create statsd metrics client: %w", err)
		}
		clients = append(clients, dmc)
	}

	return clients, nil
}
