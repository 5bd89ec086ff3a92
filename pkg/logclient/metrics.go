package logclient

import (
	"fmt"
	"io"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

type metrics struct {
	Events        int
	InvalidEvents int
	mu            sync.RWMutex
}

func (m *metrics) IncEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events++
}

func (m *metrics) IncInvalidEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InvalidEvents++
}

func (m *metrics) Snapshot() metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return metrics{
		Events:        m.Events,
		InvalidEvents: m.InvalidEvents,
	}
}

// WriteMetrics writes the client counters in the Prometheus text format.
func (c *Client) WriteMetrics(w io.Writer) error {
	for _, mf := range c.metricFamilies() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func (c *Client) metricFamilies() []*dto.MetricFamily {
	m := c.metrics.Snapshot()
	d := c.delivery.Stats()

	families := []*dto.MetricFamily{
		counterFamily("logclient_events_total", "Events accepted by Log.", float64(m.Events)),
		counterFamily("logclient_invalid_events_total", "Events rejected for missing or malformed tags.", float64(m.InvalidEvents)),
		{
			Name: strPtr("logclient_payloads_total"),
			Help: strPtr("Payloads by delivery result."),
			Type: dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{
				labeledCounter("result", "delivered", float64(d.Delivered)),
				labeledCounter("result", "failed", float64(d.Failed)),
				labeledCounter("result", "dropped", float64(d.Dropped)),
			},
		},
		counterFamily("logclient_delivered_events_total", "Events in successfully delivered payloads.", float64(d.EventsDelivered)),
		counterFamily("logclient_retries_total", "Delivery attempts that were retried.", float64(d.Retries)),
	}

	if c.aggregator != nil {
		families = append(families, &dto.MetricFamily{
			Name: strPtr("logclient_batch_pending_events"),
			Help: strPtr("Events buffered in the current batch."),
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{
				{Gauge: &dto.Gauge{Value: floatPtr(float64(c.aggregator.Pending()))}},
			},
		})
	}
	return families
}

func counterFamily(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: floatPtr(value)}},
		},
	}
}

func labeledCounter(label, value string, v float64) *dto.Metric {
	return &dto.Metric{
		Label:   []*dto.LabelPair{{Name: strPtr(label), Value: strPtr(value)}},
		Counter: &dto.Counter{Value: floatPtr(v)},
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
