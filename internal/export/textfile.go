package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/caevv/trendkeeper/internal/history"
)

const namespace = "trendkeeper"

// Registry builds a fresh registry holding gauges for the summary of h.
// Each call creates an independent registry so families can be exported
// side by side.
func Registry(family string, h *history.History) (*prometheus.Registry, error) {
	latest := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "metric",
		Name:      "latest",
		Help:      "Latest recorded value of a metric (the mean for timings).",
	}, []string{"family", "metric"})
	change := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "metric",
		Name:      "trend_change",
		Help:      "Change between the last two recorded values (percent for timings).",
	}, []string{"family", "metric"})
	direction := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "metric",
		Name:      "trend_direction",
		Help:      "Trend classification of a metric; the active direction is 1.",
	}, []string{"family", "metric", "direction"})
	snapshots := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "history",
		Name:      "snapshots",
		Help:      "Number of snapshots retained in the history.",
	}, []string{"family"})

	registry := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{latest, change, direction, snapshots} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	snapshots.WithLabelValues(family).Set(float64(len(h.Snapshots)))

	names := make([]string, 0, len(h.Summary))
	for name := range h.Summary {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sum := h.Summary[name]
		latest.WithLabelValues(family, name).Set(sum.Latest.Value)
		if sum.Trend == nil {
			continue
		}
		change.WithLabelValues(family, name).Set(sum.Trend.Change)
		direction.WithLabelValues(family, name, string(sum.Trend.Direction)).Set(1)
	}
	return registry, nil
}

// WriteTextfile writes the family's summary in the Prometheus text format.
// The file is replaced atomically.
func WriteTextfile(outputPath, family string, h *history.History) error {
	registry, err := Registry(family, h)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(outputPath, registry); err != nil {
		return fmt.Errorf("write textfile %s: %w", outputPath, err)
	}
	return nil
}
