// Package export writes metric histories to formats consumed outside the
// static pages: Parquet for offline analysis and the Prometheus textfile
// format for node_exporter's textfile collector.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/caevv/trendkeeper/internal/history"
	"github.com/caevv/trendkeeper/internal/metrics"
)

// MetricRow is one observation of one metric in one snapshot.
type MetricRow struct {
	Family    string    `parquet:"family,snappy,dict"`
	Timestamp time.Time `parquet:"timestamp,snappy"`
	CommitSHA string    `parquet:"commit_sha,snappy"`
	Metric    string    `parquet:"metric,snappy,dict"`

	// Value is the series value: the percentage, the count or the mean.
	Value float64 `parquet:"value,snappy"`

	// Timing columns are null for scalar metrics.
	Mean   *float64 `parquet:"mean,optional,snappy"`
	Median *float64 `parquet:"median,optional,snappy"`
	StdDev *float64 `parquet:"std_dev,optional,snappy"`
	Unit   *string  `parquet:"unit,optional,snappy"`
}

// Rows flattens the snapshots of h into rows, in snapshot order. Snapshots
// with an unparseable timestamp are skipped.
func Rows(fam metrics.Family, h *history.History) []MetricRow {
	var rows []MetricRow
	for _, snap := range h.Snapshots {
		ts, err := snap.Time()
		if err != nil {
			continue
		}
		for _, obs := range fam.Extract(snap) {
			row := MetricRow{
				Family:    fam.Name,
				Timestamp: ts,
				CommitSHA: snap.CommitSHA,
				Metric:    obs.Name,
				Value:     obs.Value.Value,
			}
			if t := obs.Value.Timing; t != nil {
				mean, median, stdDev, unit := t.Mean, t.Median, t.StdDev, t.Unit
				row.Mean, row.Median, row.StdDev, row.Unit = &mean, &median, &stdDev, &unit
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteParquet writes the family's rows to outputPath and returns the
// number of rows written.
func WriteParquet(outputPath string, fam metrics.Family, h *history.History) (int, error) {
	rows := Rows(fam, h)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[MetricRow](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return 0, fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	// Close flushes the footer; the file is unreadable without it.
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("failed to close output file: %w", err)
	}
	return len(rows), nil
}
