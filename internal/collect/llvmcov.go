package collect

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/caevv/trendkeeper/internal/history"
	"github.com/caevv/trendkeeper/internal/trend"
)

type llvmCovTotal struct {
	Count   int     `json:"count"`
	Covered int     `json:"covered"`
	Percent float64 `json:"percent"`
}

type llvmCovExport struct {
	Data []struct {
		Totals struct {
			Lines     llvmCovTotal `json:"lines"`
			Functions llvmCovTotal `json:"functions"`
			Regions   llvmCovTotal `json:"regions"`
		} `json:"totals"`
	} `json:"data"`
}

// ReadLLVMCov reads an `llvm-cov export -summary-only` JSON file.
func ReadLLVMCov(path string) (history.CoverageMetrics, history.CoverageDetails, error) {
	f, err := os.Open(path)
	if err != nil {
		return history.CoverageMetrics{}, history.CoverageDetails{}, fmt.Errorf("open coverage report: %w", err)
	}
	defer f.Close()
	return ParseLLVMCov(f)
}

// ParseLLVMCov decodes the totals of the first export entry. Percentages
// are rounded to two decimals.
func ParseLLVMCov(r io.Reader) (history.CoverageMetrics, history.CoverageDetails, error) {
	var export llvmCovExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return history.CoverageMetrics{}, history.CoverageDetails{}, fmt.Errorf("decode coverage report: %w", err)
	}
	if len(export.Data) == 0 {
		return history.CoverageMetrics{}, history.CoverageDetails{}, fmt.Errorf("coverage report has no data entries")
	}

	totals := export.Data[0].Totals
	details := history.CoverageDetails{
		Lines:     toTotal(totals.Lines),
		Functions: toTotal(totals.Functions),
		Regions:   toTotal(totals.Regions),
	}
	metrics := history.CoverageMetrics{
		LineCoverage:     details.Lines.Percent,
		FunctionCoverage: details.Functions.Percent,
		RegionCoverage:   details.Regions.Percent,
	}
	return metrics, details, nil
}

func toTotal(t llvmCovTotal) history.CoverageTotal {
	return history.CoverageTotal{
		Covered: t.Covered,
		Total:   t.Count,
		Percent: trend.Round(t.Percent),
	}
}
