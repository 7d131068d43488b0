package history

// Placeholder provenance used when version control metadata is unavailable.
const (
	UnknownCommit  = "unknown"
	UnknownMessage = "No git information available"
)

// BenchmarkRecord is one benchmark case as reported by the benchmark runner.
type BenchmarkRecord struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Unit   string  `json:"unit"`
}

// CoverageMetrics are the headline coverage percentages of a run.
type CoverageMetrics struct {
	LineCoverage     float64 `json:"line_coverage"`
	FunctionCoverage float64 `json:"function_coverage"`
	RegionCoverage   float64 `json:"region_coverage"`
}

// TestCounts is the test inventory of a run.
type TestCounts struct {
	Total            int `json:"total"`
	LibTests         int `json:"lib_tests"`
	DocTests         int `json:"doc_tests"`
	IntegrationTests int `json:"integration_tests"`
	FuzzTargets      int `json:"fuzz_targets"`
}

// CoverageTotal is the covered/total breakdown of one coverage dimension.
type CoverageTotal struct {
	Covered int     `json:"covered"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// CoverageDetails holds the raw counters behind CoverageMetrics.
type CoverageDetails struct {
	Lines     CoverageTotal `json:"lines"`
	Functions CoverageTotal `json:"functions"`
	Regions   CoverageTotal `json:"regions"`
}

// Provenance identifies the commit a run measured.
type Provenance struct {
	CommitSHA     string
	CommitMessage string
	Timestamp     string
}

// Snapshot starts a snapshot stamped with this provenance.
func (p Provenance) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:     p.Timestamp,
		CommitSHA:     p.CommitSHA,
		CommitMessage: p.CommitMessage,
	}
}

// BenchmarkDocument is the latest-only benchmark document regenerated every run.
type BenchmarkDocument struct {
	Benchmarks []BenchmarkRecord `json:"benchmarks"`
	Count      int               `json:"count"`
}

// NewBenchmarkDocument wraps the records of the current run.
func NewBenchmarkDocument(records []BenchmarkRecord) BenchmarkDocument {
	if records == nil {
		records = []BenchmarkRecord{}
	}
	return BenchmarkDocument{Benchmarks: records, Count: len(records)}
}

// CoverageDocument is the latest-only coverage document regenerated every run.
type CoverageDocument struct {
	Timestamp string          `json:"timestamp"`
	Coverage  CoverageMetrics `json:"coverage"`
	Tests     TestCounts      `json:"tests"`
	Details   CoverageDetails `json:"details"`
}

// Stats combines the test inventory and coverage percentages of the latest
// run into one flat document.
type Stats struct {
	TestCount        int     `json:"test_count"`
	LibTests         int     `json:"lib_tests"`
	DocTests         int     `json:"doc_tests"`
	IntegrationTests int     `json:"integration_tests"`
	FuzzTargets      int     `json:"fuzz_targets"`
	LineCoverage     float64 `json:"line_coverage"`
	FunctionCoverage float64 `json:"function_coverage"`
	RegionCoverage   float64 `json:"region_coverage"`
}

// NewStats builds the combined stats document.
func NewStats(tests TestCounts, cov CoverageMetrics) Stats {
	return Stats{
		TestCount:        tests.Total,
		LibTests:         tests.LibTests,
		DocTests:         tests.DocTests,
		IntegrationTests: tests.IntegrationTests,
		FuzzTargets:      tests.FuzzTargets,
		LineCoverage:     cov.LineCoverage,
		FunctionCoverage: cov.FunctionCoverage,
		RegionCoverage:   cov.RegionCoverage,
	}
}
