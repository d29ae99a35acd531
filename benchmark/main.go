// Package main provides a performance benchmarking tool for the ERS CLI.
// It generates synthetic subject sets of increasing size and measures
// 'ers score' and 'ers rescore' across worker counts and cache backends,
// treating the first successful run as cold and averaging the rest as warm,
// generating CSV output for performance analysis and documentation.
//
// Prerequisites:
// - ers binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory for generated subject files and the SQLite store
package main

import (
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Dataset     string
	Command     string
	Workers     int
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir     string
	Timeout     time.Duration
	Workers     []int
	NoCacheRuns int
	CacheRuns   int
	Sizes       []int
}

// subjectDoc mirrors the subjects file format read by 'ers score' and 'ers subject put'.
type subjectDoc struct {
	Subjects []map[string]any `yaml:"subjects"`
}

func main() {
	// Parse command line arguments
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:     os.Args[1],
		Timeout:     5 * time.Minute,
		Workers:     []int{1, 4, 14},
		NoCacheRuns: 3,
		CacheRuns:   4,
		Sizes:       []int{100, 1000, 10000},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the ers binary and the work directory exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("ers"); err != nil {
		return fmt.Errorf("ers binary not found in PATH")
	}
	if err := os.MkdirAll(config.WorkDir, 0o755); err != nil {
		return fmt.Errorf("cannot create work dir %s: %w", config.WorkDir, err)
	}
	return nil
}

var (
	benchCategories = []string{"food", "clothing", "electronics", "furniture", "services"}
	benchSizes      = []string{"micro", "small", "medium", "large"}
)

// generateSubjects writes n random product subjects and returns the file path.
func generateSubjects(dir string, n int) (string, error) {
	r := rand.New(rand.NewPCG(uint64(n), 42))
	doc := subjectDoc{Subjects: make([]map[string]any, n)}
	for i := range n {
		ratings := r.IntN(20)
		doc.Subjects[i] = map[string]any{
			"id":             fmt.Sprintf("subject-%05d", i),
			"owner_id":       fmt.Sprintf("owner-%d", i%50),
			"kind":           "product",
			"categories":     []string{benchCategories[r.IntN(len(benchCategories))]},
			"business_size":  benchSizes[r.IntN(len(benchSizes))],
			"chosen_metrics": []string{"local_sourcing_pct", "vegan_friendly", "durability", "community_trust", "certifications"},
			"metrics": map[string]any{
				"local_sourcing_pct": r.IntN(101),
				"vegan_friendly":     r.IntN(2) == 1,
				"durability":         r.Float64() * 10,
				"community_trust":    map[string]any{"average": 1 + r.Float64()*9, "count": ratings},
				"certifications":     []string{"organic"}[:r.IntN(2)],
			},
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("subjects_%d.yaml", n))
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

// runBenchmarks executes all benchmark tests across configured dataset sizes
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d datasets, %v timeout, workers %v, no-cache: %d runs, cache: %d runs\n",
		len(config.Sizes), config.Timeout, config.Workers, config.NoCacheRuns, config.CacheRuns)

	for _, size := range config.Sizes {
		dataset := strconv.Itoa(size)
		fmt.Printf("Benchmarking %s subjects\n", dataset)

		file, err := generateSubjects(config.WorkDir, size)
		if err != nil {
			fmt.Printf("Warning: failed to generate dataset %s: %v\n", dataset, err)
			continue
		}

		storePath := filepath.Join(config.WorkDir, fmt.Sprintf("store_%d.db", size))
		_ = os.Remove(storePath)
		load := exec.Command("ers", "subject", "put", file,
			"--store-db-connect", storePath, "--cache-backend", "none")
		if output, err := load.CombinedOutput(); err != nil {
			fmt.Printf("Warning: failed to load dataset %s: %v\nOutput: %s\n", dataset, err, string(output))
			continue
		}

		for _, workers := range config.Workers {
			results = append(results, runBenchmarkSuite(config, dataset, workers, "score", file))
			results = append(results, runBenchmarkSuite(config, dataset, workers, "rescore", "--store-db-connect", storePath))
		}
	}

	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a command
func runBenchmarkSuite(config BenchmarkConfig, dataset string, workers int, command string, extraArgs ...string) BenchmarkResult {
	fmt.Printf("Running %s on %s subjects with %d workers\n", command, dataset, workers)

	cachePath := filepath.Join(config.WorkDir, fmt.Sprintf("cache_%s.db", dataset))
	_ = os.Remove(cachePath)

	// Helper to run a benchmark phase
	runPhase := func(cacheArgs []string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		args := append([]string{command}, extraArgs...)
		args = append(args, "--workers", strconv.Itoa(workers), "--limit", "10")
		args = append(args, cacheArgs...)
		cold, times := runBenchmark(config, args, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avg := sum / float64(len(times))
			avgTime = fmt.Sprintf("%.3fs", avg)
		}
		return cold, avgTime
	}

	// Phase 1: No-cache runs
	_, noCacheAvg := runPhase([]string{"--cache-backend", "none"}, config.NoCacheRuns, "No-cache")

	// Phase 2: Cache runs
	coldTime, warmAvg := runPhase([]string{"--cache-backend", "sqlite", "--cache-db-connect", cachePath}, config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Dataset:     dataset,
		Command:     command,
		Workers:     workers,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes an ers command multiple times and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, args []string, numRuns int) (coldTime float64, warmTimes []float64) {
	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()

		cmd := exec.Command("ers", args...)
		cmd.Dir = config.WorkDir

		done := make(chan bool)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			// Timeout - don't add to times
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, "Scoring completed in") &&
		strings.Contains(outputStr, "workers")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("ers_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"subjects", "cmd", "workers", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write results
	for _, result := range results {
		record := []string{result.Dataset, result.Command, strconv.Itoa(result.Workers), result.NoCacheTime, result.ColdTime, result.WarmTime}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")

	printCommandSummary(results, "score", "Stateless Scoring:")
	printCommandSummary(results, "rescore", "Stored Rescore:")

	fmt.Printf("Benchmark script completed successfully\n")
}

// printCommandSummary displays results for a specific command type
func printCommandSummary(results []BenchmarkResult, command, title string) {
	fmt.Printf("%s\n", title)
	for _, result := range results {
		if result.Command == command {
			fmt.Printf("  %6s subjects, %2d workers: No-cache: %s, Cold: %s, Warm: %s\n",
				result.Dataset, result.Workers, result.NoCacheTime, result.ColdTime, result.WarmTime)
		}
	}
}
