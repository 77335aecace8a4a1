// Benchmark tool for testing Harrier against a property catalog CSV.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/properties.csv -url http://localhost:8080
//
// This tool:
//   1. Reads a property catalog CSV and loads it into Harrier
//   2. Runs repeated matching searches against the catalog
//   3. Reports latency, throughput and the match level distribution
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CatalogRow represents a row from the property catalog CSV.
type CatalogRow struct {
	Address       string
	City          string
	State         string
	ZipCode       string
	BuildingTypes []string
	Tenancy       string
	SquareFeetMin int
	SquareFeetMax int
	SuiteCount    int
	RateText      string
	RatePerSqft   float64
	Latitude      *float64
	Longitude     *float64
}

// MatchRequest is the Harrier API request format.
type MatchRequest struct {
	Criteria map[string]any `json:"criteria"`
	Limit    int            `json:"limit,omitempty"`
}

// MatchResponse is the subset of the outcome the benchmark inspects.
type MatchResponse struct {
	ID      string `json:"id"`
	Matches []struct {
		Relevance int    `json:"relevance"`
		Level     string `json:"level"`
	} `json:"matches"`
	Summary struct {
		TotalEvaluated   int     `json:"totalEvaluated"`
		Admitted         int     `json:"admitted"`
		Rejected         int     `json:"rejected"`
		AverageRelevance float64 `json:"averageRelevance"`
	} `json:"summary"`
	Metadata struct {
		TotalMs  int64 `json:"totalMs"`
		Reranked bool  `json:"reranked"`
	} `json:"metadata"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalRuns   int64
	TotalErrors int64

	TotalMatches  int64
	TotalRejected int64

	Excellent int64
	Good      int64
	Fair      int64
	Poor      int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to property catalog CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	criteriaPath := flag.String("criteria", "", "Path to a criteria JSON file (optional)")
	runs := flag.Int("runs", 100, "Number of matching searches to run")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	skipLoad := flag.Bool("skip-load", false, "Skip loading the catalog, only run searches")
	verbose := flag.Bool("verbose", false, "Print each run result")
	flag.Parse()

	if *csvPath == "" && !*skipLoad {
		fmt.Println("Usage: benchmark -csv /path/to/properties.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("=================================================")
	fmt.Println("   HARRIER BENCHMARK - Catalog Matching")
	fmt.Println("=================================================")
	fmt.Printf("\nCSV File:     %s\n", *csvPath)
	fmt.Printf("Harrier URL:  %s\n", *baseURL)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Runs:         %d\n", *runs)
	fmt.Println()

	// Check Harrier is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("Harrier is healthy")

	// Load the catalog
	if !*skipLoad {
		fmt.Printf("\nReading catalog from %s...\n", *csvPath)
		rows, err := readCatalogCSV(*csvPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %d rows\n", len(rows))

		loaded, errored := loadCatalog(rows, *baseURL, *workers)
		fmt.Printf("Catalog loaded: %d saved, %d errors\n", loaded, errored)
	}

	// Build the search criteria
	criteria, err := buildCriteria(*criteriaPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to read criteria: %v\n", err)
		os.Exit(1)
	}

	// Run benchmark
	fmt.Printf("\nRunning %d searches with %d workers...\n", *runs, *workers)
	startTime := time.Now()
	metrics := runBenchmark(criteria, *baseURL, *runs, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readCatalogCSV(path string) ([]CatalogRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	field := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []CatalogRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		sqftMin, _ := strconv.Atoi(field(record, "sqft min"))
		sqftMax, _ := strconv.Atoi(field(record, "sqft max"))
		suites, _ := strconv.Atoi(field(record, "suites"))
		rate, _ := strconv.ParseFloat(field(record, "rate_per_sqft"), 64)

		row := CatalogRow{
			Address:       field(record, "address"),
			City:          field(record, "city"),
			State:         field(record, "state"),
			ZipCode:       field(record, "zip"),
			Tenancy:       field(record, "tenancy"),
			SquareFeetMin: sqftMin,
			SquareFeetMax: sqftMax,
			SuiteCount:    suites,
			RateText:      field(record, "rate_text"),
			RatePerSqft:   rate,
		}

		for _, bt := range strings.Split(field(record, "building_types"), ";") {
			if bt = strings.TrimSpace(bt); bt != "" {
				row.BuildingTypes = append(row.BuildingTypes, bt)
			}
		}

		if lat, err := strconv.ParseFloat(field(record, "lat"), 64); err == nil {
			if lng, err := strconv.ParseFloat(field(record, "long"), 64); err == nil {
				row.Latitude = &lat
				row.Longitude = &lng
			}
		}

		if row.Address == "" || row.State == "" {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func loadCatalog(rows []CatalogRow, baseURL string, numWorkers int) (loaded, errored int64) {
	work := make(chan CatalogRow, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for row := range work {
				body, _ := json.Marshal(map[string]any{
					"address":       row.Address,
					"city":          row.City,
					"state":         row.State,
					"zipCode":       row.ZipCode,
					"buildingTypes": row.BuildingTypes,
					"tenancy":       row.Tenancy,
					"squareFeetMin": row.SquareFeetMin,
					"squareFeetMax": row.SquareFeetMax,
					"suiteCount":    row.SuiteCount,
					"rateText":      row.RateText,
					"ratePerSqft":   row.RatePerSqft,
					"latitude":      row.Latitude,
					"longitude":     row.Longitude,
				})

				resp, err := client.Post(baseURL+"/properties", "application/json", bytes.NewReader(body))
				if err != nil {
					atomic.AddInt64(&errored, 1)
					continue
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusCreated {
					atomic.AddInt64(&errored, 1)
					continue
				}
				atomic.AddInt64(&loaded, 1)
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)
	wg.Wait()

	return loaded, errored
}

// buildCriteria reads a criteria file or falls back to a broad office
// search that exercises filtering, scoring and re-ranking.
func buildCriteria(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{
			"location": map[string]any{
				"state": "FL",
			},
			"minSquareFeet": 2000,
			"maxSquareFeet": 10000,
			"buildingTypes": []string{"Office"},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var criteria map[string]any
	if err := json.Unmarshal(data, &criteria); err != nil {
		return nil, err
	}
	return criteria, nil
}

func runBenchmark(criteria map[string]any, baseURL string, runs, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan int, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for range work {
				start := time.Now()
				result, err := runMatch(client, baseURL, criteria)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalRuns, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %v\n", err)
					}
					continue
				}

				atomic.AddInt64(&metrics.TotalMatches, int64(len(result.Matches)))
				atomic.AddInt64(&metrics.TotalRejected, int64(result.Summary.Rejected))

				for _, m := range result.Matches {
					switch m.Level {
					case "excellent":
						atomic.AddInt64(&metrics.Excellent, 1)
					case "good":
						atomic.AddInt64(&metrics.Good, 1)
					case "fair":
						atomic.AddInt64(&metrics.Fair, 1)
					default:
						atomic.AddInt64(&metrics.Poor, 1)
					}
				}

				if verbose {
					fmt.Printf("outcome %s | evaluated: %d | admitted: %d | avg: %.1f | reranked: %v | %dms\n",
						result.ID,
						result.Summary.TotalEvaluated,
						result.Summary.Admitted,
						result.Summary.AverageRelevance,
						result.Metadata.Reranked,
						elapsed,
					)
				}
			}
		}()
	}

	for i := 0; i < runs; i++ {
		work <- i
	}
	close(work)
	wg.Wait()

	return metrics
}

func runMatch(client *http.Client, baseURL string, criteria map[string]any) (*MatchResponse, error) {
	body, err := json.Marshal(MatchRequest{Criteria: criteria})
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(baseURL+"/match", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result MatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n=================================================")
	fmt.Println("   BENCHMARK RESULTS")
	fmt.Println("=================================================")

	fmt.Printf("\nRUN STATISTICS\n")
	fmt.Printf("   Total Runs:       %d\n", m.TotalRuns)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	fmt.Printf("   Matches Returned: %d\n", m.TotalMatches)
	fmt.Printf("   Rejected:         %d\n", m.TotalRejected)

	fmt.Printf("\nMATCH LEVEL DISTRIBUTION\n")
	fmt.Printf("   Excellent: %d\n", m.Excellent)
	fmt.Printf("   Good:      %d\n", m.Good)
	fmt.Printf("   Fair:      %d\n", m.Fair)
	fmt.Printf("   Poor:      %d\n", m.Poor)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalRuns > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalRuns)
		rps := float64(m.TotalRuns) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f searches/sec\n", rps)
	}

	fmt.Println()
}
