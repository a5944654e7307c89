// Benchmark tool for checking Red-Flag scoring consistency under load.
//
// Usage:
//
//	go run ./cmd/benchmark -csv /path/to/returns.csv -url http://localhost:8080
//
// This tool:
//  1. Reads self-assessment figures from a CSV file
//  2. Submits each row to POST /assessments
//  3. Re-reads the stored summary and runs an empty what-if simulation
//  4. Counts any disagreement between live, stored and simulated scores
//  5. Reports band distribution and request latency
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat"
)

// Row is one return read from the CSV file. Keys follow the API field names.
type Row map[string]any

// Summary is the subset of the assessment summary the checker reads.
type Summary struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
	Band  string `json:"band"`
}

// SimulationResponse is the subset of a simulation the checker reads.
type SimulationResponse struct {
	Baseline struct {
		Score int `json:"score"`
	} `json:"baseline"`
	Simulated struct {
		Score int `json:"score"`
	} `json:"simulated"`
	ScoreChange int `json:"scoreChange"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TotalProcessed atomic.Int64
	TotalErrors    atomic.Int64
	Rejected       atomic.Int64 // 400 and 422 responses

	StoredMismatches    atomic.Int64 // live score != stored score
	SimulatedMismatches atomic.Int64 // empty what-if moved the score

	mu        sync.Mutex
	bands     map[string]int
	latencies []float64 // milliseconds, create call only
}

func (m *Metrics) record(band string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bands[band]++
	m.latencies = append(m.latencies, float64(latency.Microseconds())/1000)
}

var (
	boolColumns = map[string]bool{
		"lossThisYear": true, "lossLastYear": true, "hasOtherIncome": true,
		"hasForeignIncome": true, "hasCapitalAllowances": true, "hasLossCarryForward": true,
	}
	intColumns = map[string]bool{
		"mileageClaimed": true,
	}
	stringColumns = map[string]bool{
		"email": true, "taxYear": true, "industry": true, "method": true,
		"reportType": true, "capitalAllowancesMethod": true,
	}
)

func main() {
	csvPath := flag.String("csv", "", "Path to CSV file of returns")
	baseURL := flag.String("url", "http://localhost:8080", "Red-Flag base URL")
	limit := flag.Int("limit", 1000, "Maximum rows to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	rps := flag.Float64("rps", 0, "Maximum rows per second (0 = unlimited)")
	simulate := flag.Bool("simulate", true, "Run an empty simulation per assessment")
	verbose := flag.Bool("verbose", false, "Print each result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/returns.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|          RED-FLAG BENCHMARK - Scoring Consistency             |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Server URL:  %s\n", *baseURL)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Rate:        %.0f rows/s\n", *rps)
	fmt.Printf("Simulate:    %v\n", *simulate)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Red-Flag not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the server is running:")
		fmt.Println("  go run ./cmd/redflag")
		os.Exit(1)
	}
	fmt.Println("OK  server is healthy")

	rows, err := readCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK  loaded %d rows\n", len(rows))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()
	metrics := runBenchmark(ctx, rows, *baseURL, *workers, *rps, *simulate, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)

	if metrics.StoredMismatches.Load() > 0 || metrics.SimulatedMismatches.Load() > 0 {
		os.Exit(2)
	}
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

// readCSV maps each column to the API field of the same name. Empty cells
// are left out so server defaults apply.
func readCSV(path string, limit int) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			continue // Skip malformed rows
		}

		row := Row{}
		for i, col := range header {
			if i >= len(record) {
				break
			}
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue
			}
			switch {
			case stringColumns[col]:
				row[col] = cell
			case boolColumns[col]:
				row[col] = cell == "1" || strings.EqualFold(cell, "true")
			case intColumns[col]:
				n, err := strconv.Atoi(cell)
				if err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", line, col, err)
				}
				row[col] = n
			default:
				f, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", line, col, err)
				}
				row[col] = f
			}
		}
		if _, ok := row["email"]; !ok {
			row["email"] = fmt.Sprintf("benchmark+%d@example.com", line)
		}

		rows = append(rows, row)
		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

func runBenchmark(ctx context.Context, rows []Row, baseURL string, numWorkers int, rps float64, simulate, verbose bool) *Metrics {
	metrics := &Metrics{bands: map[string]int{}}
	client := &http.Client{Timeout: 10 * time.Second}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), numWorkers)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)

	for _, row := range rows {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			checkRow(client, baseURL, row, metrics, simulate, verbose)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Printf("WARN: benchmark stopped early: %v\n", err)
	}

	return metrics
}

// checkRow submits one return and compares the live, stored and simulated
// scores. Failures are counted, never returned.
func checkRow(client *http.Client, baseURL string, row Row, metrics *Metrics, simulate, verbose bool) {
	metrics.TotalProcessed.Add(1)

	start := time.Now()
	live, status, err := postJSON[Summary](client, baseURL+"/assessments", row, http.StatusCreated)
	elapsed := time.Since(start)

	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
			metrics.Rejected.Add(1)
		} else {
			metrics.TotalErrors.Add(1)
		}
		if verbose {
			fmt.Printf("ERROR: %v -> %v\n", row["email"], err)
		}
		return
	}
	metrics.record(live.Band, elapsed)

	stored, err := getJSON[Summary](client, baseURL+"/assessments/"+live.ID)
	if err != nil {
		metrics.TotalErrors.Add(1)
		return
	}
	ok := stored.Score == live.Score && stored.Band == live.Band
	if !ok {
		metrics.StoredMismatches.Add(1)
	}

	if simulate {
		sim, _, err := postJSON[SimulationResponse](client, baseURL+"/assessments/"+live.ID+"/simulate", map[string]any{}, http.StatusOK)
		if err != nil {
			metrics.TotalErrors.Add(1)
			return
		}
		if sim.ScoreChange != 0 || sim.Baseline.Score != live.Score {
			metrics.SimulatedMismatches.Add(1)
			ok = false
		}
	}

	if verbose {
		mark := "ok"
		if !ok {
			mark = "MISMATCH"
		}
		fmt.Printf("%-8s %s | score %3d | band %-8s | %6.1fms\n",
			mark, live.ID, live.Score, live.Band, float64(elapsed.Microseconds())/1000)
	}
}

func postJSON[T any](client *http.Client, url string, body any, want int) (*T, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return nil, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, err
	}
	return &out, resp.StatusCode, nil
}

func getJSON[T any](client *http.Client, url string) (*T, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n+---------------------------------------------------------------+")
	fmt.Println("|                      BENCHMARK RESULTS                        |")
	fmt.Println("+---------------------------------------------------------------+")

	scored := len(m.latencies)

	fmt.Printf("\nDATASET\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed.Load())
	fmt.Printf("   Scored:           %d\n", scored)
	fmt.Printf("   Rejected:         %d\n", m.Rejected.Load())
	fmt.Printf("   Errors:           %d\n", m.TotalErrors.Load())

	fmt.Printf("\nCONSISTENCY\n")
	fmt.Printf("   Stored mismatches:    %d\n", m.StoredMismatches.Load())
	fmt.Printf("   Simulated mismatches: %d\n", m.SimulatedMismatches.Load())

	fmt.Printf("\nBAND DISTRIBUTION\n")
	for _, band := range []string{"LOW", "MODERATE", "HIGH"} {
		n := m.bands[band]
		pct := 0.0
		if scored > 0 {
			pct = 100 * float64(n) / float64(scored)
		}
		fmt.Printf("   %-9s %6d (%5.1f%%)\n", band, n, pct)
	}

	fmt.Printf("\nLATENCY (create)\n")
	if scored > 0 {
		lat := append([]float64(nil), m.latencies...)
		sort.Float64s(lat)
		fmt.Printf("   Mean:  %8.2fms\n", stat.Mean(lat, nil))
		fmt.Printf("   p50:   %8.2fms\n", stat.Quantile(0.50, stat.Empirical, lat, nil))
		fmt.Printf("   p95:   %8.2fms\n", stat.Quantile(0.95, stat.Empirical, lat, nil))
		fmt.Printf("   p99:   %8.2fms\n", stat.Quantile(0.99, stat.Empirical, lat, nil))
	}

	fmt.Printf("\nTHROUGHPUT\n")
	fmt.Printf("   Duration:   %v\n", duration.Round(time.Millisecond))
	if duration > 0 {
		fmt.Printf("   Rows/sec:   %.1f\n", float64(m.TotalProcessed.Load())/duration.Seconds())
	}
	fmt.Println()
}
