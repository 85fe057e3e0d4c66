package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RicardoG06/BancaInternet/internal/auth"
)

// Load generator for the transfer endpoint. Requires a seeded customer and
// the server's AUTH_JWT_SECRET so it can mint its own bearer token.
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	sourceID    string
	targetID    string
	customerID  string
	replayRate  float64
)

// Outcome counters.
var (
	totalRequests uint64
	success201    uint64 // created
	success200    uint64 // idempotent replays
	fail409       uint64 // conflicts
	fail400       uint64 // business rejections
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&sourceID, "source", "", "Source account ID")
	flag.StringVar(&targetID, "target", "", "Target account ID")
	flag.StringVar(&customerID, "customer", "demo-customer", "Customer ID owning both accounts")
	flag.Float64Var(&replayRate, "replay", 0.1, "Fraction of requests reusing the previous idempotency key")
}

func main() {
	flag.Parse()
	if sourceID == "" || targetID == "" {
		log.Fatal("-source and -target are required")
	}

	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}

	token, err := auth.Sign(map[string]any{
		"sub": customerID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}, []byte(secret))
	if err != nil {
		log.Fatalf("token mint failed: %v", err)
	}

	log.Printf("Starting benchmark | workers: %d | duration: %s | replay rate: %.0f%%",
		concurrency, duration, replayRate*100)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, token, i)
	}
	wg.Wait()

	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time, token string, id int) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	var lastKey string
	seq := 0
	for time.Since(start) < duration {
		seq++
		key := fmt.Sprintf("bench-%d-%d-%d", id, seq, time.Now().UnixNano())
		if lastKey != "" && float64(seq%100)/100 < replayRate {
			key = lastKey
		}
		lastKey = key

		payload := map[string]any{
			"sourceAccountId": sourceID,
			"targetAccountId": targetID,
			"amount":          1,
			"idempotencyKey":  key,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/v1/transfers", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusCreated:
			atomic.AddUint64(&success201, 1)
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusBadRequest:
			atomic.AddUint64(&fail400, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	results := map[string]any{
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    float64(total) / d.Seconds(),
		"success_created":   atomic.LoadUint64(&success201),
		"success_replay":    atomic.LoadUint64(&success200),
		"conflicts":         atomic.LoadUint64(&fail409),
		"business_rejected": atomic.LoadUint64(&fail400),
		"errors":            atomic.LoadUint64(&failOther),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}
