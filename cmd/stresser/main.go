// Command stresser fires concurrent lead reassignments at one deal and
// reports the status distribution. Afterwards the deal must still have
// exactly one active lead.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	baseURL     string
	dealID      uint
	adminID     uint
	leads       []uint
	rps         int
	duration    time.Duration
	concurrency int
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:   "stresser",
		Short: "Concurrent deal lead reassignment load test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "http://localhost:8080/api/v1", "API base URL")
	f.UintVar(&opts.dealID, "deal", 1, "deal to contend on")
	f.UintVar(&opts.adminID, "admin", 1, "SystemAdmin user id issuing the reassignments")
	f.UintSliceVar(&opts.leads, "leads", []uint{2, 3}, "DealLead user ids to rotate through")
	f.IntVar(&opts.rps, "rps", 20, "requests per second")
	f.DurationVar(&opts.duration, "duration", 10*time.Second, "test duration")
	f.IntVar(&opts.concurrency, "concurrency", 8, "max in-flight requests")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts options) error {
	if len(opts.leads) == 0 || opts.rps <= 0 {
		return fmt.Errorf("need at least one lead and a positive rps")
	}
	log.Printf("Contending on deal %d with %d leads for %s at %d RPS", opts.dealID, len(opts.leads), opts.duration, opts.rps)

	client := &http.Client{Timeout: 10 * time.Second}
	// Таймер для ограничения продолжительности теста
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	var (
		mu       sync.Mutex
		statuses = map[int]int{}
		failures int
	)

	g := new(errgroup.Group)
	g.SetLimit(opts.concurrency)

	ticker := time.NewTicker(time.Second / time.Duration(opts.rps))
	defer ticker.Stop()

	start := time.Now()
	sent := 0
loop:
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
		sent++
		lead := opts.leads[i%len(opts.leads)]
		g.Go(func() error {
			code, err := reassign(client, opts, lead)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				return nil
			}
			statuses[code]++
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	// Вывод результатов
	log.Println("--- Stress Test Results ---")
	log.Printf("Duration: %s", elapsed.Round(time.Millisecond))
	log.Printf("Requests sent: %d (transport failures: %d)", sent, failures)
	log.Printf("Measured RPS: %.2f (Goal: %d)", float64(sent)/elapsed.Seconds(), opts.rps)

	codes := make([]int, 0, len(statuses))
	for code := range statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		log.Printf("  HTTP %d: %d", code, statuses[code])
	}

	// После нагрузки у сделки должен остаться ровно один активный лид
	return checkSingleLead(client, opts)
}

func reassign(client *http.Client, opts options, lead uint) (int, error) {
	body, _ := json.Marshal(map[string]any{
		"requesting_user_id": opts.adminID,
		"new_lead_user_id":   lead,
	})
	url := fmt.Sprintf("%s/deals/%d/lead", opts.baseURL, opts.dealID)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func checkSingleLead(client *http.Client, opts options) error {
	resp, err := client.Get(fmt.Sprintf("%s/deals/%d/lead", opts.baseURL, opts.dealID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("deal %d has no active lead after the run, status: %d, body: %s", opts.dealID, resp.StatusCode, body)
	}

	var lead struct {
		ID uint `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lead); err != nil {
		return err
	}
	log.Printf("Final active lead of deal %d: user %d", opts.dealID, lead.ID)
	return nil
}
