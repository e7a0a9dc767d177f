// Package main - aegis-watch
// Terminal client for the core's WebSocket feed. With -clients > 1 it
// doubles as a fan-out load test for the hub.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/network"
)

// Config for the watcher
type Config struct {
	ServerURL    string
	NumClients   int
	TestDuration time.Duration
	Quiet        bool
	OutputPath   string
}

// Stats tracks what the clients received.
type Stats struct {
	Connected        atomic.Int64
	MessagesReceived atomic.Int64
	DecodeErrors     atomic.Int64
	Errors           atomic.Int64

	mu     sync.Mutex
	byType map[string]int64
}

func (s *Stats) count(msgType string) {
	s.mu.Lock()
	s.byType[msgType]++
	s.mu.Unlock()
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 1, "Number of concurrent clients")
	duration := flag.Duration("duration", 0, "Run duration (0 = until interrupted)")
	quiet := flag.Bool("quiet", false, "Do not print messages, only the summary")
	output := flag.String("out", "", "Write the summary as JSON to this file")
	flag.Parse()

	config := Config{
		ServerURL:    *serverURL,
		NumClients:   *numClients,
		TestDuration: *duration,
		Quiet:        *quiet,
		OutputPath:   *output,
	}
	if config.NumClients < 1 {
		config.NumClients = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if config.TestDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.TestDuration)
		defer cancel()
	}

	fmt.Fprintf(os.Stderr, "[AEGIS-WATCH] %s clients=%d\n", config.ServerURL, config.NumClients)

	start := time.Now()
	stats := run(ctx, config)
	printResults(stats, config, time.Since(start))
}

func run(ctx context.Context, config Config) *Stats {
	stats := &Stats{byType: make(map[string]int64)}
	var wg sync.WaitGroup

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			// Only the first client echoes the feed.
			runClient(ctx, clientID, config, stats, clientID == 0 && !config.Quiet)
		}(i)

		if config.NumClients > 1 {
			// Stagger client starts to avoid thundering herd
			time.Sleep(10 * time.Millisecond)
		}
	}

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats, echo bool) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("Client %d: Connection failed: %v", clientID, err)
		stats.Errors.Add(1)
		return
	}
	defer conn.Close()
	stats.Connected.Add(1)

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Client %d: read failed: %v", clientID, err)
				stats.Errors.Add(1)
			}
			return
		}
		stats.MessagesReceived.Add(1)

		var msg network.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			stats.DecodeErrors.Add(1)
			continue
		}
		stats.count(msg.Type)

		if echo {
			fmt.Printf("%s %-6s %s\n", time.Now().Format("15:04:05.000"), msg.Type, data)
		}
	}
}

func printResults(stats *Stats, config Config, elapsed time.Duration) {
	recv := stats.MessagesReceived.Load()

	fmt.Fprintln(os.Stderr, "=========================================")
	fmt.Fprintf(os.Stderr, "Clients connected: %d/%d\n", stats.Connected.Load(), config.NumClients)
	fmt.Fprintf(os.Stderr, "Messages received: %d\n", recv)
	fmt.Fprintf(os.Stderr, "Decode errors:     %d\n", stats.DecodeErrors.Load())
	fmt.Fprintf(os.Stderr, "Errors:            %d\n", stats.Errors.Load())
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(os.Stderr, "Throughput:        %.2f msg/sec\n", float64(recv)/secs)
	}

	stats.mu.Lock()
	types := make([]string, 0, len(stats.byType))
	for t := range stats.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	byType := make(map[string]int64, len(types))
	for _, t := range types {
		byType[t] = stats.byType[t]
		fmt.Fprintf(os.Stderr, "  %-6s %d\n", t, stats.byType[t])
	}
	stats.mu.Unlock()
	fmt.Fprintln(os.Stderr, "=========================================")

	if config.OutputPath == "" {
		return
	}
	results := map[string]interface{}{
		"url":               config.ServerURL,
		"clients":           config.NumClients,
		"connected":         stats.Connected.Load(),
		"messages_received": recv,
		"decode_errors":     stats.DecodeErrors.Load(),
		"errors":            stats.Errors.Load(),
		"elapsed":           elapsed.String(),
		"by_type":           byType,
	}
	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile(config.OutputPath, jsonData, 0644); err != nil {
		log.Printf("write results: %v", err)
		return
	}
	fmt.Fprintln(os.Stderr, "Results saved to "+config.OutputPath)
}
