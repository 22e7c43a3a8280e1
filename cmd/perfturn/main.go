// Command perfturn replays recorded utterance audio against a running server
// and reports client-observed turn latency alongside the server's own
// /v1/perf/latency snapshot.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/garagevoice/internal/protocol"
)

type options struct {
	baseURL        string
	audioPath      string
	conns          int
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	verbose        bool
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfturn: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfturn: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var interTurnMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:5001", "server base URL")
	flag.StringVar(&cfg.audioPath, "audio", "", "path to a recorded utterance (webm); synthetic bytes when empty")
	flag.IntVar(&cfg.conns, "conns", 1, "number of concurrent connections")
	flag.IntVar(&cfg.turns, "turns", 10, "number of turns to replay per connection")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 180, "delay between turns in milliseconds")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 30000, "timeout waiting for a bot_response per turn in milliseconds")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.conns <= 0 {
		return options{}, fmt.Errorf("conns must be > 0")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	audio, err := loadAudio(cfg.audioPath)
	if err != nil {
		return err
	}
	wsURL, err := wsEndpoint(cfg.baseURL)
	if err != nil {
		return err
	}

	var (
		mu        sync.Mutex
		clientMS  []float64
		backendMS []float64
		firstErr  error
		wg        sync.WaitGroup
	)
	for c := 0; c < cfg.conns; c++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client, backend, err := replayConnection(ctx, cfg, wsURL, audio, id)
			mu.Lock()
			defer mu.Unlock()
			clientMS = append(clientMS, client...)
			backendMS = append(backendMS, backend...)
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("conn %d: %w", id, err)
			}
		}(c + 1)
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	printSummary("client", clientMS)
	printSummary("backend", backendMS)
	return printServerSnapshot(ctx, cfg.baseURL)
}

func replayConnection(ctx context.Context, cfg options, wsURL string, audio []byte, id int) ([]float64, []float64, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	// First frame is the connect acknowledgment.
	_ = conn.SetReadDeadline(time.Now().Add(cfg.turnTimeout))
	var status protocol.Status
	if err := conn.ReadJSON(&status); err != nil {
		return nil, nil, fmt.Errorf("read status ack: %w", err)
	}
	if cfg.verbose {
		fmt.Printf("perfturn: conn %d connected (%s), turns=%d audio_bytes=%d\n", id, status.Message, cfg.turns, len(audio))
	}

	msg := protocol.AudioData{
		Type:  protocol.TypeAudioData,
		Audio: base64.StdEncoding.EncodeToString(audio),
	}

	clientMS := make([]float64, 0, cfg.turns)
	backendMS := make([]float64, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		start := time.Now()
		if err := conn.WriteJSON(msg); err != nil {
			return clientMS, backendMS, fmt.Errorf("turn %d send audio: %w", i+1, err)
		}

		res, err := awaitResponse(conn, cfg.turnTimeout)
		if err != nil {
			return clientMS, backendMS, fmt.Errorf("turn %d: %w", i+1, err)
		}
		elapsed := float64(time.Since(start).Microseconds()) / 1000.0
		clientMS = append(clientMS, elapsed)
		backendMS = append(backendMS, float64(res.LatencyMS.Backend))

		if cfg.verbose {
			fmt.Printf("perfturn: conn %d turn %d/%d client=%.1fms backend=%dms user=%q\n",
				id, i+1, cfg.turns, elapsed, res.LatencyMS.Backend, res.UserText)
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}
	return clientMS, backendMS, nil
}

func loadAudio(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		// No recording supplied: a fixed synthetic payload still exercises the
		// full pipeline when the server runs with the mock transcriber.
		return []byte("perfturn synthetic utterance payload"), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("audio file %s is empty", path)
	}
	return data, nil
}

func wsEndpoint(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/voice/ws"
	return u.String(), nil
}

// awaitResponse reads frames until the turn's bot_response arrives. An error
// event fails the turn; status frames are skipped.
func awaitResponse(conn *websocket.Conn, timeout time.Duration) (protocol.BotResponse, error) {
	deadline := time.Now().Add(timeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			return protocol.BotResponse{}, fmt.Errorf("ws read: %w", err)
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case protocol.TypeBotResponse:
			var res protocol.BotResponse
			if err := json.Unmarshal(data, &res); err != nil {
				return protocol.BotResponse{}, fmt.Errorf("decode bot_response: %w", err)
			}
			return res, nil
		case protocol.TypeError:
			var errEvent protocol.ErrorEvent
			_ = json.Unmarshal(data, &errEvent)
			return protocol.BotResponse{}, fmt.Errorf("server error: %s", errEvent.Message)
		}
	}
}

func printSummary(label string, samples []float64) {
	if len(samples) == 0 {
		return
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	fmt.Printf("perfturn: %s latency n=%d avg=%.1fms p50=%.1fms p95=%.1fms max=%.1fms\n",
		label, len(sorted), sum/float64(len(sorted)),
		quantile(sorted, 0.50), quantile(sorted, 0.95), sorted[len(sorted)-1])
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func printServerSnapshot(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/perf/latency", nil)
	if err != nil {
		return err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch server snapshot: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("server snapshot HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	fmt.Printf("perfturn: server snapshot %s\n", strings.TrimSpace(string(body)))
	return nil
}
