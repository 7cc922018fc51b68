package main

import (
	"PerpMark/internal/core"
	"PerpMark/internal/fixedpoint"
	"PerpMark/internal/ingestion"
	"PerpMark/internal/observability"
	"PerpMark/internal/oracle"
	"PerpMark/internal/state"
	"PerpMark/internal/valuation"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config holds all application configuration, loaded from environment
// variables with the MARK_ prefix.
type Config struct {
	// NATS
	NATSURL string

	// Channels
	RawChanSize int

	// HTTP/Metrics
	MetricsAddr string

	// Valuation
	StrictAccrual bool

	// Oracle codec
	TickDecimals int
}

func DefaultConfig() Config {
	return Config{
		NATSURL:       envOrDefault("MARK_NATS_URL", "nats://localhost:4222"),
		RawChanSize:   envIntOrDefault("MARK_RAW_CHAN_SIZE", 4096),
		MetricsAddr:   envOrDefault("MARK_METRICS_ADDR", ":9091"),
		StrictAccrual: envBoolOrDefault("MARK_STRICT_ACCRUAL", false),
		TickDecimals:  envIntOrDefault("MARK_TICK_DECIMALS", int(fixedpoint.OracleDecimals)),
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: PerpMark starting...")

	cfg := DefaultConfig()

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()
	logger := observability.NewLogger("perpmark")

	// --- State + engine ---
	markets := state.NewMarketManager()
	positions := state.NewPositionManager()
	valuator := valuation.NewService(markets, positions, logger, metrics, cfg.StrictAccrual)
	codec := oracle.NewCodec(int32(cfg.TickDecimals))
	builder := oracle.NewBuilder(codec)

	engine := core.NewEngine(markets, positions, valuator, builder,
		&loggingSink{logger: observability.NewLogger("payload-sink")}, metrics, logger)

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("FATAL: nats connect: %v", err)
	}
	defer nc.Close()
	log.Println("INFO: NATS connected")

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		log.Fatalf("FATAL: ensure NATS streams: %v", err)
	}

	// --- Event channel from NATS to engine ---
	rawEventChan := make(chan ingestion.RawEvent, cfg.RawChanSize)
	natsSubscriber := ingestion.NewNATSSubscriber(js, rawEventChan)
	if err := natsSubscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		log.Fatalf("FATAL: nats subscribe: %v", err)
	}

	errChan := make(chan error, 4)

	// 1. NATS → engine ingestion loop
	go func() {
		runIngestionLoop(ctx, rawEventChan, engine, metrics)
	}()

	// 2. Metrics + health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", healthChecker.LivenessHandler)
		mux.HandleFunc("/readyz", healthChecker.ReadinessHandler)
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			srv.Shutdown(shutCtx)
		}()
		log.Printf("INFO: metrics server listening on %s/metrics", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	healthChecker.SetReady(true)
	log.Printf("INFO: PerpMark ready (nats=%s, metrics=%s)", cfg.NATSURL, cfg.MetricsAddr)

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		log.Printf("INFO: received signal %s, shutting down...", sig)
	case err := <-errChan:
		log.Printf("ERROR: goroutine failed: %v, shutting down...", err)
	}

	cancel()
	natsSubscriber.Stop()
	log.Println("INFO: PerpMark shutdown complete")
}

// runIngestionLoop reads raw events from NATS, parses them, and feeds them to
// the engine. Messages are acked after parse+validate: parse failures are
// acked (redelivery would fail identically), engine errors are naked so NATS
// redelivers up to MaxDeliver.
func runIngestionLoop(ctx context.Context, rawChan <-chan ingestion.RawEvent, engine *core.Engine, metrics *observability.Metrics) {
	// Subject-prefix → event-type lookup (strip trailing ".>" wildcard)
	subjectToType := make(map[string]string)
	for _, cfg := range ingestion.DefaultSubjects() {
		prefix := cfg.Subject
		if len(prefix) > 2 && prefix[len(prefix)-2:] == ".>" {
			prefix = prefix[:len(prefix)-2]
		}
		subjectToType[prefix] = cfg.EventType
	}

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-rawChan:
			if !ok {
				return
			}

			eventType := resolveEventType(raw.Subject, subjectToType)
			if eventType == "" {
				log.Printf("WARN: unknown NATS subject: %s", raw.Subject)
				raw.AckFunc() // Ack to avoid a redelivery loop
				continue
			}

			evt, err := ingestion.ParseRawEvent(raw, eventType)
			if err != nil {
				log.Printf("WARN: parse event failed (subject=%s): %v", raw.Subject, err)
				if metrics != nil {
					metrics.IngestRejectedTotal.WithLabelValues(eventType, "parse").Inc()
				}
				raw.AckFunc() // Malformed forever — ack and drop
				continue
			}

			if err := engine.ProcessEvent(evt); err != nil {
				log.Printf("ERROR: engine.ProcessEvent failed (type=%s, key=%s): %v",
					evt.EventType(), evt.IdempotencyKey(), err)
				raw.NakFunc() // Possibly transient — let NATS redeliver
				continue
			}
			raw.AckFunc()
		}
	}
}

// resolveEventType finds the event type for a NATS subject by matching the longest prefix.
func resolveEventType(subject string, prefixMap map[string]string) string {
	bestMatch := ""
	bestType := ""
	for prefix, evtType := range prefixMap {
		if len(subject) >= len(prefix) && subject[:len(prefix)] == prefix {
			if len(prefix) > len(bestMatch) {
				bestMatch = prefix
				bestType = evtType
			}
		}
	}
	return bestType
}

// loggingSink logs each assembled payload. Publishing payloads to a chain or
// transport is out of scope for this service; downstream consumers read the
// metrics and logs, or wire their own core.PayloadSink.
type loggingSink struct {
	logger zerolog.Logger
}

func (s *loggingSink) Deliver(payload *oracle.UpdatePayload, markets []string) error {
	s.logger.Info().
		Int("assets", len(payload.Ticks)).
		Int64("baseline_time", payload.BaselineTime).
		Strs("markets", markets).
		Msg("oracle payload built")
	return nil
}

// --- Helpers ---

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return defaultVal
	}
	return i
}

func envBoolOrDefault(key string, defaultVal bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}
