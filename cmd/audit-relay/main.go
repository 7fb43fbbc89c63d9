package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	segmentio "github.com/segmentio/kafka-go"

	"github.com/nazeru/crm-orders-go/pkg/kafka"
	"github.com/nazeru/crm-orders-go/pkg/logging"
	"github.com/nazeru/crm-orders-go/pkg/metrics"
	"github.com/nazeru/crm-orders-go/pkg/outbox"
)

const serviceName = "audit_relay"

type cfg struct {
	Port         string
	DatabaseURL  string
	KafkaBrokers string
	PollInterval time.Duration
	BatchSize    int
}

func readCfg() (cfg, error) {
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if db == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	brokers := getenv("KAFKA_BROKERS", "")
	if brokers == "" {
		return cfg{}, errors.New("KAFKA_BROKERS is required")
	}
	pollMS, _ := strconv.Atoi(getenv("POLL_INTERVAL_MS", "1000"))
	batch, _ := strconv.Atoi(getenv("BATCH_SIZE", "100"))

	return cfg{
		Port:         getenv("PORT", "8082"),
		DatabaseURL:  db,
		KafkaBrokers: brokers,
		PollInterval: time.Duration(pollMS) * time.Millisecond,
		BatchSize:    batch,
	}, nil
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()
	if err := outbox.InitTable(ctx, pool); err != nil {
		log.Fatalf("outbox schema error: %v", err)
	}

	client := kafka.NewClient(cfg.KafkaBrokers)
	m := metrics.NewRelayMetrics(serviceName)
	go drainLoop(pool, client, m, cfg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logging.Log(logging.Fields{Service: serviceName, Step: "startup", Status: "listening", Message: "port " + cfg.Port})
	log.Fatal(srv.ListenAndServe())
}

// drainLoop forwards pending outbox rows to Kafka and marks them sent.
// Delivery before marking means a crash between the two can replay an
// event; consumers dedupe on event_id.
func drainLoop(pool *pgxpool.Pool, client *kafka.Client, m *metrics.RelayMetrics, cfg cfg) {
	writers := map[string]*segmentio.Writer{}
	for {
		time.Sleep(cfg.PollInterval)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pending, err := outbox.FetchPending(ctx, pool, cfg.BatchSize)
		if err != nil {
			log.Printf("outbox fetch error: %v", err)
			cancel()
			continue
		}

		for _, rec := range pending {
			w := writers[rec.Topic]
			if w == nil {
				w = client.NewWriter(rec.Topic)
				writers[rec.Topic] = w
			}
			if err := kafka.PublishJSON(ctx, w, rec.Key, json.RawMessage(rec.Payload)); err != nil {
				log.Printf("kafka publish error: %v", err)
				m.Failed.WithLabelValues(rec.Topic).Inc()
				break
			}
			if err := outbox.MarkSent(ctx, pool, rec.ID); err != nil {
				log.Printf("outbox mark error: %v", err)
				break
			}
			m.Delivered.WithLabelValues(rec.Topic).Inc()
			logging.Log(logging.Fields{
				Service: serviceName,
				EventID: rec.EventID,
				Step:    "relay",
				Status:  "sent",
				Message: rec.Topic,
			})
		}
		cancel()
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
