package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nazeru/crm-orders-go/pkg/contracts"
	"github.com/nazeru/crm-orders-go/pkg/kafka"
	"github.com/nazeru/crm-orders-go/pkg/logging"
	"github.com/nazeru/crm-orders-go/pkg/metrics"
)

const serviceName = "audit_archiver"

type cfg struct {
	Port         string
	DatabaseURL  string
	KafkaBrokers string
	Topic        string
	GroupID      string
}

const archiveSchema = `CREATE TABLE IF NOT EXISTS audit_inbox(
	event_id TEXT PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS audit_archive(
	event_id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	entity TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	from_status TEXT,
	to_status TEXT,
	reason TEXT,
	actor TEXT,
	occurred_at TIMESTAMPTZ NOT NULL,
	payload JSONB NOT NULL
)`

func readCfg() (cfg, error) {
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if db == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	brokers := getenv("KAFKA_BROKERS", "")
	if brokers == "" {
		return cfg{}, errors.New("KAFKA_BROKERS is required")
	}
	return cfg{
		Port:         getenv("PORT", "8083"),
		DatabaseURL:  db,
		KafkaBrokers: brokers,
		Topic:        getenv("AUDIT_TOPIC", "crm.audit"),
		GroupID:      getenv("KAFKA_GROUP_ID", "audit-archiver"),
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
	if _, err := pool.Exec(ctx, archiveSchema); err != nil {
		log.Fatalf("archive schema error: %v", err)
	}

	client := kafka.NewClient(cfg.KafkaBrokers)
	m := metrics.NewArchiveMetrics(serviceName)
	go consumeAudit(pool, client, m, cfg)

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

func consumeAudit(pool *pgxpool.Pool, client *kafka.Client, m *metrics.ArchiveMetrics, cfg cfg) {
	reader := client.NewReader(cfg.Topic, cfg.GroupID)
	defer reader.Close()
	for {
		msg, err := reader.ReadMessage(context.Background())
		if err != nil {
			log.Printf("kafka read error: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		var evt contracts.AuditEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Printf("event decode error: %v", err)
			continue
		}
		if evt.EventID == "" {
			continue
		}
		archived, err := archive(context.Background(), pool, evt, msg.Value)
		if err != nil {
			log.Printf("archive error: %v", err)
			continue
		}
		if !archived {
			m.Duplicates.Inc()
			continue
		}
		m.Archived.WithLabelValues(evt.Entity, evt.Type).Inc()
		logging.Log(logging.Fields{
			Service:    serviceName,
			Entity:     evt.Entity,
			EntityID:   evt.EntityID,
			EventID:    evt.EventID,
			Step:       evt.Type,
			Status:     "archived",
			FromStatus: evt.FromStatus,
			ToStatus:   evt.ToStatus,
		})
	}
}

// archive claims the event id in the inbox; a claim that affects no row
// means a relay replay, and the event is skipped. Returns whether this
// delivery was the first.
func archive(ctx context.Context, pool *pgxpool.Pool, evt contracts.AuditEvent, raw []byte) (bool, error) {
	tag, err := pool.Exec(ctx, `INSERT INTO audit_inbox(event_id) VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING`, evt.EventID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = pool.Exec(ctx, `INSERT INTO audit_archive(
		event_id, event_type, entity, entity_id, from_status, to_status, reason, actor, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING`,
		evt.EventID, evt.Type, evt.Entity, evt.EntityID,
		evt.FromStatus, evt.ToStatus, evt.Reason, evt.Actor, evt.OccurredAt, raw)
	if err != nil {
		return false, err
	}
	return true, nil
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
