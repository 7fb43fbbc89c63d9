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

	"github.com/nazeru/crm-orders-go/internal/influence"
	"github.com/nazeru/crm-orders-go/internal/influence/domain"
	"github.com/nazeru/crm-orders-go/internal/lifecycle"
	"github.com/nazeru/crm-orders-go/internal/store"
	"github.com/nazeru/crm-orders-go/pkg/contracts"
	"github.com/nazeru/crm-orders-go/pkg/logging"
	"github.com/nazeru/crm-orders-go/pkg/metrics"
	"github.com/nazeru/crm-orders-go/pkg/outbox"
)

const serviceName = "influence_service"

type cfg struct {
	Port        string
	StoreDriver string
	DatabaseURL string
	AuditTopic  string
}

func readCfg() (cfg, error) {
	driver := getenv("STORE_DRIVER", store.DriverMemory)
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if driver == store.DriverPostgres && db == "" {
		return cfg{}, errors.New("DATABASE_URL is required with STORE_DRIVER=postgres")
	}
	return cfg{
		Port:        getenv("PORT", "8081"),
		StoreDriver: driver,
		DatabaseURL: db,
		AuditTopic:  getenv("AUDIT_TOPIC", "crm.audit"),
	}, nil
}

type storeBackend interface {
	influence.Store
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var backend storeBackend
	var sink contracts.Sink
	switch cfg.StoreDriver {
	case store.DriverMemory:
		backend = store.NewMemory()
		sink = logging.AuditSink{Service: serviceName}
	case store.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer pool.Close()
		pg, err := store.NewPostgres(ctx, pool)
		if err != nil {
			log.Fatalf("db schema error: %v", err)
		}
		if err := outbox.InitTable(ctx, pool); err != nil {
			log.Fatalf("outbox schema error: %v", err)
		}
		backend = pg
		sink = outbox.Sink{Pool: pool, Topic: cfg.AuditTopic}
	default:
		log.Fatalf("config error: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	svc := influence.NewService(backend, sink)
	m := metrics.NewServerMetrics(serviceName)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/influences/health", func(w http.ResponseWriter, r *http.Request) {
		if err := backend.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	mux.HandleFunc("/api/influences", instrument(m, "influences", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var in influence.CreateInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
				return
			}
			in.Actor = actor(r)
			inf, err := svc.Create(r.Context(), in)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, inf)
		case http.MethodGet:
			list, err := svc.List(r.Context(), "")
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		}
	}))

	mux.HandleFunc("/api/influences/type/", instrument(m, "influences_by_type", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}
		activityType := strings.TrimPrefix(r.URL.Path, "/api/influences/type/")
		list, err := svc.List(r.Context(), activityType)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}))

	mux.HandleFunc("/api/influences/", instrument(m, "influence", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/influences/")
		if id == "" || strings.Contains(id, "/") {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			inf, err := svc.Get(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, inf)
		case http.MethodPut:
			var in influence.UpdateInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
				return
			}
			in.Actor = actor(r)
			inf, err := svc.Update(r.Context(), id, in)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, inf)
		case http.MethodDelete:
			if err := svc.Delete(r.Context(), id, actor(r)); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		}
	}))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logging.Log(logging.Fields{
		Service: serviceName,
		Step:    "startup",
		Status:  "listening",
		Message: "port " + cfg.Port + ", driver " + cfg.StoreDriver,
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Operator"))
}

func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var te *lifecycle.TransitionError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.As(err, &te), errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(m *metrics.ServerMetrics, handler string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		m.Requests.WithLabelValues(handler, strconv.Itoa(rec.code)).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
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
