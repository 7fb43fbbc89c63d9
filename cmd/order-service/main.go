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

	"github.com/nazeru/crm-orders-go/internal/lifecycle"
	"github.com/nazeru/crm-orders-go/internal/order"
	"github.com/nazeru/crm-orders-go/internal/order/domain"
	"github.com/nazeru/crm-orders-go/internal/store"
	"github.com/nazeru/crm-orders-go/pkg/contracts"
	"github.com/nazeru/crm-orders-go/pkg/idempotency"
	"github.com/nazeru/crm-orders-go/pkg/logging"
	"github.com/nazeru/crm-orders-go/pkg/metrics"
	"github.com/nazeru/crm-orders-go/pkg/outbox"
)

const serviceName = "order_service"

type cfg struct {
	Port           string
	StoreDriver    string // memory | postgres
	DatabaseURL    string
	OrderSchema    string // subscription | retail
	AuditTopic     string
	RequestTimeout time.Duration
}

func readCfg() (cfg, error) {
	driver := getenv("STORE_DRIVER", store.DriverMemory)
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if driver == store.DriverPostgres && db == "" {
		return cfg{}, errors.New("DATABASE_URL is required with STORE_DRIVER=postgres")
	}
	toutMS, _ := strconv.Atoi(getenv("REQUEST_TIMEOUT_MS", "5000"))

	return cfg{
		Port:           getenv("PORT", "8080"),
		StoreDriver:    driver,
		DatabaseURL:    db,
		OrderSchema:    getenv("ORDER_SCHEMA", domain.SchemaSubscription),
		AuditTopic:     getenv("AUDIT_TOPIC", "crm.audit"),
		RequestTimeout: time.Duration(toutMS) * time.Millisecond,
	}, nil
}

type storeBackend interface {
	order.Store
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	schema, err := domain.SchemaByName(cfg.OrderSchema)
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

	svc := order.NewService(backend, domain.DefaultCatalog(), schema, sink)
	replays := idempotency.NewReplayCache()
	m := metrics.NewServerMetrics(serviceName)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/orders/health", func(w http.ResponseWriter, r *http.Request) {
		if err := backend.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	mux.HandleFunc("/api/orders", instrument(m, "orders", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
		defer cancel()

		switch r.Method {
		case http.MethodPost:
			var in order.CreateInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
				return
			}
			if key := idempotency.Key(r); key != "" {
				if cid, ok := replays.Lookup(key); ok {
					if existing, err := svc.Get(ctx, cid); err == nil {
						writeJSON(w, http.StatusOK, existing)
						return
					}
				}
			}
			in.Actor = actor(r)
			o, err := svc.Create(ctx, in)
			if err != nil {
				writeError(w, err)
				return
			}
			if key := idempotency.Key(r); key != "" {
				replays.Store(key, o.Cid)
			}
			writeJSON(w, http.StatusCreated, o)
		case http.MethodGet:
			orders, err := svc.List(ctx, "")
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, orders)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		}
	}))

	mux.HandleFunc("/api/orders/user/", instrument(m, "orders_by_user", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/api/orders/user/")
		if name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "customer name is required"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
		defer cancel()
		orders, err := svc.List(ctx, name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}))

	mux.HandleFunc("/api/orders/", instrument(m, "order", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/orders/")
		if rest == "" || strings.Contains(strings.TrimSuffix(rest, "/status"), "/") {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
		defer cancel()

		// PUT /api/orders/{cid}/status advances the lifecycle only.
		if cid, ok := strings.CutSuffix(rest, "/status"); ok {
			if r.Method != http.MethodPut {
				writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
				return
			}
			var body struct {
				Status int    `json:"status"`
				Reason string `json:"reason"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
				return
			}
			o, err := svc.Advance(ctx, cid, body.Status, body.Reason, actor(r))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, o)
			return
		}

		cid := rest
		switch r.Method {
		case http.MethodGet:
			o, err := svc.Get(ctx, cid)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, o)
		case http.MethodPut:
			var in order.UpdateInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
				return
			}
			in.Actor = actor(r)
			o, err := svc.Update(ctx, cid, in)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, o)
		case http.MethodDelete:
			if err := svc.Delete(ctx, cid, r.URL.Query().Get("reason"), actor(r)); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": cid})
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		}
	}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logging.Log(logging.Fields{
		Service: serviceName,
		Step:    "startup",
		Status:  "listening",
		Message: "port " + cfg.Port + ", driver " + cfg.StoreDriver + ", schema " + schema.Name,
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
	case errors.As(err, &ve),
		errors.Is(err, domain.ErrMissingReason),
		errors.Is(err, domain.ErrInvalidProduct):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.As(err, &te),
		errors.Is(err, order.ErrDeleteNotPermitted),
		errors.Is(err, store.ErrConflict):
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
