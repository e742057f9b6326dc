package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vanplan/internal/api"
	"vanplan/internal/metrics"
)

func main() {
	// Local dev convenience; a missing .env is fine.
	_ = godotenv.Load()

	srvDeps, err := api.NewServer()
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Planning
	mux.HandleFunc("/v1/plan", srvDeps.PlanHandler)
	mux.HandleFunc("/v1/availability", srvDeps.AvailabilityHandler)

	// Corridors
	mux.HandleFunc("/v1/corridors", srvDeps.CorridorsHandler)
	mux.HandleFunc("/v1/corridors/ws", srvDeps.CorridorWSHandler)
	mux.HandleFunc("/v1/corridors/", srvDeps.CorridorByIDHandler) // includes /close, /events/stream

	// Catalog
	mux.HandleFunc("/v1/catalog/items", srvDeps.CatalogItemsHandler)

	// Subscriptions
	mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

	// Health
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)

	// Admin
	mux.HandleFunc("/v1/admin/catalog/reload", srvDeps.AdminCatalogReloadHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
	mux.HandleFunc("/v1/admin/plan-metrics", srvDeps.PlanMetricsHandler)
	mux.HandleFunc("/debug/info", srvDeps.DebugJSON)

	// Prometheus scrape endpoint on the service registry
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	handler := api.MetricsMiddleware(api.RateLimitMiddleware(logMiddleware(mux)))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s", addr)
	// Start webhook worker
	if srvDeps.Pub != nil {
		worker := srvDeps.NewWebhookWorker()
		worker.Start()
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}
