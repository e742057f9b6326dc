package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vanplan/internal/avail"
	"vanplan/internal/catalog"
	"vanplan/internal/metrics"
	"vanplan/internal/model"
	"vanplan/internal/plan"
	"vanplan/internal/store"
)

type planRequest struct {
	Bookings []model.BookingRequest `json:"bookings"`
	Tier     string                 `json:"tier,omitempty"`
	Ceiling  *model.CapacityCeiling `json:"ceiling,omitempty"`
}

type availabilityRequest struct {
	Booking model.BookingRequest `json:"booking"`
	Urgency model.Urgency        `json:"urgency,omitempty"`
}

// PlanHandler handles POST /v1/plan: sequence a batch of bookings under
// a tier ceiling and report feasibility. An infeasible plan is a 200
// with isFeasible=false, not an error.
func (s *Server) PlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !(p.IsAdmin() || p.Role == "ops") {
		writeProblem(w, 403, "Forbidden", "ops or admin required", r.URL.Path)
		return
	}
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validatePlanRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
		return
	}
	ceiling := s.Cfg.Ceiling(req.Tier)
	if req.Ceiling != nil {
		ceiling = *req.Ceiling
	}

	start := time.Now()
	res, stats, err := s.Planner.Plan(r.Context(), req.Bookings, ceiling)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrUnknownItem):
			writeProblem(w, http.StatusBadRequest, "Unknown item reference", err.Error(), r.URL.Path)
		case errors.Is(err, plan.ErrNegativeLoad):
			writeProblem(w, http.StatusUnprocessableEntity, "Negative load", err.Error(), r.URL.Path)
		default:
			writeProblem(w, http.StatusInternalServerError, "Plan failed", err.Error(), r.URL.Path)
		}
		return
	}
	metrics.PlanDuration.WithLabelValues(stats.Algorithm, fmt.Sprintf("%t", res.Feasible)).Observe(time.Since(start).Seconds())
	metrics.SequencerNodes.WithLabelValues("explored").Add(float64(stats.Explored))
	metrics.SequencerNodes.WithLabelValues("pruned").Add(float64(stats.Pruned))

	planDate := time.Now().UTC().Format("2006-01-02")
	plan.RecordSearch("adhoc", planDate, stats)
	if err := s.Store.RecordPlanSnapshot(r.Context(), "adhoc", res); err == nil {
		s.Pub.Emit(r.Context(), "plan.recorded", res)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"isFeasible":       res.Feasible,
		"route":            res.Route,
		"capacityAnalysis": res.Analysis,
		"search":           stats,
	})
}

// AvailabilityHandler handles POST /v1/availability: resolve one booking
// to a route tier. Store outage is a 503 the caller may retry; the
// engine never guesses a tier in that state.
func (s *Server) AvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateAvailabilityRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid availability request", err.Error(), r.URL.Path)
		return
	}
	urgency := req.Urgency
	if urgency == "" {
		urgency = model.UrgencyRelaxed
	}
	res, err := s.Engine.Check(r.Context(), req.Booking, urgency)
	if err != nil {
		switch {
		case errors.Is(err, plan.ErrUnknownItem):
			writeProblem(w, http.StatusBadRequest, "Unknown item reference", err.Error(), r.URL.Path)
		case errors.Is(err, avail.ErrStoreUnavailable):
			w.Header().Set("Retry-After", "5")
			writeProblem(w, http.StatusServiceUnavailable, "Corridor store unavailable", err.Error(), r.URL.Path)
		default:
			writeProblem(w, http.StatusInternalServerError, "Availability check failed", err.Error(), r.URL.Path)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CorridorsHandler handles GET /v1/corridors
func (s *Server) CorridorsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/corridors" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !(p.IsAdmin() || p.Role == "ops") {
		writeProblem(w, 403, "Forbidden", "ops or admin required", r.URL.Path)
		return
	}
	status := r.URL.Query().Get("status")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListCorridors(r.Context(), status, limit)
	if err != nil {
		writeProblem(w, 500, "List corridors failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items})
}

// CorridorByIDHandler handles /v1/corridors/{id}, {id}/close and
// {id}/events/stream (SSE).
func (s *Server) CorridorByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/corridors/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]

	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		s.streamCorridorEvents(w, r, id)
		return
	}
	if len(parts) > 1 && parts[1] == "close" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p := s.getPrincipal(r)
		if !(p.IsAdmin() || p.Role == "ops") {
			writeProblem(w, 403, "Forbidden", "ops or admin required", r.URL.Path)
			return
		}
		if err := s.Store.CloseCorridor(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, 404, "Corridor not found", err.Error(), r.URL.Path)
				return
			}
			writeProblem(w, 500, "Close corridor failed", err.Error(), r.URL.Path)
			return
		}
		s.Broker.Publish(id, SSEEvent{Type: "corridor.updated", Data: map[string]any{"corridorId": id, "status": "closed"}})
		writeJSON(w, 200, map[string]string{"id": id, "status": "closed"})
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cor, err := s.Store.GetCorridor(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Corridor not found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, cor)
}

// streamCorridorEvents serves the SSE stream for one corridor.
func (s *Server) streamCorridorEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	// initial heartbeat
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"corridorId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"corridorId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// CatalogItemsHandler handles GET /v1/catalog/items
func (s *Server) CatalogItemsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap, err := s.Catalog.Snapshot(r.Context())
	if err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Catalog unavailable", err.Error(), r.URL.Path)
		return
	}
	items := snap.Items()
	if cat := r.URL.Query().Get("category"); cat != "" {
		filtered := items[:0:0]
		for _, it := range items {
			if strings.EqualFold(it.Category, cat) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": snap.Version, "items": items})
}

// AdminCatalogReloadHandler handles POST /v1/admin/catalog/reload
func (s *Server) AdminCatalogReloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	rel, ok := s.Catalog.(catalog.Reloader)
	if !ok {
		writeProblem(w, http.StatusConflict, "Catalog not reloadable", "static catalog has no source to reload from", r.URL.Path)
		return
	}
	snap, err := rel.Reload(r.Context())
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Catalog reload failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": snap.Version, "items": snap.Len()})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSubscriptionRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, err := s.Store.ListSubscriptions(r.Context(), limit)
		if err != nil {
			writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 404, "Subscription not found", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/webhook-deliveries" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(405)
		return
	}
	status := r.URL.Query().Get("status")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListWebhookDeliveries(r.Context(), status, limit)
	if err != nil {
		writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items})
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics: recorded
// sequencer stats per scope and plan date.
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "adhoc"
	}
	planDate := r.URL.Query().Get("planDate")
	if planDate == "" {
		planDate = time.Now().UTC().Format("2006-01-02")
	}
	ms := plan.SearchStatsFor(scope, planDate)
	items := make([]map[string]any, 0, len(ms))
	for algo, st := range ms {
		items = append(items, map[string]any{
			"algorithm": algo,
			"explored":  st.Explored,
			"pruned":    st.Pruned,
			"elapsedMs": st.ElapsedMs,
		})
	}
	writeJSON(w, 200, map[string]any{"scope": scope, "planDate": planDate, "items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
